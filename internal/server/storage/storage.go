// Package storage keeps uploaded image bytes outside the database. The
// persistence layer only records the path a backend returns from Save and
// hands it back on delete.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/server/config"
)

// Object is an opened stored file. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

type Storage interface {
	// Save stores r under name and returns the path to record. size may be
	// -1 when unknown.
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	// Open returns the stored file for name, or common.ErrorNotFound.
	Open(ctx context.Context, name string) (*Object, error)
	// Remove deletes the file at a path previously returned by Save. A file
	// that is already gone is not an error.
	Remove(ctx context.Context, path string) error
}

// New builds the backend selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case "", config.StorageLocal:
		return NewLocal(cfg.UploadDir)
	case config.StorageS3:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", common.ErrConfiguration, cfg.StorageBackend)
	}
}

// validName rejects names that could escape the backend's namespace.
func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid file name %q", common.ErrValidation, name)
	}
	for _, r := range name {
		if r == '/' || r == '\\' || r == 0 {
			return fmt.Errorf("%w: invalid file name %q", common.ErrValidation, name)
		}
	}
	return nil
}
