package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/dbx"
	"github.com/dmitrijs2005/chatkeeper/internal/server/config"
	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
	"github.com/dmitrijs2005/chatkeeper/internal/server/repositories/repomanager"
)

// ImageService is the owner-scoped image metadata API. Stored files are the
// caller's business: Delete hands back the path so the caller can remove it.
type ImageService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	defaultLimit int
	timeout      time.Duration
}

func NewImageService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *ImageService {
	return &ImageService{
		db:           db,
		repomanager:  m,
		defaultLimit: cfg.ImageListLimit,
		timeout:      cfg.OperationTimeout,
	}
}

// DeleteResult carries the stored path of a deleted image. Path is empty
// when Affected is zero.
type DeleteResult struct {
	Affected int64
	Path     string
}

func (s *ImageService) Create(ctx context.Context, owner string, meta models.ImageMeta) (*models.Image, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if err := validateImageMeta(meta); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.repomanager.Images(s.db).Create(ctx, owner, meta)
}

// List returns the latest limit images of owner, oldest first.
func (s *ImageService) List(ctx context.Context, owner string, limit int) ([]*models.Image, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.repomanager.Images(s.db).ListRecent(ctx, owner, effectiveLimit(limit, s.defaultLimit))
	if err != nil {
		return nil, err
	}
	reverse(rows)
	return rows, nil
}

// Delete resolves the stored path of an owned image and deletes the row in
// one transaction. Nothing is deleted when the image is missing or not owned.
func (s *ImageService) Delete(ctx context.Context, id int64, owner string) (DeleteResult, error) {
	if err := validateOwner(owner); err != nil {
		return DeleteResult{}, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var res DeleteResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Images(tx)

		path, found, err := repo.PathFor(ctx, id, owner)
		if err != nil || !found {
			return err
		}

		n, err := repo.Delete(ctx, id, owner)
		if err != nil {
			return err
		}
		res = DeleteResult{Affected: n}
		if n > 0 {
			res.Path = path
		}
		return nil
	})
	if err != nil {
		return DeleteResult{}, dbx.Classify(err)
	}
	return res, nil
}

// Column widths of the images table.
const (
	maxFilenameLen     = 400
	maxOriginalNameLen = 400
	maxPathLen         = 1000
	maxMimeTypeLen     = 200
)

func validateImageMeta(meta models.ImageMeta) error {
	var missing []string
	if meta.Filename == "" {
		missing = append(missing, "filename")
	}
	if meta.OriginalName == "" {
		missing = append(missing, "original name")
	}
	if meta.Path == "" {
		missing = append(missing, "path")
	}
	if meta.MimeType == "" {
		missing = append(missing, "mime type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", common.ErrValidation, strings.Join(missing, ", "))
	}
	if meta.Size < 0 {
		return fmt.Errorf("%w: negative size", common.ErrValidation)
	}
	for _, err := range []error{
		checkWidth("filename", meta.Filename, maxFilenameLen),
		checkWidth("original name", meta.OriginalName, maxOriginalNameLen),
		checkWidth("path", meta.Path, maxPathLen),
		checkWidth("mime type", meta.MimeType, maxMimeTypeLen),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
