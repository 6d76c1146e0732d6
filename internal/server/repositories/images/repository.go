package images

import (
	"context"

	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
)

// Repository stores image metadata. Every operation is scoped to owner.
type Repository interface {
	Create(ctx context.Context, owner string, meta models.ImageMeta) (*models.Image, error)
	// ListRecent returns up to limit images, newest first.
	ListRecent(ctx context.Context, owner string, limit int) ([]*models.Image, error)
	// PathFor locks the owned row and returns its storage path; found is false
	// when no row matches id and owner.
	PathFor(ctx context.Context, id int64, owner string) (path string, found bool, err error)
	Delete(ctx context.Context, id int64, owner string) (int64, error)
}
