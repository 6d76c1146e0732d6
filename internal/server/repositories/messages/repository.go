package messages

import (
	"context"

	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
)

// Repository stores messages. Every operation is scoped to owner.
type Repository interface {
	Create(ctx context.Context, owner, body string) (*models.Message, error)
	// ListRecent returns up to limit messages, newest first.
	ListRecent(ctx context.Context, owner string, limit int) ([]*models.Message, error)
	// Delete reports how many rows matched both id and owner (0 or 1).
	Delete(ctx context.Context, id int64, owner string) (int64, error)
}
