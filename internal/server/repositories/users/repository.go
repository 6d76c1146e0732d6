package users

import (
	"context"

	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, username, passwordHash string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
}
