package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/server/config"
	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
	"github.com/dmitrijs2005/chatkeeper/internal/server/repositories/repomanager"
)

// MessageService is the owner-scoped message API. The owner is whatever
// identity the caller asserts; it is only ever used as an equality filter.
type MessageService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	defaultLimit int
	timeout      time.Duration
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *MessageService {
	return &MessageService{
		db:           db,
		repomanager:  m,
		defaultLimit: cfg.MessageListLimit,
		timeout:      cfg.OperationTimeout,
	}
}

// Create stores body, trimmed, for owner. On common.ErrTimeout the write may
// or may not have happened.
func (s *MessageService) Create(ctx context.Context, owner, body string) (*models.Message, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body required", common.ErrValidation)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.repomanager.Messages(s.db).Create(ctx, owner, body)
}

// List returns the latest limit messages of owner, oldest first.
func (s *MessageService) List(ctx context.Context, owner string, limit int) ([]*models.Message, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.repomanager.Messages(s.db).ListRecent(ctx, owner, effectiveLimit(limit, s.defaultLimit))
	if err != nil {
		return nil, err
	}
	reverse(rows)
	return rows, nil
}

// Delete removes message id if owner owns it. A zero count means the message
// does not exist or belongs to someone else; both look the same.
func (s *MessageService) Delete(ctx context.Context, id int64, owner string) (int64, error) {
	if err := validateOwner(owner); err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.repomanager.Messages(s.db).Delete(ctx, id, owner)
}
