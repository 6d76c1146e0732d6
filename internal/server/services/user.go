// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login and session tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/server/auth"
	"github.com/dmitrijs2005/chatkeeper/internal/server/config"
	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
	"github.com/dmitrijs2005/chatkeeper/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameLen = 200
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
)

// dummyHash is compared against when the account does not exist, so that a
// missing account costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("chatkeeper-dummy-password"), bcrypt.DefaultCost)

// UserService provides authentication-related operations:
// - Register: create accounts
// - Login: verify credentials and mint a session token
// - Authenticate: resolve a session token to the account username
type UserService struct {
	db                      *sql.DB
	repomanager             repomanager.RepositoryManager
	jwtSecret               []byte
	sessionValidityDuration time.Duration
	timeout                 time.Duration
	bcryptCost              int
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                      db,
		repomanager:             m,
		jwtSecret:               []byte(cfg.SecretKey),
		sessionValidityDuration: cfg.SessionValidityDuration,
		timeout:                 cfg.OperationTimeout,
		bcryptCost:              bcrypt.DefaultCost,
	}
}

// Register creates a new account. A taken username yields common.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.Account, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	acc, err := s.repomanager.Users(s.db).Create(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}
	return acc, nil
}

// Login verifies the password and returns a signed session token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	if err := validateCredentials(username, password); err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	acc, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return "", common.ErrorUnauthorized
		}
		if errors.Is(err, common.ErrTimeout) {
			return "", err
		}
		return "", common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(acc.Username, s.jwtSecret, s.sessionValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// Authenticate resolves a session token to the username it was issued for.
func (s *UserService) Authenticate(token string) (string, error) {
	return auth.UsernameFromToken(token, s.jwtSecret)
}

func validateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf("%w: username and password required", common.ErrValidation)
	}
	if err := checkWidth("username", username, maxUsernameLen); err != nil {
		return err
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password is longer than %d bytes", common.ErrValidation, maxPasswordLen)
	}
	return nil
}
