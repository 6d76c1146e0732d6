// Package common defines shared constants and sentinel errors used across
// the server layers of chatkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrValidation marks caller-supplied data that fails a precondition.
	ErrValidation = errors.New("validation error")

	// ErrTimeout marks an operation that hit its deadline. The outcome of a
	// write that fails with ErrTimeout is unknown.
	ErrTimeout = errors.New("timeout")

	// Startup errors. Both are fatal: the process must not serve traffic.
	ErrConfiguration = errors.New("configuration error")
	ErrMigration     = errors.New("migration error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
