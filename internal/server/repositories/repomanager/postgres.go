// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and schema convergence.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatkeeper/internal/dbx"
	"github.com/dmitrijs2005/chatkeeper/internal/server/repositories/images"
	"github.com/dmitrijs2005/chatkeeper/internal/server/repositories/messages"
	"github.com/dmitrijs2005/chatkeeper/internal/server/repositories/users"
)

// Converger brings the schema to the shape the repositories expect.
type Converger interface {
	Converge(ctx context.Context, db *sql.DB) error
}

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes the schema convergence hook.
type PostgresRepositoryManager struct {
	schema Converger
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Messages returns a messages.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Messages(db dbx.DBTX) messages.Repository {
	return messages.NewPostgresRepository(db)
}

// Images returns an images.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Images(db dbx.DBTX) images.Repository {
	return images.NewPostgresRepository(db)
}

// Converge runs schema convergence against db. It is meant to be handed to
// the pool manager so that it runs once, before the pool is shared.
func (m *PostgresRepositoryManager) Converge(ctx context.Context, db *sql.DB) error {
	return m.schema.Converge(ctx, db)
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(schema Converger) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{schema: schema}
}
