// Package schema converges the chatkeeper tables to their target shape from
// any earlier revision: fresh, legacy or partially migrated.
//
// There is no version ledger. Each table is one goose Go migration run with
// versioning disabled, so every run re-evaluates every guard against the live
// catalog and a converged schema sees no changes at all.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/logging"
	"github.com/pressly/goose/v3"
)

type Engine struct {
	tables []Table
	open   CatalogOpener
	logger logging.Logger
}

type Option func(*Engine)

// WithCatalogOpener replaces the PostgreSQL catalog.
func WithCatalogOpener(open CatalogOpener) Option {
	return func(e *Engine) { e.open = open }
}

// WithTables replaces the target tables.
func WithTables(tables ...Table) Option {
	return func(e *Engine) { e.tables = tables }
}

func NewEngine(logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		tables: Tables(),
		open:   OpenPostgresCatalog,
		logger: logger.With("module", "schema"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// gooseUp is a seam for testing the goose provider run.
var gooseUp = func(ctx context.Context, p *goose.Provider) ([]*goose.MigrationResult, error) {
	return p.Up(ctx)
}

// Converge brings every table to its target shape. Any failing step aborts
// the run with common.ErrMigration. Safe to call any number of times.
func (e *Engine) Converge(ctx context.Context, db *sql.DB) error {
	migrations := make([]*goose.Migration, 0, len(e.tables))
	for i, t := range e.tables {
		run := func(ctx context.Context, db *sql.DB) error {
			return e.convergeOne(ctx, db, t)
		}
		migrations = append(migrations, goose.NewGoMigration(
			int64(i+1),
			&goose.GoFunc{RunDB: run, Mode: goose.TransactionDisabled},
			nil,
		))
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, nil,
		goose.WithGoMigrations(migrations...),
		goose.WithDisableVersioning(true),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrMigration, err)
	}

	if _, err := gooseUp(ctx, provider); err != nil {
		var partial *goose.PartialError
		if errors.As(err, &partial) && partial.Err != nil {
			err = partial.Err
		}
		return fmt.Errorf("%w: %w", common.ErrMigration, err)
	}
	e.logger.Info(ctx, "schema converged", "tables", len(e.tables))
	return nil
}

func (e *Engine) convergeOne(ctx context.Context, db *sql.DB, t Table) (err error) {
	cat, release, err := e.open(ctx, db, t.Name)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); err == nil && rerr != nil {
			err = rerr
		}
	}()

	applied, err := convergeTable(ctx, cat, t, e.logger)
	if err != nil {
		return err
	}
	if applied == 0 {
		e.logger.Debug(ctx, "table already converged", "table", t.Name)
	}
	return nil
}
