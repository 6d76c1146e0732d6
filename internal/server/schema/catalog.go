package schema

import (
	"context"
	"database/sql"
)

// ColumnState is what the catalog reports about an existing column.
// Default is the expression as the store renders it, empty when unset.
type ColumnState struct {
	Nullable bool
	Default  string
}

// TableState is a snapshot of one table as the catalog sees it.
// UniqueOn holds the column lists, joined by commas, covered by a unique
// index of any name.
type TableState struct {
	Exists   bool
	Columns  map[string]ColumnState
	Indexes  map[string]bool
	UniqueOn map[string]bool
}

func (s TableState) Has(column string) bool {
	_, ok := s.Columns[column]
	return ok
}

// Catalog reads and changes the live schema of one table at a time.
// Every step guard is evaluated against Inspect, never against a stored
// version number.
type Catalog interface {
	Inspect(ctx context.Context, table string) (TableState, error)
	HasNulls(ctx context.Context, table, column string) (bool, error)
	// HasDuplicates reports whether two rows share non-NULL values in columns.
	HasDuplicates(ctx context.Context, table string, columns []string) (bool, error)

	CreateTable(ctx context.Context, t Table) error
	RenameColumn(ctx context.Context, table, from, to string) error
	// AddColumn adds c as a nullable column without a default.
	AddColumn(ctx context.Context, table string, c Column) error
	Backfill(ctx context.Context, table, column, expr string) (int64, error)
	SetDefault(ctx context.Context, table, column, expr string) error
	SetNotNull(ctx context.Context, table, column string) error
	CreateIndex(ctx context.Context, table string, idx Index) error
}

// CatalogOpener returns a catalog that holds the exclusive schema lock for
// table until release is called.
type CatalogOpener func(ctx context.Context, db *sql.DB, table string) (cat Catalog, release func() error, err error)
