package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/chatkeeper/internal/dbx"
	"github.com/jackc/pgx/v5"
)

const lockNamespace = "chatkeeper"

const (
	tableExistsQuery = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1)`

	columnsQuery = `SELECT column_name, is_nullable = 'YES', COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1`

	indexesQuery = `SELECT indexname, indexdef FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = $1`

	lockQuery   = `SELECT pg_advisory_lock(hashtext($1), hashtext($2))`
	unlockQuery = `SELECT pg_advisory_unlock(hashtext($1), hashtext($2))`
)

// PostgresCatalog introspects information_schema and pg_indexes and issues
// DDL against the current schema.
type PostgresCatalog struct {
	db dbx.DBTX
}

func NewPostgresCatalog(db dbx.DBTX) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// OpenPostgresCatalog pins a connection and takes the session advisory lock
// for table on it, so that two processes never alter the same table at once.
func OpenPostgresCatalog(ctx context.Context, db *sql.DB, table string) (Catalog, func() error, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, lockQuery, lockNamespace, table); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("lock %s: %w", table, err)
	}

	release := func() error {
		// The lock is released with the session if the unlock fails.
		_, err := conn.ExecContext(context.WithoutCancel(ctx), unlockQuery, lockNamespace, table)
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return NewPostgresCatalog(conn), release, nil
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (c *PostgresCatalog) Inspect(ctx context.Context, table string) (TableState, error) {
	st := TableState{Columns: map[string]ColumnState{}, Indexes: map[string]bool{}, UniqueOn: map[string]bool{}}

	if err := c.db.QueryRowContext(ctx, tableExistsQuery, table).Scan(&st.Exists); err != nil {
		return st, fmt.Errorf("inspect %s: %w", table, err)
	}
	if !st.Exists {
		return st, nil
	}

	rows, err := c.db.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return st, fmt.Errorf("inspect %s columns: %w", table, err)
	}
	for rows.Next() {
		var name string
		var cs ColumnState
		if err := rows.Scan(&name, &cs.Nullable, &cs.Default); err != nil {
			rows.Close()
			return st, fmt.Errorf("inspect %s columns: %w", table, err)
		}
		st.Columns[name] = cs
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return st, fmt.Errorf("inspect %s columns: %w", table, err)
	}
	rows.Close()

	rows, err = c.db.QueryContext(ctx, indexesQuery, table)
	if err != nil {
		return st, fmt.Errorf("inspect %s indexes: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return st, fmt.Errorf("inspect %s indexes: %w", table, err)
		}
		st.Indexes[name] = true
		if key, ok := uniqueKey(def); ok {
			st.UniqueOn[key] = true
		}
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("inspect %s indexes: %w", table, err)
	}
	return st, nil
}

// uniqueKey extracts the plain column list of a non-partial unique index
// from its pg_indexes definition, e.g.
// "CREATE UNIQUE INDEX users_username_key ON public.users USING btree (username)".
// Expression, ordered or partial indexes are not reported.
func uniqueKey(indexdef string) (string, bool) {
	if !strings.HasPrefix(indexdef, "CREATE UNIQUE INDEX ") || strings.Contains(indexdef, " WHERE ") {
		return "", false
	}
	i := strings.Index(indexdef, " USING ")
	if i < 0 {
		return "", false
	}
	rest := indexdef[i:]
	l, r := strings.Index(rest, "("), strings.Index(rest, ")")
	if l < 0 || r < l {
		return "", false
	}
	parts := strings.Split(rest[l+1:r], ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || strings.ContainsAny(p, " (") {
			return "", false
		}
		parts[i] = strings.Trim(p, `"`)
	}
	return strings.Join(parts, ","), true
}

func (c *PostgresCatalog) HasDuplicates(ctx context.Context, table string, columns []string) (bool, error) {
	cols := make([]string, 0, len(columns))
	conds := make([]string, 0, len(columns))
	for _, col := range columns {
		cols = append(cols, quote(col))
		conds = append(conds, quote(col)+" IS NOT NULL")
	}
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s GROUP BY %s HAVING COUNT(*) > 1)`,
		quote(table), strings.Join(conds, " AND "), strings.Join(cols, ", "))
	var found bool
	if err := c.db.QueryRowContext(ctx, q).Scan(&found); err != nil {
		return false, fmt.Errorf("duplicate check %s: %w", table, err)
	}
	return found, nil
}

func (c *PostgresCatalog) HasNulls(ctx context.Context, table, column string) (bool, error) {
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s IS NULL)`, quote(table), quote(column))
	var found bool
	if err := c.db.QueryRowContext(ctx, q).Scan(&found); err != nil {
		return false, fmt.Errorf("null check %s.%s: %w", table, column, err)
	}
	return found, nil
}

func (c *PostgresCatalog) CreateTable(ctx context.Context, t Table) error {
	defs := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		defs = append(defs, columnDefinition(col))
	}
	q := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quote(t.Name), strings.Join(defs, ",\n\t"))
	return c.exec(ctx, q)
}

func columnDefinition(col Column) string {
	var b strings.Builder
	b.WriteString(quote(col.Name))
	b.WriteString(" ")
	b.WriteString(col.Type)
	if col.Identity {
		b.WriteString(" PRIMARY KEY")
		return b.String()
	}
	if col.NotNull {
		b.WriteString(" NOT NULL")
	}
	if col.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(col.Default)
	}
	return b.String()
}

func (c *PostgresCatalog) RenameColumn(ctx context.Context, table, from, to string) error {
	return c.exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", quote(table), quote(from), quote(to)))
}

func (c *PostgresCatalog) AddColumn(ctx context.Context, table string, col Column) error {
	return c.exec(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quote(table), quote(col.Name), col.Type))
}

func (c *PostgresCatalog) Backfill(ctx context.Context, table, column, expr string) (int64, error) {
	q := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL", quote(table), quote(column), expr, quote(column))
	res, err := c.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", q, err)
	}
	return res.RowsAffected()
}

func (c *PostgresCatalog) SetDefault(ctx context.Context, table, column, expr string) error {
	return c.exec(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", quote(table), quote(column), expr))
}

func (c *PostgresCatalog) SetNotNull(ctx context.Context, table, column string) error {
	return c.exec(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", quote(table), quote(column)))
}

func (c *PostgresCatalog) CreateIndex(ctx context.Context, table string, idx Index) error {
	cols := make([]string, 0, len(idx.Columns))
	for _, ic := range idx.Columns {
		s := quote(ic.Name)
		if ic.Desc {
			s += " DESC"
		}
		cols = append(cols, s)
	}
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return c.exec(ctx, fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, quote(idx.Name), quote(table), strings.Join(cols, ", ")))
}

func (c *PostgresCatalog) exec(ctx context.Context, q string) error {
	if _, err := c.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("%s: %w", q, err)
	}
	return nil
}
