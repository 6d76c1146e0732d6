package schema

import "strings"

// Column describes the target shape of one column.
type Column struct {
	Name string
	// Type is the SQL type used when the column is created or added.
	Type string
	// Legacy lists names the column carried in earlier revisions, most
	// recent first. The first one present is renamed to Name.
	Legacy []string
	// Default is attached as the column default when missing.
	Default string
	// Backfill fills NULL rows. Falls back to Default when empty.
	Backfill string
	NotNull  bool
	// Identity marks the surrogate key. It is created with the table, or added
	// as a serial column that the store numbers itself.
	Identity bool
}

func (c Column) backfillExpr() string {
	if c.Backfill != "" {
		return c.Backfill
	}
	return c.Default
}

type IndexColumn struct {
	Name string
	Desc bool
}

type Index struct {
	Name    string
	Unique  bool
	Columns []IndexColumn
}

// key is the comma-joined column list, as used by TableState.UniqueOn.
func (idx Index) key() string {
	names := make([]string, 0, len(idx.Columns))
	for _, ic := range idx.Columns {
		names = append(names, ic.Name)
	}
	return strings.Join(names, ",")
}

type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// Column returns the column named name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

const (
	nowExpr         = "now()"
	defaultMimeType = "'application/octet-stream'"
)

var idColumn = Column{Name: "id", Type: "BIGSERIAL", Identity: true, NotNull: true}

var createdAtColumn = Column{
	Name:    "created_at",
	Type:    "TIMESTAMPTZ",
	Legacy:  []string{"CreatedAt", "createdat"},
	Default: nowExpr,
	NotNull: true,
}

// createdAtIndex supports listing newest first with id as tie-break.
func createdAtIndex(table string) Index {
	return Index{
		Name: "ix_" + table + "_created_at",
		Columns: []IndexColumn{
			{Name: "created_at", Desc: true},
			{Name: "id", Desc: true},
		},
	}
}

var Users = Table{
	Name: "users",
	Columns: []Column{
		idColumn,
		{Name: "username", Type: "VARCHAR(200)", NotNull: true},
		{Name: "password_hash", Type: "VARCHAR(500)", Legacy: []string{"password"}, NotNull: true},
		createdAtColumn,
	},
	Indexes: []Index{{
		Name:    "ux_users_username",
		Unique:  true,
		Columns: []IndexColumn{{Name: "username"}},
	}},
}

var Messages = Table{
	Name: "messages",
	Columns: []Column{
		idColumn,
		{Name: "owner", Type: "VARCHAR(200)", Legacy: []string{"Username", "username"}, NotNull: true},
		{Name: "body", Type: "TEXT", Legacy: []string{"Body", "content"}, NotNull: true},
		createdAtColumn,
	},
	Indexes: []Index{createdAtIndex("messages")},
}

var Images = Table{
	Name: "images",
	Columns: []Column{
		idColumn,
		{Name: "owner", Type: "VARCHAR(200)", Legacy: []string{"username"}, NotNull: true},
		{Name: "filename", Type: "VARCHAR(400)", NotNull: true},
		{Name: "original_name", Type: "VARCHAR(400)", Legacy: []string{"originalname"}, Backfill: "filename", NotNull: true},
		{Name: "path", Type: "VARCHAR(1000)", NotNull: true},
		{Name: "size", Type: "BIGINT", Default: "0", NotNull: true},
		{Name: "mime_type", Type: "VARCHAR(200)", Legacy: []string{"mimetype"}, Default: defaultMimeType, NotNull: true},
		createdAtColumn,
	},
	Indexes: []Index{createdAtIndex("images")},
}

// Tables returns the target tables in convergence order.
func Tables() []Table {
	return []Table{Users, Messages, Images}
}
