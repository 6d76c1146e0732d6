package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

type fakeColumn struct {
	nullable bool
	def      string
}

type fakeTable struct {
	cols    map[string]*fakeColumn
	indexes map[string][]IndexColumn
	unique  map[string]bool
	rows    []map[string]any
}

func newFakeTable() *fakeTable {
	return &fakeTable{cols: map[string]*fakeColumn{}, indexes: map[string][]IndexColumn{}, unique: map[string]bool{}}
}

// fakeCatalog is an in-memory store that behaves like the real one where the
// engine depends on it: DDL fails on impossible changes (renaming onto an
// existing column, tightening a column that still has NULLs).
type fakeCatalog struct {
	mu        sync.Mutex
	tables    map[string]*fakeTable
	mutations []string
	failStep  string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{tables: map[string]*fakeTable{}}
}

func (f *fakeCatalog) opener() CatalogOpener {
	return func(context.Context, *sql.DB, string) (Catalog, func() error, error) {
		return f, func() error { return nil }, nil
	}
}

// seed creates a table with the given nullable columns and rows, bypassing
// the mutation log.
func (f *fakeCatalog) seed(table string, cols []string, rows ...map[string]any) *fakeTable {
	t := newFakeTable()
	t.rows = rows
	for _, c := range cols {
		t.cols[c] = &fakeColumn{nullable: true}
	}
	f.tables[table] = t
	return t
}

func (f *fakeCatalog) record(step, table, detail string) error {
	if step == f.failStep {
		return fmt.Errorf("permission denied for %s", table)
	}
	f.mutations = append(f.mutations, step+" "+table+" "+detail)
	return nil
}

// snapshot renders the full catalog and data so two runs can be compared.
func (f *fakeCatalog) snapshot() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.tables))
	for n := range f.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	out := ""
	for _, n := range names {
		t := f.tables[n]
		cols := make([]string, 0, len(t.cols))
		for c := range t.cols {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		out += n + ":"
		for _, c := range cols {
			out += fmt.Sprintf(" %s(null=%v,def=%q)", c, t.cols[c].nullable, t.cols[c].def)
		}
		idx := make([]string, 0, len(t.indexes))
		for i := range t.indexes {
			idx = append(idx, i)
		}
		sort.Strings(idx)
		out += fmt.Sprintf(" idx=%v rows=%v\n", idx, t.rows)
	}
	return out
}

func (f *fakeCatalog) Inspect(_ context.Context, table string) (TableState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := TableState{Columns: map[string]ColumnState{}, Indexes: map[string]bool{}, UniqueOn: map[string]bool{}}
	t, ok := f.tables[table]
	if !ok {
		return st, nil
	}
	st.Exists = true
	for name, c := range t.cols {
		st.Columns[name] = ColumnState{Nullable: c.nullable, Default: c.def}
	}
	for name := range t.indexes {
		st.Indexes[name] = true
	}
	for key := range t.unique {
		st.UniqueOn[key] = true
	}
	return st, nil
}

func (f *fakeCatalog) HasNulls(_ context.Context, table, column string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.tables[table].rows {
		if r[column] == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCatalog) HasDuplicates(_ context.Context, table string, columns []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasDuplicatesLocked(table, columns), nil
}

func (f *fakeCatalog) hasDuplicatesLocked(table string, columns []string) bool {
	seen := map[string]bool{}
	for _, r := range f.tables[table].rows {
		key := ""
		skip := false
		for _, c := range columns {
			if r[c] == nil {
				skip = true
				break
			}
			key += fmt.Sprintf("%v\x00", r[c])
		}
		if skip {
			continue
		}
		if seen[key] {
			return true
		}
		seen[key] = true
	}
	return false
}

func (f *fakeCatalog) CreateTable(_ context.Context, t Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tables[t.Name]; ok {
		return fmt.Errorf("relation %q already exists", t.Name)
	}
	if err := f.record(stepCreate, t.Name, ""); err != nil {
		return err
	}
	ft := newFakeTable()
	for _, c := range t.Columns {
		ft.cols[c.Name] = &fakeColumn{nullable: !c.NotNull, def: c.Default}
	}
	f.tables[t.Name] = ft
	return nil
}

func (f *fakeCatalog) RenameColumn(_ context.Context, table, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[table]
	if _, ok := t.cols[to]; ok {
		return fmt.Errorf("column %q already exists", to)
	}
	c, ok := t.cols[from]
	if !ok {
		return fmt.Errorf("column %q does not exist", from)
	}
	if err := f.record(stepRename, table, from+"->"+to); err != nil {
		return err
	}
	delete(t.cols, from)
	t.cols[to] = c
	for _, r := range t.rows {
		if v, ok := r[from]; ok {
			r[to] = v
			delete(r, from)
		}
	}
	return nil
}

func (f *fakeCatalog) AddColumn(_ context.Context, table string, c Column) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[table]
	if _, ok := t.cols[c.Name]; ok {
		return fmt.Errorf("column %q already exists", c.Name)
	}
	if err := f.record(stepAdd, table, c.Name); err != nil {
		return err
	}
	t.cols[c.Name] = &fakeColumn{nullable: !c.Identity}
	for i, r := range t.rows {
		if c.Identity {
			r[c.Name] = int64(i + 1)
		} else {
			r[c.Name] = nil
		}
	}
	return nil
}

func (f *fakeCatalog) Backfill(_ context.Context, table, column, expr string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(stepBackfill, table, column); err != nil {
		return 0, err
	}
	t := f.tables[table]
	_, fromColumn := t.cols[expr]
	var n int64
	for _, r := range t.rows {
		if r[column] != nil {
			continue
		}
		if fromColumn {
			r[column] = r[expr]
		} else {
			r[column] = expr
		}
		n++
	}
	return n, nil
}

func (f *fakeCatalog) SetDefault(_ context.Context, table, column, expr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(stepDefault, table, column); err != nil {
		return err
	}
	f.tables[table].cols[column].def = expr
	return nil
}

func (f *fakeCatalog) SetNotNull(_ context.Context, table, column string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[table]
	for _, r := range t.rows {
		if r[column] == nil {
			return fmt.Errorf("column %q of relation %q contains null values", column, table)
		}
	}
	if err := f.record(stepTighten, table, column); err != nil {
		return err
	}
	t.cols[column].nullable = false
	return nil
}

func (f *fakeCatalog) CreateIndex(_ context.Context, table string, idx Index) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[table]
	if _, ok := t.indexes[idx.Name]; ok {
		return fmt.Errorf("relation %q already exists", idx.Name)
	}
	for _, ic := range idx.Columns {
		if _, ok := t.cols[ic.Name]; !ok {
			return fmt.Errorf("column %q does not exist", ic.Name)
		}
	}
	if idx.Unique {
		cols := make([]string, 0, len(idx.Columns))
		for _, ic := range idx.Columns {
			cols = append(cols, ic.Name)
		}
		if f.hasDuplicatesLocked(table, cols) {
			return fmt.Errorf("could not create unique index %q", idx.Name)
		}
	}
	if err := f.record(stepIndex, table, idx.Name); err != nil {
		return err
	}
	t.indexes[idx.Name] = idx.Columns
	if idx.Unique {
		t.unique[idx.key()] = true
	}
	return nil
}
