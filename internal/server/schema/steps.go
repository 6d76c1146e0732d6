package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/chatkeeper/internal/logging"
)

// Step names used in logs.
const (
	stepCreate   = "create_table"
	stepRename   = "rename_column"
	stepAdd      = "add_column"
	stepBackfill = "backfill"
	stepDefault  = "set_default"
	stepTighten  = "set_not_null"
	stepIndex    = "create_index"
)

// converger applies the convergence steps of one table. Each step only runs
// when its guard holds on the current catalog state, and each step's
// postcondition is what the next step's guard relies on, so the order below
// is fixed: create, rename, add, backfill, default, tighten, index.
type converger struct {
	cat     Catalog
	table   Table
	logger  logging.Logger
	state   TableState
	applied int
}

func convergeTable(ctx context.Context, cat Catalog, t Table, logger logging.Logger) (int, error) {
	c := &converger{cat: cat, table: t, logger: logger.With("table", t.Name)}

	steps := []func(context.Context) error{
		c.ensureTable,
		c.renameLegacyColumns,
		c.addMissingColumns,
		c.backfillNulls,
		c.attachDefaults,
		c.tightenNullability,
		c.ensureIndexes,
	}
	if err := c.refresh(ctx); err != nil {
		return 0, err
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return c.applied, err
		}
	}
	return c.applied, nil
}

func (c *converger) refresh(ctx context.Context) error {
	st, err := c.cat.Inspect(ctx, c.table.Name)
	if err != nil {
		return err
	}
	c.state = st
	return nil
}

// mutated records one applied change and re-reads the catalog.
func (c *converger) mutated(ctx context.Context, step string, args ...any) error {
	c.applied++
	c.logger.Info(ctx, "schema step applied", append([]any{"step", step}, args...)...)
	return c.refresh(ctx)
}

func (c *converger) ensureTable(ctx context.Context) error {
	if c.state.Exists {
		return nil
	}
	if err := c.cat.CreateTable(ctx, c.table); err != nil {
		return fmt.Errorf("%s %s: %w", stepCreate, c.table.Name, err)
	}
	return c.mutated(ctx, stepCreate)
}

func (c *converger) renameLegacyColumns(ctx context.Context) error {
	for _, col := range c.table.Columns {
		if len(col.Legacy) == 0 || c.state.Has(col.Name) {
			continue
		}
		for _, legacy := range col.Legacy {
			if !c.state.Has(legacy) {
				continue
			}
			if err := c.cat.RenameColumn(ctx, c.table.Name, legacy, col.Name); err != nil {
				return fmt.Errorf("%s %s.%s: %w", stepRename, c.table.Name, legacy, err)
			}
			if err := c.mutated(ctx, stepRename, "from", legacy, "to", col.Name); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (c *converger) addMissingColumns(ctx context.Context) error {
	for _, col := range c.table.Columns {
		if c.state.Has(col.Name) {
			continue
		}
		if err := c.cat.AddColumn(ctx, c.table.Name, col); err != nil {
			return fmt.Errorf("%s %s.%s: %w", stepAdd, c.table.Name, col.Name, err)
		}
		if err := c.mutated(ctx, stepAdd, "column", col.Name); err != nil {
			return err
		}
	}
	return nil
}

func (c *converger) backfillNulls(ctx context.Context) error {
	for _, col := range c.table.Columns {
		expr := col.backfillExpr()
		cs, ok := c.state.Columns[col.Name]
		if expr == "" || !ok || !cs.Nullable {
			continue
		}
		hasNulls, err := c.cat.HasNulls(ctx, c.table.Name, col.Name)
		if err != nil {
			return err
		}
		if !hasNulls {
			continue
		}
		n, err := c.cat.Backfill(ctx, c.table.Name, col.Name, expr)
		if err != nil {
			return fmt.Errorf("%s %s.%s: %w", stepBackfill, c.table.Name, col.Name, err)
		}
		if err := c.mutated(ctx, stepBackfill, "column", col.Name, "rows", n); err != nil {
			return err
		}
	}
	return nil
}

// castSuffix matches the type cast the store appends when rendering a
// default, e.g. "'x'::character varying".
var castSuffix = regexp.MustCompile(`::[a-z_ ]+(\([0-9, ]*\))?(\[\])?$`)

// normalizeDefault reduces a default expression to a comparable form.
func normalizeDefault(expr string) string {
	s := strings.ToLower(strings.TrimSpace(expr))
	for {
		prev := s
		s = strings.TrimSpace(castSuffix.ReplaceAllString(s, ""))
		if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
		if s == prev {
			return s
		}
	}
}

func sameDefault(actual, want string) bool {
	return actual != "" && normalizeDefault(actual) == normalizeDefault(want)
}

// attachDefaults sets missing defaults and replaces ones that differ from
// the target expression.
func (c *converger) attachDefaults(ctx context.Context) error {
	for _, col := range c.table.Columns {
		cs, ok := c.state.Columns[col.Name]
		if col.Default == "" || !ok || sameDefault(cs.Default, col.Default) {
			continue
		}
		if err := c.cat.SetDefault(ctx, c.table.Name, col.Name, col.Default); err != nil {
			return fmt.Errorf("%s %s.%s: %w", stepDefault, c.table.Name, col.Name, err)
		}
		args := []any{"column", col.Name}
		if cs.Default != "" {
			args = append(args, "replaced", cs.Default)
		}
		if err := c.mutated(ctx, stepDefault, args...); err != nil {
			return err
		}
	}
	return nil
}

func (c *converger) tightenNullability(ctx context.Context) error {
	for _, col := range c.table.Columns {
		cs, ok := c.state.Columns[col.Name]
		if !col.NotNull || !ok || !cs.Nullable {
			continue
		}
		hasNulls, err := c.cat.HasNulls(ctx, c.table.Name, col.Name)
		if err != nil {
			return err
		}
		if hasNulls {
			c.logger.Warn(ctx, "column left nullable, rows without a value remain", "column", col.Name)
			continue
		}
		if err := c.cat.SetNotNull(ctx, c.table.Name, col.Name); err != nil {
			return fmt.Errorf("%s %s.%s: %w", stepTighten, c.table.Name, col.Name, err)
		}
		if err := c.mutated(ctx, stepTighten, "column", col.Name); err != nil {
			return err
		}
	}
	return nil
}

func (c *converger) uniqueBlocked(ctx context.Context, idx Index) (bool, error) {
	cols := make([]string, 0, len(idx.Columns))
	for _, ic := range idx.Columns {
		cols = append(cols, ic.Name)
	}
	return c.cat.HasDuplicates(ctx, c.table.Name, cols)
}

func (c *converger) ensureIndexes(ctx context.Context) error {
	for _, idx := range c.table.Indexes {
		if c.state.Indexes[idx.Name] {
			continue
		}
		ready := true
		for _, ic := range idx.Columns {
			if !c.state.Has(ic.Name) {
				ready = false
				break
			}
		}
		if !ready {
			c.logger.Debug(ctx, "index skipped, columns missing", "index", idx.Name)
			continue
		}
		if idx.Unique {
			if c.state.UniqueOn[idx.key()] {
				continue
			}
			dup, err := c.uniqueBlocked(ctx, idx)
			if err != nil {
				return err
			}
			if dup {
				c.logger.Warn(ctx, "unique index skipped, duplicate values remain", "index", idx.Name)
				continue
			}
		}
		if err := c.cat.CreateIndex(ctx, c.table.Name, idx); err != nil {
			return fmt.Errorf("%s %s: %w", stepIndex, idx.Name, err)
		}
		if err := c.mutated(ctx, stepIndex, "index", idx.Name); err != nil {
			return err
		}
	}
	return nil
}
