// Package catalog answers questions about live table structure and finds
// the physical shard tables of a base table.
//
// All lookups are read-only. "Not found" is an empty result, never an
// error; errors are reserved for connection and query failures.
package catalog

import (
	"context"

	"github.com/roach88/tableshard/internal/schema"
)

// Catalog is the read-only view of the database catalog.
type Catalog interface {
	// Column returns the named column, or nil if the table lacks it.
	Column(ctx context.Context, table, column string) (*schema.Column, error)

	// Indexes returns single-column, non-primary indexes on column,
	// excluding composite unique indexes named with the _uniq convention.
	Indexes(ctx context.Context, table, column string) ([]schema.Index, error)

	// ForeignKeys returns foreign-key constraints on column.
	ForeignKeys(ctx context.Context, table, column string) ([]schema.ForeignKey, error)

	// UniqueConstraints returns the names of all unique constraints on table.
	UniqueConstraints(ctx context.Context, table string) ([]string, error)

	// Tables returns base tables whose name starts with prefix, sorted.
	Tables(ctx context.Context, prefix string) ([]string, error)
}

// Resolution is the outcome of resolving a logical field to a column.
type Resolution struct {
	Column     *schema.Column
	ForeignKey bool // found through the <field>_id convention
}

// Found reports whether any column matched.
func (r Resolution) Found() bool {
	return r.Column != nil
}

// Name returns the resolved column name, or "" if nothing matched.
func (r Resolution) Name() string {
	if r.Column == nil {
		return ""
	}
	return r.Column.Name
}

// ResolveField looks up field on table, falling back to the foreign-key
// column <field>_id when no plain column exists.
func ResolveField(ctx context.Context, c Catalog, table, field string) (Resolution, error) {
	col, err := c.Column(ctx, table, field)
	if err != nil {
		return Resolution{}, err
	}
	if col != nil {
		return Resolution{Column: col}, nil
	}

	col, err = c.Column(ctx, table, schema.ForeignKeyColumn(field))
	if err != nil {
		return Resolution{}, err
	}
	if col != nil {
		return Resolution{Column: col, ForeignKey: true}, nil
	}
	return Resolution{}, nil
}

// HasColumn reports whether table has column.
func HasColumn(ctx context.Context, c Catalog, table, column string) (bool, error) {
	col, err := c.Column(ctx, table, column)
	if err != nil {
		return false, err
	}
	return col != nil, nil
}

// UniqConstraints returns the unique constraints on table that follow the
// _uniq naming convention.
func UniqConstraints(ctx context.Context, c Catalog, table string) ([]string, error) {
	names, err := c.UniqueConstraints(ctx, table)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if schema.IsUniqName(n) {
			out = append(out, n)
		}
	}
	return out, nil
}
