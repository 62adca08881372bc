// Package router is the runtime dispatch boundary for sharded tables.
//
// Every call names its shard through an explicit RoutingContext value.
// Nothing about the target table is stored on shared model state, so
// concurrent requests for different shards never interfere.
package router

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/tableshard/internal/catalog"
	"github.com/roach88/tableshard/internal/ddl"
	"github.com/roach88/tableshard/internal/plan"
	"github.com/roach88/tableshard/internal/schema"
)

// DefaultBatchSize is used by BulkInsert when batchSize is not positive.
const DefaultBatchSize = 5

// TimeLayout is how time values are written into inserts.
const TimeLayout = "2006-01-02 15:04:05"

var (
	// ErrNoRows is returned by BulkInsert for an empty row list.
	ErrNoRows = errors.New("no rows to insert")

	// ErrEmptyRow is returned when a row has no non-nil values.
	ErrEmptyRow = errors.New("row has no values")
)

// RoutingContext selects one shard of a base table.
type RoutingContext struct {
	Base   string
	Suffix string
}

// For routes to a shard of a registered model.
func For(model plan.Model, suffix string) RoutingContext {
	return RoutingContext{Base: model.Table, Suffix: suffix}
}

// Table returns the physical shard table name.
func (rc RoutingContext) Table() string {
	return schema.ShardTableName(rc.Base, rc.Suffix)
}

// Bind returns a table binding for the shard.
func (rc RoutingContext) Bind(columns ...string) Binding {
	return Binding{Table: rc.Table(), Columns: columns}
}

// Binding is an explicit table binding for query builders.
type Binding struct {
	Table   string
	Columns []string
}

// Select renders a SELECT of the bound columns, or * when none are bound.
// where is appended verbatim when non-empty.
func (b Binding) Select(where string) string {
	cols := "*"
	if len(b.Columns) > 0 {
		quoted := make([]string, len(b.Columns))
		for i, c := range b.Columns {
			quoted[i] = ddl.QuoteIdent(c)
		}
		cols = strings.Join(quoted, ", ")
	}
	q := fmt.Sprintf("SELECT %s FROM %s", cols, ddl.QuoteIdent(b.Table))
	if where != "" {
		q += " WHERE " + where
	}
	return q
}

// Row is one record to insert, keyed by column name.
type Row map[string]any

// Router dispatches inserts and table operations to shard tables.
type Router struct {
	db      *sql.DB
	catalog catalog.Catalog
	exec    ddl.Executor
	logger  *slog.Logger
}

// New creates a router over a MySQL connection pool.
func New(db *sql.DB, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		db:      db,
		catalog: catalog.NewMySQL(db),
		exec:    ddl.NewSQLExecutor(db),
		logger:  logger,
	}
}

// NewWith creates a router from explicit parts. db is only used for
// inserts and queries.
func NewWith(db *sql.DB, cat catalog.Catalog, exec ddl.Executor, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{db: db, catalog: cat, exec: exec, logger: logger}
}

// Query runs a SELECT built from a binding.
func (r *Router) Query(ctx context.Context, b Binding, where string, args ...any) (*sql.Rows, error) {
	q := b.Select(where)
	r.logger.Debug("sql> "+q, "shard", b.Table)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", b.Table, err)
	}
	return rows, nil
}

// normalize converts a value for insertion. ok is false for nil values,
// which are left out of the insert.
func normalize(v any) (value any, ok bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case bool:
		if x {
			return int64(1), true
		}
		return int64(0), true
	case time.Time:
		return x.Format(TimeLayout), true
	case *time.Time:
		if x == nil {
			return nil, false
		}
		return x.Format(TimeLayout), true
	default:
		return v, true
	}
}

// columns returns the sorted names of a row's non-nil values.
func (row Row) columns() []string {
	cols := make([]string, 0, len(row))
	for k, v := range row {
		if _, ok := normalize(v); ok {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}

func insertSQL(table string, cols []string, rows int, ignore bool) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ddl.QuoteIdent(c)
	}
	group := "(" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"
	groups := make([]string, rows)
	for i := range groups {
		groups[i] = group
	}

	verb := "INSERT INTO"
	if ignore {
		verb = "INSERT IGNORE INTO"
	}
	return fmt.Sprintf("%s %s (%s) VALUES %s",
		verb, ddl.QuoteIdent(table), strings.Join(quoted, ","), strings.Join(groups, ","))
}

// Insert writes one row into the shard, ignoring duplicate-key conflicts.
func (r *Router) Insert(ctx context.Context, rc RoutingContext, row Row) error {
	cols := row.columns()
	if len(cols) == 0 {
		return ErrEmptyRow
	}
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i], _ = normalize(row[c])
	}

	table := rc.Table()
	q := insertSQL(table, cols, 1, true)
	r.logger.Debug("sql> "+q, "shard", table)
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// BulkInsert writes rows in batches of batchSize, one multi-row statement
// per batch. Columns are taken from the first row; values another row
// lacks are inserted as NULL. The first failing batch stops the insert.
func (r *Router) BulkInsert(ctx context.Context, rc RoutingContext, rows []Row, batchSize int, ignoreConflicts bool) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	cols := rows[0].columns()
	if len(cols) == 0 {
		return ErrEmptyRow
	}

	table := rc.Table()
	for i, chunk := range Chunks(rows, batchSize) {
		args := make([]any, 0, len(chunk)*len(cols))
		for _, row := range chunk {
			for _, c := range cols {
				v, _ := normalize(row[c])
				args = append(args, v)
			}
		}
		q := insertSQL(table, cols, len(chunk), ignoreConflicts)
		r.logger.Debug("sql> "+q, "shard", table, "batch", i)
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("bulk insert into %s (batch %d): %w", table, i, err)
		}
	}
	return nil
}

// ShardExists reports whether the shard table exists.
func (r *Router) ShardExists(ctx context.Context, rc RoutingContext) (bool, error) {
	return r.TableExists(ctx, rc.Table())
}

// TableExists reports whether a table exists in the connected database.
func (r *Router) TableExists(ctx context.Context, table string) (bool, error) {
	tables, err := r.catalog.Tables(ctx, table)
	if err != nil {
		return false, fmt.Errorf("table exists %s: %w", table, err)
	}
	for _, t := range tables {
		if t == table {
			return true, nil
		}
	}
	return false, nil
}

// CopyTable creates dest with the structure of source, indexes and unique
// constraints included. An existing dest is left alone.
func (r *Router) CopyTable(ctx context.Context, source, dest string) error {
	return r.exec.Exec(ctx, ddl.Statement{Kind: ddl.CreateTableLike, Table: dest, RefTable: source})
}

// Chunks splits items into consecutive slices of at most size elements.
func Chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
