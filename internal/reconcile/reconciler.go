package reconcile

import (
	"context"
	"log/slog"

	"github.com/roach88/tableshard/internal/catalog"
	"github.com/roach88/tableshard/internal/ddl"
	"github.com/roach88/tableshard/internal/plan"
	"github.com/roach88/tableshard/internal/report"
	"github.com/roach88/tableshard/internal/schema"
)

// Options configures a Reconciler.
type Options struct {
	// DryRun renders and reports statements without executing them.
	DryRun bool

	// Logger receives statement and failure logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Reconciler diffs shards against their source table and applies the
// corrective DDL.
type Reconciler struct {
	catalog  catalog.Catalog
	locator  *catalog.Locator
	exec     ddl.Executor
	registry *plan.Registry
	dryRun   bool
	logger   *slog.Logger
}

// New creates a reconciler. The registry resolves foreign-key targets by
// model name and tells the locator which tables are other base tables; it
// may be nil.
func New(cat catalog.Catalog, exec ddl.Executor, registry *plan.Registry, opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var known []string
	if registry != nil {
		known = registry.Tables()
	}
	return &Reconciler{
		catalog:  cat,
		locator:  catalog.NewLocator(cat, known...),
		exec:     exec,
		registry: registry,
		dryRun:   opts.DryRun,
		logger:   logger,
	}
}

// pass holds the state of reconciling one work item.
type pass struct {
	r        *Reconciler
	category schema.Category
	table    string
	field    string
	entries  []report.Entry

	// broken marks shards that lost their connection during this item.
	broken map[string]bool
}

func (r *Reconciler) newPass(category schema.Category, table, field string) *pass {
	return &pass{
		r:        r,
		category: category,
		table:    table,
		field:    field,
		broken:   map[string]bool{},
	}
}

// shards locates the shard tables of the pass's base table. ok is false
// when there is nothing to do.
func (p *pass) shards(ctx context.Context) (shards []string, ok bool) {
	shards, err := p.r.locator.Locate(ctx, p.table)
	if err != nil {
		p.fail("", "", err)
		return nil, false
	}
	if len(shards) == 0 {
		p.r.logger.Info("no sharded tables", "table", p.table)
		p.warn(schema.NewNoShardsError(p.table))
		return nil, false
	}
	return shards, true
}

func (p *pass) usable(shard string) bool {
	return !p.broken[shard]
}

// apply executes one statement and records its outcome. It returns true if
// the statement was applied, or planned in a dry run.
func (p *pass) apply(ctx context.Context, stmt ddl.Statement) bool {
	query := stmt.SQL()
	if p.broken[stmt.Table] {
		p.entries = append(p.entries, report.Entry{
			Category:  p.category,
			Table:     p.table,
			Field:     p.field,
			Shard:     stmt.Table,
			Statement: query,
			Status:    report.StatusSkipped,
			ErrorKind: schema.KindConnectionFailure,
			Error:     "shard skipped after connection failure",
		})
		return false
	}

	p.r.logger.Debug("sql> "+query,
		"category", p.category,
		"table", p.table,
		"shard", stmt.Table)

	status := report.StatusPlanned
	if !p.r.dryRun {
		if err := p.r.exec.Exec(ctx, stmt); err != nil {
			p.fail(stmt.Table, query, err)
			return false
		}
		status = report.StatusApplied
	}

	p.entries = append(p.entries, report.Entry{
		Category:  p.category,
		Table:     p.table,
		Field:     p.field,
		Shard:     stmt.Table,
		Statement: query,
		Status:    status,
	})
	return true
}

// fail records a failure. A connection failure marks the shard broken for
// the rest of this work item.
func (p *pass) fail(shard, statement string, err error) {
	se := &schema.Error{
		Kind:      ddl.Classify(err),
		Message:   "statement failed",
		Table:     p.table,
		Shard:     shard,
		Field:     p.field,
		Statement: statement,
		Err:       err,
	}
	if statement == "" {
		se.Message = "catalog lookup failed"
	}

	if se.Kind == schema.KindConnectionFailure && shard != "" {
		p.broken[shard] = true
	}

	p.r.logger.Error(se.Message,
		"kind", se.Kind,
		"category", p.category,
		"table", p.table,
		"shard", shard,
		"field", p.field,
		"sql", statement,
		"errno", ddl.MySQLErrorNumber(err),
		"error", err)

	p.entries = append(p.entries, report.FromError(p.category, report.StatusFailed, unwrapTyped(se)))
}

// unwrapTyped keeps the inner kind and message when the executor already
// returned a typed error, filling in the pass context.
func unwrapTyped(se *schema.Error) *schema.Error {
	inner, ok := se.Err.(*schema.Error)
	if !ok {
		return se
	}
	out := *inner
	out.Table = se.Table
	out.Field = se.Field
	if out.Shard == "" {
		out.Shard = se.Shard
	}
	if out.Statement == "" {
		out.Statement = se.Statement
	}
	return &out
}

func (p *pass) warn(err *schema.Error) {
	if err.Field == "" {
		err.Field = p.field
	}
	p.r.logger.Warn(err.Message, "kind", err.Kind, "table", err.Table, "shard", err.Shard, "field", err.Field)
	p.entries = append(p.entries, report.FromError(p.category, report.StatusWarning, err))
}
