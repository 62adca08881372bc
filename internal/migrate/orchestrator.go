package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/tableshard/internal/catalog"
	"github.com/roach88/tableshard/internal/classify"
	"github.com/roach88/tableshard/internal/ddl"
	"github.com/roach88/tableshard/internal/journal"
	"github.com/roach88/tableshard/internal/plan"
	"github.com/roach88/tableshard/internal/reconcile"
	"github.com/roach88/tableshard/internal/report"
	"github.com/roach88/tableshard/internal/schema"
)

// State is a step of the run state machine.
type State string

const (
	StatePlanned        State = "planned"
	StateSourceMigrated State = "source_migrated"
	StateReconciling    State = "reconciling"
	StateDone           State = "done"
)

// ErrDryRunNeedsMigratedSource is returned by Run for a dry run that would
// diff shards against a source the plan has not been applied to.
var ErrDryRunNeedsMigratedSource = errors.New("dry run requires an already migrated source (SkipSource)")

// Recorder persists run progress. *journal.Journal implements it.
type Recorder interface {
	BeginRun(ctx context.Context, run journal.Run) error
	RecordEntries(ctx context.Context, runID string, entries []report.Entry) error
	FinishRun(ctx context.Context, runID, status string, finishedAt time.Time) error
}

// Options configures an Orchestrator.
type Options struct {
	// PlanName and Database are recorded in the journal.
	PlanName string
	Database string

	// DryRun reports shard statements as planned without executing them.
	// The source is never migrated, so SkipSource must also be set.
	DryRun bool

	// SkipSource assumes the source tables were already migrated.
	SkipSource bool

	// Out receives progress lines. Defaults to io.Discard.
	Out io.Writer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Journal is optional.
	Journal Recorder

	// RunIDs defaults to UUIDv7Generator.
	RunIDs RunIDGenerator

	// Clock defaults to the system clock.
	Clock Clock
}

// Orchestrator runs the classify, migrate source, reconcile shards cycle.
type Orchestrator struct {
	registry   *plan.Registry
	classifier *classify.Classifier
	reconciler *reconcile.Reconciler
	source     SourceMigrator
	opts       Options
	logger     *slog.Logger
	state      State
	category   schema.Category
}

// New creates an orchestrator. source may be nil when SkipSource is set.
func New(registry *plan.Registry, cat catalog.Catalog, exec ddl.Executor, source SourceMigrator, opts Options) *Orchestrator {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunIDs == nil {
		opts.RunIDs = UUIDv7Generator{}
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	return &Orchestrator{
		registry:   registry,
		classifier: classify.New(registry, opts.Logger),
		reconciler: reconcile.New(cat, exec, registry, reconcile.Options{DryRun: opts.DryRun, Logger: opts.Logger}),
		source:     source,
		opts:       opts,
		logger:     opts.Logger,
		state:      StatePlanned,
	}
}

// State returns the current state and, while reconciling, the category.
func (o *Orchestrator) State() (State, schema.Category) {
	return o.state, o.category
}

func (o *Orchestrator) transition(s State, c schema.Category) {
	o.state, o.category = s, c
	o.logger.Debug("run state", "state", string(s), "category", string(c))
}

func (o *Orchestrator) progress(format string, args ...any) {
	fmt.Fprintf(o.opts.Out, format+"\n", args...)
}

// Run executes one migration run and returns its report. The returned
// error is set only when the run could not proceed at all (dry run over an
// unmigrated source, journal unavailable, source migration failed); shard
// failures are in the report.
func (o *Orchestrator) Run(ctx context.Context, p *plan.Plan) (*report.Report, error) {
	if o.opts.DryRun && !o.opts.SkipSource {
		return nil, ErrDryRunNeedsMigratedSource
	}
	rep := &report.Report{RunID: o.opts.RunIDs.Generate()}
	o.transition(StatePlanned, "")

	o.progress("Sharded models: [%s]", strings.Join(o.registry.ShardedNames(), ", "))

	worklists := o.classifier.Classify(p.Operations())
	for _, skipped := range worklists.Skipped {
		rep.Add(report.FromError(schema.CategoryAddOrAlter, report.StatusWarning, skipped))
	}

	if o.opts.Journal != nil {
		err := o.opts.Journal.BeginRun(ctx, journal.Run{
			ID:        rep.RunID,
			Plan:      o.opts.PlanName,
			Database:  o.opts.Database,
			DryRun:    o.opts.DryRun,
			StartedAt: o.opts.Clock.Now(),
		})
		if err != nil {
			return rep, fmt.Errorf("journal: %w", err)
		}
		o.record(ctx, rep.RunID, rep.Entries)
	}

	if worklists.Empty() {
		o.progress("No shard migrations to apply.")
	}

	if !o.opts.SkipSource && o.source != nil {
		if err := o.source.MigrateSource(ctx, p); err != nil {
			o.finish(ctx, rep.RunID, journal.RunFailed)
			return rep, fmt.Errorf("migrate source: %w", err)
		}
	}
	o.transition(StateSourceMigrated, "")

	o.reconcile(ctx, rep, worklists)
	o.transition(StateDone, "")

	status := journal.RunSucceeded
	if rep.HasFailures() {
		status = journal.RunFailed
	}
	o.finish(ctx, rep.RunID, status)
	return rep, nil
}

var categoryHeaders = map[schema.Category]string{
	schema.CategoryAddOrAlter:   "Migrating shards...",
	schema.CategoryUniqueAdd:    "Migrating unique together on shards...",
	schema.CategoryUniqueRemove: "Migrating remove unique together on shards...",
	schema.CategoryRename:       "Migrating field name change on shards...",
}

func (o *Orchestrator) reconcile(ctx context.Context, rep *report.Report, w *schema.Worklists) {
	for _, category := range schema.Categories {
		if w.Len(category) == 0 {
			continue
		}
		o.transition(StateReconciling, category)
		o.progress("%s", categoryHeaders[category])

		for _, entries := range o.items(ctx, category, w) {
			for _, e := range entries {
				if e.ErrorKind == schema.KindNoShardsFound {
					o.progress("No sharded tables for %s.", e.Table)
				}
			}
			rep.Add(entries...)
			o.record(ctx, rep.RunID, entries)
		}
		o.progress("Finished!")
	}
}

// items runs every work item of a category, one result per item.
func (o *Orchestrator) items(ctx context.Context, category schema.Category, w *schema.Worklists) [][]report.Entry {
	var out [][]report.Entry
	switch category {
	case schema.CategoryAddOrAlter:
		for _, c := range w.AddOrAlter {
			out = append(out, o.reconciler.AddOrAlter(ctx, c))
		}
	case schema.CategoryUniqueAdd:
		for _, c := range w.UniqueAdd {
			out = append(out, o.reconciler.UniqueAdd(ctx, c))
		}
	case schema.CategoryUniqueRemove:
		for _, c := range w.UniqueRemove {
			out = append(out, o.reconciler.UniqueRemove(ctx, c))
		}
	case schema.CategoryRename:
		for _, c := range w.Renames {
			out = append(out, o.reconciler.Rename(ctx, c))
		}
	}
	return out
}

// record and finish log journal failures instead of aborting: the shard
// DDL has already been applied and must still be reported.
func (o *Orchestrator) record(ctx context.Context, runID string, entries []report.Entry) {
	if o.opts.Journal == nil {
		return
	}
	if err := o.opts.Journal.RecordEntries(ctx, runID, entries); err != nil {
		o.logger.Error("journal record failed", "run", runID, "error", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, runID, status string) {
	if o.opts.Journal == nil {
		return
	}
	if err := o.opts.Journal.FinishRun(ctx, runID, status, o.opts.Clock.Now()); err != nil {
		o.logger.Error("journal finish failed", "run", runID, "error", err)
	}
}
