package harness

import (
	"bytes"
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/go-sql-driver/mysql"

	"github.com/roach88/tableshard/internal/journal"
	"github.com/roach88/tableshard/internal/migrate"
	"github.com/roach88/tableshard/internal/plan"
	"github.com/roach88/tableshard/internal/schema"
	"github.com/roach88/tableshard/internal/testutil"
)

// DefaultRunID is the run id of scenarios that do not set one.
const DefaultRunID = "test-run-1"

// Harness is the test execution engine.
// It runs scenarios against a fake database with a deterministic clock and
// run ids, recording into an in-memory journal.
type Harness struct {
	scenario *Scenario
	db       *testutil.FakeDB
	journal  *journal.Journal
	clock    *testutil.DeterministicClock
	runIDs   *testutil.FixedRunIDs
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh fake database and journal for isolation.
//
// Execution flow:
// 1. Create the tables and clone their shards
// 2. Run the orchestrator over the plan; the source migration swaps in
// the scenario's source definitions, or a dry run starts from them
// 3. Collect the report, executed SQL and journal status
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}

	h := &Harness{
		scenario: scenario,
		db:       testutil.NewFakeDB(),
		journal:  j,
		clock:    testutil.NewDeterministicClock(),
		runIDs:   testutil.NewFixedRunIDs(runID),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	h.createTables(scenario.Tables)
	if scenario.DryRun {
		// A dry run only ever sees a source the host already migrated.
		h.createTables(scenario.Source)
	}
	h.injectFailures()

	ctx := context.Background()
	var out bytes.Buffer
	orch := migrate.New(h.registry(), h.db, h.db, h, migrate.Options{
		PlanName:   scenario.Name,
		DryRun:     scenario.DryRun,
		SkipSource: scenario.DryRun,
		Out:        &out,
		Logger:     h.logger,
		Journal:    j,
		RunIDs:     h.runIDs,
		Clock:      h.clock,
	})

	p := scenario.Plan
	rep, err := orch.Run(ctx, &p)
	if err != nil {
		return nil, fmt.Errorf("failed to execute plan: %w", err)
	}

	result := NewResult()
	result.AddEntries(rep.Entries)
	result.Executed = append(result.Executed, h.db.SQL()...)
	result.Output = out.String()

	run, err := h.journal.Run(ctx, rep.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	result.RunStatus = run.Status

	actx := &AssertionContext{DB: h.db, Registry: h.registry(), Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// MigrateSource implements migrate.SourceMigrator by replacing the source
// tables with their post-migration definitions.
func (h *Harness) MigrateSource(_ context.Context, _ *plan.Plan) error {
	h.createTables(h.scenario.Source)
	return nil
}

func (h *Harness) registry() *plan.Registry {
	models := make([]plan.Model, len(h.scenario.Models))
	for i, m := range h.scenario.Models {
		models[i] = plan.Model{Name: m.Name, AppLabel: m.App, Table: m.Table, Sharded: m.Sharded}
	}
	return plan.NewRegistry(models...)
}

func (h *Harness) createTables(tables map[string]TableDef) {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := tables[name]
		columns := make([]schema.Column, len(def.Columns))
		for i, c := range def.Columns {
			columns[i] = schema.Column{Name: c.Name, Type: c.Type, Nullable: c.Nullable, Default: c.Default}
		}
		h.db.CreateTable(name, columns...)
		for _, idx := range def.Indexes {
			h.db.AddIndex(name, idx.Name, idx.Unique, idx.Columns...)
		}
		for i, fk := range def.ForeignKeys {
			fkName := fk.Name
			if fkName == "" {
				fkName = fmt.Sprintf("%s_ibfk_%d", name, i+1)
			}
			h.db.AddForeignKey(name, fkName, fk.Column, fk.RefTable)
		}

		shards := make([]string, len(def.Shards))
		for i, suffix := range def.Shards {
			shards[i] = schema.ShardTableName(name, suffix)
		}
		h.db.CloneTable(name, shards...)
	}
}

func (h *Harness) injectFailures() {
	for _, f := range h.scenario.Failures {
		err := failureError(f)
		if f.Table != "" {
			h.db.ExecErrors[f.Table] = err
		}
		if f.SQL != "" {
			h.db.StatementErrors[f.SQL] = err
		}
	}
}

func failureError(f FailureDef) error {
	if f.Error == "connection" {
		return fmt.Errorf("injected: %w", driver.ErrBadConn)
	}
	return &mysql.MySQLError{Number: f.Number, Message: f.Error}
}
