package migrate

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableshard/internal/journal"
	"github.com/roach88/tableshard/internal/plan"
	"github.com/roach88/tableshard/internal/report"
	"github.com/roach88/tableshard/internal/schema"
	"github.com/roach88/tableshard/internal/testutil"
)

type funcSource func(ctx context.Context, p *plan.Plan) error

func (f funcSource) MigrateSource(ctx context.Context, p *plan.Plan) error { return f(ctx, p) }

func leadRegistry() *plan.Registry {
	return plan.NewRegistry(
		plan.Model{Name: "Lead", AppLabel: "app", Sharded: true},
		plan.Model{Name: "user", AppLabel: "app"},
	)
}

// leadDB has a source table and two shards, none with a status column.
func leadDB() *testutil.FakeDB {
	db := testutil.NewFakeDB()
	db.CreateTable("app_lead", testutil.Col("name", "varchar(100)", false))
	db.CloneTable("app_lead", "app_lead_1", "app_lead_2")
	db.CreateTable("app_user")
	return db
}

func addStatusPlan() *plan.Plan {
	return &plan.Plan{Migrations: []plan.Migration{{
		App:  "app",
		Name: "0002_lead_status",
		Operations: []plan.Operation{{
			Op:    plan.OpAddField,
			Model: "lead",
			Name:  "status",
			Field: &plan.FieldDef{Kind: "CharField", Default: schema.LiteralDefault("new")},
		}},
	}}}
}

// addStatusSource plays the host framework migrating the source table.
func addStatusSource(db *testutil.FakeDB) funcSource {
	return func(ctx context.Context, p *plan.Plan) error {
		return db.Exec(ctx, ddlAddStatus)
	}
}

func newTestOrchestrator(db *testutil.FakeDB, source SourceMigrator, out *bytes.Buffer, opts Options) *Orchestrator {
	opts.Out = out
	opts.RunIDs = testutil.NewFixedRunIDs("run-1")
	opts.Clock = testutil.NewDeterministicClock()
	return New(leadRegistry(), db, db, source, opts)
}

func TestRun_AddsColumnToEveryShard(t *testing.T) {
	db := leadDB()
	var out bytes.Buffer
	o := newTestOrchestrator(db, addStatusSource(db), &out, Options{})

	rep, err := o.Run(context.Background(), addStatusPlan())
	require.NoError(t, err)

	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, []string{
		"ALTER TABLE `app_lead_1` ADD COLUMN `status` varchar(20) DEFAULT \"new\"",
		"ALTER TABLE `app_lead_2` ADD COLUMN `status` varchar(20) DEFAULT \"new\"",
	}, rep.Statements())
	assert.False(t, rep.HasFailures())

	assert.Equal(t, "Sharded models: [lead]\nMigrating shards...\nFinished!\n", out.String())

	state, _ := o.State()
	assert.Equal(t, StateDone, state)

	assert.Empty(t, db.Diff("app_lead", "app_lead_1"))
	assert.Empty(t, db.Diff("app_lead", "app_lead_2"))
}

func TestRun_NothingToApply(t *testing.T) {
	db := leadDB()
	var out bytes.Buffer
	o := newTestOrchestrator(db, nil, &out, Options{SkipSource: true})

	p := &plan.Plan{Migrations: []plan.Migration{{
		App:        "app",
		Name:       "0003_user_email",
		Operations: []plan.Operation{{Op: plan.OpAddField, Model: "user", Name: "email"}},
	}}}

	rep, err := o.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, rep.Entries)
	assert.Equal(t, "Sharded models: [lead]\nNo shard migrations to apply.\n", out.String())
	assert.Empty(t, db.Executed())
}

func TestRun_SourceFailureStopsRun(t *testing.T) {
	db := leadDB()
	var out bytes.Buffer
	boom := errors.New("syntax error")
	failing := funcSource(func(context.Context, *plan.Plan) error { return boom })

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	o := newTestOrchestrator(db, failing, &out, Options{Journal: j})

	_, err = o.Run(context.Background(), addStatusPlan())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, db.Executed())

	run, err := j.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, journal.RunFailed, run.Status)
}

func TestRun_DryRunPlansWithoutExecuting(t *testing.T) {
	db := leadDB()
	// The host has already migrated the source.
	require.NoError(t, db.Exec(context.Background(), ddlAddStatus))
	before := len(db.Executed())

	called := false
	source := funcSource(func(context.Context, *plan.Plan) error {
		called = true
		return nil
	})
	var out bytes.Buffer
	o := newTestOrchestrator(db, source, &out, Options{DryRun: true, SkipSource: true})

	rep, err := o.Run(context.Background(), addStatusPlan())
	require.NoError(t, err)

	assert.False(t, called, "dry run never migrates the source")
	assert.Len(t, db.Executed(), before)
	require.Len(t, rep.Entries, 2)
	for _, e := range rep.Entries {
		assert.Equal(t, report.StatusPlanned, e.Status)
	}
}

func TestRun_DryRunRequiresMigratedSource(t *testing.T) {
	db := leadDB()
	called := false
	source := funcSource(func(context.Context, *plan.Plan) error {
		called = true
		return nil
	})

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	var out bytes.Buffer
	o := newTestOrchestrator(db, source, &out, Options{DryRun: true, Journal: j})

	rep, err := o.Run(context.Background(), addStatusPlan())
	require.ErrorIs(t, err, ErrDryRunNeedsMigratedSource)
	assert.Nil(t, rep)
	assert.False(t, called)
	assert.Empty(t, out.String())
	assert.Empty(t, db.Executed())

	runs, err := j.Runs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs, "a rejected dry run is not journaled")
}

func TestRun_NoOpReportedBeforeSourceMigration(t *testing.T) {
	db := leadDB()
	var out bytes.Buffer
	source := funcSource(func(context.Context, *plan.Plan) error {
		out.WriteString("source migrated\n")
		return nil
	})
	o := newTestOrchestrator(db, source, &out, Options{})

	p := &plan.Plan{Migrations: []plan.Migration{{
		App:        "app",
		Name:       "0003_user_email",
		Operations: []plan.Operation{{Op: plan.OpAddField, Model: "user", Name: "email"}},
	}}}

	_, err := o.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "Sharded models: [lead]\nNo shard migrations to apply.\nsource migrated\n", out.String())
}

func TestRun_NoShardsReported(t *testing.T) {
	db := testutil.NewFakeDB()
	db.CreateTable("app_lead", testutil.Col("name", "varchar(100)", false))
	var out bytes.Buffer
	o := newTestOrchestrator(db, addStatusSource(db), &out, Options{})

	rep, err := o.Run(context.Background(), addStatusPlan())
	require.NoError(t, err)

	require.Len(t, rep.Entries, 1)
	assert.Equal(t, schema.KindNoShardsFound, rep.Entries[0].ErrorKind)
	assert.Equal(t, report.StatusWarning, rep.Entries[0].Status)
	assert.False(t, rep.HasFailures())
	assert.Contains(t, out.String(), "No sharded tables for app_lead.\n")
}

func TestRun_ShardFailureIsolatedAndJournaled(t *testing.T) {
	db := leadDB()
	db.ExecErrors["app_lead_1"] = errors.New("lock wait timeout")

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	var out bytes.Buffer
	o := newTestOrchestrator(db, addStatusSource(db), &out, Options{Journal: j, PlanName: "plan.yaml", Database: "default"})

	rep, err := o.Run(context.Background(), addStatusPlan())
	require.NoError(t, err)

	require.True(t, rep.HasFailures())
	failures := rep.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "app_lead_1", failures[0].Shard)
	assert.Equal(t, schema.KindStatementFailure, failures[0].ErrorKind)

	// The other shard still converged.
	assert.Empty(t, db.Diff("app_lead", "app_lead_2"))

	ctx := context.Background()
	run, err := j.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, journal.RunFailed, run.Status)
	assert.Equal(t, "plan.yaml", run.Plan)

	entries, err := j.Entries(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rep.Entries, entries)
}

func TestRun_CategoriesInOrder(t *testing.T) {
	db := leadDB()
	ctx := context.Background()
	// Source after the host migration: status added, name renamed to title,
	// a composite constraint on (title, status).
	require.NoError(t, db.Exec(ctx, ddlAddStatus))
	db.AddIndex("app_lead_1", "name_status_uniq", true, "name")
	require.NoError(t, db.Exec(ctx, ddlRenameName))

	p := &plan.Plan{Migrations: []plan.Migration{{
		App:  "app",
		Name: "0004_mixed",
		Operations: []plan.Operation{
			{Op: plan.OpRenameField, Model: "lead", OldName: "name", NewName: "title"},
			{Op: plan.OpAlterUniqueTogether, Model: "lead", HasUniqueTogether: true},
			{Op: plan.OpAlterUniqueTogether, Model: "lead", HasUniqueTogether: true, UniqueTogether: [][]string{{"status"}}},
			{Op: plan.OpAddField, Model: "lead", Name: "status", Field: &plan.FieldDef{Kind: "CharField", Default: schema.LiteralDefault("new")}},
		},
	}}}

	var out bytes.Buffer
	o := newTestOrchestrator(db, nil, &out, Options{SkipSource: true})
	rep, err := o.Run(ctx, p)
	require.NoError(t, err)
	require.False(t, rep.HasFailures(), "%v", rep.Failures())

	assert.Equal(t, "Sharded models: [lead]\n"+
		"Migrating shards...\n"+
		"Finished!\n"+
		"Migrating unique together on shards...\n"+
		"Finished!\n"+
		"Migrating remove unique together on shards...\n"+
		"Finished!\n"+
		"Migrating field name change on shards...\n"+
		"Finished!\n", out.String())

	var categories []schema.Category
	for _, e := range rep.Entries {
		if len(categories) == 0 || categories[len(categories)-1] != e.Category {
			categories = append(categories, e.Category)
		}
	}
	assert.Equal(t, []schema.Category{
		schema.CategoryAddOrAlter,
		schema.CategoryUniqueAdd,
		schema.CategoryUniqueRemove,
		schema.CategoryRename,
	}, categories)
}

func TestRun_UnsupportedFieldReported(t *testing.T) {
	db := leadDB()
	var out bytes.Buffer
	o := newTestOrchestrator(db, nil, &out, Options{SkipSource: true})

	p := &plan.Plan{Migrations: []plan.Migration{{
		App:  "app",
		Name: "0005_tags",
		Operations: []plan.Operation{{
			Op: plan.OpAddField, Model: "lead", Name: "tags",
			Field: &plan.FieldDef{Kind: plan.FieldManyToMany},
		}},
	}}}

	rep, err := o.Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, schema.KindUnsupportedFieldKind, rep.Entries[0].ErrorKind)
	assert.Equal(t, report.StatusWarning, rep.Entries[0].Status)
	assert.Empty(t, db.Executed())
}
