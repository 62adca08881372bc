package classify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableshard/internal/plan"
	"github.com/roach88/tableshard/internal/schema"
)

func testRegistry() *plan.Registry {
	return plan.NewRegistry(
		plan.Model{Name: "lead", AppLabel: "app", Sharded: true},
		plan.Model{Name: "note", AppLabel: "app", Table: "app_lead_note", Sharded: true},
		plan.Model{Name: "user", AppLabel: "app"},
	)
}

func intPtr(n int) *int { return &n }

func TestClassify_AddOrAlter(t *testing.T) {
	ops := []plan.Operation{
		{Op: plan.OpAddField, Model: "lead", Name: "status",
			Field: &plan.FieldDef{Kind: "CharField", MaxLength: intPtr(20), Default: schema.LiteralDefault("new")}},
		{Op: plan.OpAlterField, Model: "Lead", Name: "is_active",
			Field: &plan.FieldDef{Kind: "BooleanField", Default: schema.BoolDefault(true)}},
		{Op: plan.OpRemoveField, Model: "note", Name: "body"},
	}

	w := New(testRegistry(), nil).Classify(ops)

	require.Len(t, w.AddOrAlter, 3)
	assert.Equal(t, schema.AddOrAlter{
		Table: "app_lead", Field: "status", Default: schema.LiteralDefault("new"), MaxLength: intPtr(20),
	}, w.AddOrAlter[0])
	assert.Equal(t, schema.BoolDefault(true), w.AddOrAlter[1].Default)
	assert.Equal(t, schema.AddOrAlter{Table: "app_lead_note", Field: "body"}, w.AddOrAlter[2],
		"an operation without a field carries no default information")
	assert.False(t, w.AddOrAlter[2].Default.Supplied())
}

func TestClassify_FieldWithoutDefaultIsNotProvided(t *testing.T) {
	w := New(testRegistry(), nil).Classify([]plan.Operation{
		{Op: plan.OpAddField, Model: "lead", Name: "note", Field: &plan.FieldDef{Kind: "TextField"}},
	})
	require.Len(t, w.AddOrAlter, 1)
	assert.Equal(t, schema.NotProvided(), w.AddOrAlter[0].Default)
	assert.True(t, w.AddOrAlter[0].Default.Supplied())
}

func TestClassify_IgnoresUnshardedAndUnknownModels(t *testing.T) {
	w := New(testRegistry(), nil).Classify([]plan.Operation{
		{Op: plan.OpAddField, Model: "user", Name: "email", Field: &plan.FieldDef{Kind: "EmailField"}},
		{Op: plan.OpAddField, Model: "ghost", Name: "x"},
		{Op: plan.OpCreateModel, Model: "lead"},
		{Op: plan.OpDeleteModel, Model: "lead"},
	})
	assert.True(t, w.Empty())
	assert.Empty(t, w.Skipped)
}

func TestClassify_Renames(t *testing.T) {
	w := New(testRegistry(), nil).Classify([]plan.Operation{
		{Op: plan.OpRenameField, Model: "lead", OldName: "title", NewName: "name"},
		// Half a rename is dropped, never treated as an add.
		{Op: plan.OpRenameField, Model: "lead", OldName: "orphan"},
	})
	assert.Equal(t, []schema.Rename{{Table: "app_lead", OldName: "title", NewName: "name"}}, w.Renames)
	assert.Empty(t, w.AddOrAlter)
}

func TestClassify_UniqueTogether(t *testing.T) {
	w := New(testRegistry(), nil).Classify([]plan.Operation{
		{Op: plan.OpAlterUniqueTogether, Model: "lead", HasUniqueTogether: true,
			UniqueTogether: [][]string{{"a", "b"}, {"owner", "email"}}},
		{Op: plan.OpAlterUniqueTogether, Model: "note", HasUniqueTogether: true},
		{Op: plan.OpAlterUniqueTogether, Model: "lead", HasUniqueTogether: true, UniqueTogether: [][]string{}},
	})

	assert.Equal(t, []schema.UniqueTogetherAdd{{Table: "app_lead", Fields: []string{"owner", "email"}}}, w.UniqueAdd)
	assert.Equal(t, []schema.UniqueTogetherRemove{{Table: "app_lead_note"}, {Table: "app_lead"}}, w.UniqueRemove)
	assert.Empty(t, w.AddOrAlter)
}

func TestClassify_UniqueAddCopiesFields(t *testing.T) {
	fields := []string{"owner", "email"}
	w := New(testRegistry(), nil).Classify([]plan.Operation{
		{Op: plan.OpAlterUniqueTogether, Model: "lead", HasUniqueTogether: true, UniqueTogether: [][]string{fields}},
	})
	fields[0] = "changed"
	assert.Equal(t, []string{"owner", "email"}, w.UniqueAdd[0].Fields)
}

func TestClassify_UnsupportedRelations(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	w := New(testRegistry(), logger).Classify([]plan.Operation{
		{Op: plan.OpAddField, Model: "lead", Name: "tags", Field: &plan.FieldDef{Kind: plan.FieldManyToMany}},
		{Op: plan.OpAddField, Model: "lead", Name: "profile", Field: &plan.FieldDef{Kind: plan.FieldOneToOne}},
		{Op: plan.OpAddField, Model: "lead", Name: "owner", Field: &plan.FieldDef{Kind: "ForeignKey"}},
	})

	require.Len(t, w.Skipped, 2)
	assert.Equal(t, schema.KindUnsupportedFieldKind, w.Skipped[0].Kind)
	assert.Equal(t, "tags", w.Skipped[0].Field)
	assert.Equal(t, "app_lead", w.Skipped[0].Table)
	assert.Equal(t, "profile", w.Skipped[1].Field)

	require.Len(t, w.AddOrAlter, 1)
	assert.Equal(t, "owner", w.AddOrAlter[0].Field)
	assert.Contains(t, logs.String(), "skipping unsupported field on sharded model")
}
