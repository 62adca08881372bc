package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableshard/internal/schema"
)

func TestLoadPlan(t *testing.T) {
	p, err := LoadPlan("testdata/plan.yaml")
	require.NoError(t, err)
	require.Len(t, p.Migrations, 2)
	assert.Equal(t, "0002_lead_fields", p.Migrations[0].Name)

	ops := p.Operations()
	require.Len(t, ops, 8)

	status := ops[0]
	assert.Equal(t, OpAddField, status.Op)
	require.NotNil(t, status.Field)
	assert.Equal(t, "CharField", status.Field.Kind)
	require.NotNil(t, status.Field.MaxLength)
	assert.Equal(t, 20, *status.Field.MaxLength)
	assert.Equal(t, schema.LiteralDefault("new"), status.Field.Default)
	assert.Len(t, status.SQL, 1)

	assert.Equal(t, schema.BoolDefault(false), ops[1].Field.Default)
	assert.Equal(t, schema.Null(), ops[2].Field.Default)
	assert.Equal(t, schema.NotProvided(), ops[3].Field.Default)
	assert.Nil(t, ops[3].Field.MaxLength)

	rename := ops[4]
	assert.True(t, rename.IsRename())
	assert.Equal(t, "title", rename.OldName)
	assert.Equal(t, "name", rename.NewName)
	assert.Nil(t, rename.Field)

	assert.True(t, ops[5].HasUniqueTogether)
	assert.Equal(t, [][]string{{"owner", "email"}}, ops[5].UniqueTogether)

	assert.True(t, ops[6].HasUniqueTogether, "explicit null is still the attribute")
	assert.Empty(t, ops[6].UniqueTogether)

	assert.False(t, ops[7].HasUniqueTogether)
	assert.Nil(t, ops[7].Field)
}

func TestLoadPlan_MissingFile(t *testing.T) {
	_, err := LoadPlan("testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read plan file")
}

func TestParsePlan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "migrations: []\nextra: 1\n", "failed to parse plan YAML"},
		{"missing op", "migrations: [{app: a, name: n, operations: [{model: lead}]}]\n", "operations[0]: op is required"},
		{"missing model", "migrations: [{app: a, name: n, operations: [{op: AddField}]}]\n", "operations[0]: model is required"},
		{"non-scalar default", "migrations: [{app: a, name: n, operations: [{op: AddField, model: m, field: {kind: X, default: [1]}}]}]\n", "default must be a scalar"},
		{"unknown operation key", "migrations: [{app: a, name: n, operations: [{op: AddField, model: m, bogus_key: 1}]}]\n", "field bogus_key not found in operation"},
		{"unknown field key", "migrations: [{app: a, name: n, operations: [{op: AddField, model: m, field: {kind: CharField, defualt: new}}]}]\n", "field defualt not found in field"},
		{"misspelled max_length", "migrations: [{app: a, name: n, operations: [{op: AddField, model: m, field: {kind: CharField, maxlength: 20}}]}]\n", "field maxlength not found in field"},
		{"bad unique_together", "migrations: [{app: a, name: n, operations: [{op: AlterUniqueTogether, model: m, unique_together: oops}]}]\n", "unique_together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParsePlan_UnknownKeyInBlockField(t *testing.T) {
	content := `
migrations:
  - app: crm
    name: 0004_lead_stage
    operations:
      - op: AddField
        model: lead
        name: stage
        field:
          kind: CharField
          max_length: 20
          defualt: new
`
	_, err := ParsePlan([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse plan YAML")
	assert.Contains(t, err.Error(), "line 12: field defualt not found in field")
}

func TestParsePlan_Empty(t *testing.T) {
	p, err := ParsePlan([]byte("migrations: []\n"))
	require.NoError(t, err)
	assert.Empty(t, p.Operations())
}

func TestOperation_IsRename(t *testing.T) {
	assert.True(t, (&Operation{OldName: "a", NewName: "b"}).IsRename())
	assert.False(t, (&Operation{OldName: "a"}).IsRename())
	assert.False(t, (&Operation{Name: "a"}).IsRename())
}
