package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry("testdata/models.cue")
	require.NoError(t, err)

	lead, ok := r.Lookup("lead")
	require.True(t, ok)
	assert.Equal(t, Model{Name: "lead", AppLabel: "crm", Table: "crm_lead", Sharded: true}, lead)

	note, ok := r.Lookup("LeadNote")
	require.True(t, ok)
	assert.Equal(t, "crm_lead_note", note.Table)

	user, ok := r.Lookup("user")
	require.True(t, ok)
	assert.False(t, user.Sharded, "sharded defaults to false")
	assert.Equal(t, "auth_user", user.Table)

	assert.Equal(t, []string{"lead", "leadnote"}, r.ShardedNames())
	assert.Equal(t, []string{"crm_lead", "crm_lead_note"}, r.ShardedTables())
	assert.Equal(t, []string{"auth_user", "crm_lead", "crm_lead_note"}, r.Tables())
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry("testdata/missing.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read registry file")
}

func TestParseRegistry_Errors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{"syntax", "models: {", "compiling registry"},
		{"missing app", `models: lead: {sharded: true}`, "models.lead.app"},
		{"empty app", `models: lead: {app: ""}`, "validating registry"},
		{"unknown attribute", `models: lead: {app: "crm", shards: 4}`, "validating registry"},
		{"wrong type", `models: lead: {app: "crm", sharded: "yes"}`, "validating registry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry("models.cue", []byte(tt.source))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseRegistry_NoModels(t *testing.T) {
	r, err := ParseRegistry("empty.cue", []byte(""))
	require.NoError(t, err)
	assert.Empty(t, r.Models())
	assert.Empty(t, r.ShardedNames())
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(
		Model{Name: "Lead", AppLabel: "app", Sharded: true},
		Model{Name: "user", AppLabel: "app"},
		Model{Name: "LEAD", AppLabel: "app", Table: "app_lead_v2", Sharded: true},
	)

	models := r.Models()
	require.Len(t, models, 2, "re-registering a model replaces it")
	assert.Equal(t, "app_lead_v2", models[0].Table)

	assert.True(t, r.IsSharded("lead"))
	assert.True(t, r.IsSharded("Lead"))
	assert.False(t, r.IsSharded("user"))
	assert.False(t, r.IsSharded("ghost"))

	_, ok := r.Lookup("ghost")
	assert.False(t, ok)
	assert.Equal(t, "leadnote", ModelName("LeadNote"))
}
