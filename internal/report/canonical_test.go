package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableshard/internal/schema"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", nil, "null"},
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"string slice", []string{"a", "b"}, `["a","b"]`},
		{"empty object", map[string]any{}, "{}"},
		{"no html escaping", "a<b>&c", `"a<b>&c"`},
		{"escapes", "q\"\\\n\t\x01", `"q\"\\\n\t\u0001"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"b": 1, "a": 2},
		"beta":  []any{"x"},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":["x"],"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Order(t *testing.T) {
	// U+FF61 precedes U+1F600 by code point but follows it in UTF-16,
	// where the emoji is a surrogate pair starting 0xD83D.
	obj := map[string]any{"\U0001F600": 1, "｡": 2}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"｡\":2}", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	result, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalUnsupported(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"f": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `object["f"]`)
	assert.Contains(t, err.Error(), "float64")
}

func TestReportMarshalJSON(t *testing.T) {
	r := &Report{RunID: "run-1"}
	r.Add(Entry{
		Category:  schema.CategoryAddOrAlter,
		Table:     "app_lead",
		Field:     "note",
		Shard:     "app_lead_1",
		Statement: "ALTER TABLE `app_lead_1` ADD COLUMN `note` longtext",
		Status:    StatusApplied,
	}, Entry{
		Category: schema.CategoryRename,
		Table:    "app_lead",
		Status:   StatusWarning,
	})

	data, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"entries":[`+
			`{"category":"add_or_alter","field":"note","shard":"app_lead_1","statement":"ALTER TABLE `+"`app_lead_1` ADD COLUMN `note` longtext"+`","status":"applied","table":"app_lead"},`+
			`{"category":"rename","status":"warning","table":"app_lead"}`+
			`],"run_id":"run-1"}`,
		string(data))
}

func TestReportCanonicalOmitsEmptyRunID(t *testing.T) {
	r := &Report{}
	assert.Equal(t, map[string]any{"entries": []any{}}, r.Canonical())
}
