package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tableshard/internal/plan"
)

// Scenario defines a conformance test scenario.
// A scenario describes a database before a migration, the source tables
// after the host applied it, and the plan; it then asserts on the shard
// statements and the final shard structure.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Models declares the model registry.
	Models []ModelDef `yaml:"models"`

	// Tables is the database before the migration. Each table is cloned
	// to its listed shards.
	Tables map[string]TableDef `yaml:"tables"`

	// Source replaces source table definitions when the source migration
	// runs, standing in for the host applying the plan.
	Source map[string]TableDef `yaml:"source,omitempty"`

	// Plan is the migration plan, in the plan file format.
	Plan plan.Plan `yaml:"plan"`

	// DryRun runs without executing shard statements.
	DryRun bool `yaml:"dry_run,omitempty"`

	// Failures injects errors into shard statements.
	Failures []FailureDef `yaml:"failures,omitempty"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id. Defaults to "test-run-1".
	RunID string `yaml:"run_id,omitempty"`
}

// ModelDef declares one model.
type ModelDef struct {
	Name    string `yaml:"name"`
	App     string `yaml:"app"`
	Table   string `yaml:"table,omitempty"`
	Sharded bool   `yaml:"sharded,omitempty"`
}

// TableDef describes one table. An id primary key is always added.
type TableDef struct {
	Columns     []ColumnDef     `yaml:"columns"`
	Indexes     []IndexDef      `yaml:"indexes,omitempty"`
	ForeignKeys []ForeignKeyDef `yaml:"foreign_keys,omitempty"`

	// Shards lists shard suffixes; table_<suffix> is created for each.
	Shards []string `yaml:"shards,omitempty"`
}

// ColumnDef describes one column. A missing default means none.
type ColumnDef struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Nullable bool    `yaml:"nullable,omitempty"`
	Default  *string `yaml:"default,omitempty"`
}

// IndexDef describes one index.
type IndexDef struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
}

// ForeignKeyDef describes one foreign-key constraint to <ref_table>.id.
type ForeignKeyDef struct {
	Name     string `yaml:"name"`
	Column   string `yaml:"column"`
	RefTable string `yaml:"ref_table"`
}

// FailureDef fails statements on a table, or one exact statement.
type FailureDef struct {
	Table string `yaml:"table,omitempty"`
	SQL   string `yaml:"sql,omitempty"`

	// Error is "connection" for a dropped connection, anything else for
	// a server error with Number.
	Error  string `yaml:"error"`
	Number uint16 `yaml:"number,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "statement_contains": some applied statement equals or contains SQL
	// - "statement_order": Statements appear in order
	// - "statement_count": exactly Count statements (matching SQL, if set)
	// - "converged": every shard of Table matches the source
	// - "column": a column on Table has the Expect attributes
	// - "entry": a trace event with the Expect fields exists
	// - "run_status": the journal run finished with Status
	Type string `yaml:"type"`

	// SQL is a statement or substring (statement_contains, statement_count).
	SQL string `yaml:"sql,omitempty"`

	// Statements is the expected order (statement_order).
	Statements []string `yaml:"statements,omitempty"`

	// Count is the expected number of statements (statement_count).
	Count int `yaml:"count,omitempty"`

	// Table is a source or shard table (converged, column).
	Table string `yaml:"table,omitempty"`

	// Column names the column (column).
	Column string `yaml:"column,omitempty"`

	// Expect contains expected field values (column, entry).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Status is the expected run status (run_status).
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertStatementContains = "statement_contains"
	AssertStatementOrder    = "statement_order"
	AssertStatementCount    = "statement_count"
	AssertConverged         = "converged"
	AssertColumn            = "column"
	AssertEntry             = "entry"
	AssertRunStatus         = "run_status"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario YAML document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Models) == 0 {
		return fmt.Errorf("models list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, m := range s.Models {
		if m.Name == "" || m.App == "" {
			return fmt.Errorf("models[%d]: name and app are required", i)
		}
	}

	for name, t := range s.Tables {
		if err := validateTable("tables."+name, t); err != nil {
			return err
		}
	}
	for name, t := range s.Source {
		if err := validateTable("source."+name, t); err != nil {
			return err
		}
		if len(t.Shards) > 0 {
			return fmt.Errorf("source.%s: shards belong under tables", name)
		}
	}

	for i, f := range s.Failures {
		if f.Table == "" && f.SQL == "" {
			return fmt.Errorf("failures[%d]: table or sql is required", i)
		}
		if f.Error == "" {
			return fmt.Errorf("failures[%d]: error is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateTable(path string, t TableDef) error {
	for i, c := range t.Columns {
		if c.Name == "" || c.Type == "" {
			return fmt.Errorf("%s.columns[%d]: name and type are required", path, i)
		}
	}
	for i, idx := range t.Indexes {
		if idx.Name == "" || len(idx.Columns) == 0 {
			return fmt.Errorf("%s.indexes[%d]: name and columns are required", path, i)
		}
	}
	for i, fk := range t.ForeignKeys {
		if fk.Column == "" || fk.RefTable == "" {
			return fmt.Errorf("%s.foreign_keys[%d]: column and ref_table are required", path, i)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStatementContains:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for statement_contains", index)
		}
	case AssertStatementOrder:
		if len(a.Statements) == 0 {
			return fmt.Errorf("assertions[%d]: statements list is required for statement_order", index)
		}
	case AssertStatementCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for statement_count", index)
		}
	case AssertConverged:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for converged", index)
		}
	case AssertColumn:
		if a.Table == "" || a.Column == "" {
			return fmt.Errorf("assertions[%d]: table and column are required for column", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for column", index)
		}
	case AssertEntry:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for entry", index)
		}
	case AssertRunStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for run_status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
