package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tableshard/internal/catalog"
	"github.com/roach88/tableshard/internal/plan"
	"github.com/roach88/tableshard/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.String())
		}
	}

	return buf.String()
}

// String renders an event as one golden-file line.
func (ev TraceEvent) String() string {
	target := ev.Shard
	if target == "" {
		target = ev.Table
	}
	detail := ev.Statement
	if ev.ErrorKind != "" {
		if detail != "" {
			detail = ev.ErrorKind + " " + detail
		} else {
			detail = ev.ErrorKind
		}
	}
	return fmt.Sprintf("%s %s %s: %s", ev.Status, ev.Category, target, detail)
}

// assertStatementContains checks that some applied or planned statement
// contains the expected SQL.
func assertStatementContains(result *Result, assertion Assertion) error {
	for _, stmt := range result.Statements() {
		if strings.Contains(stmt, assertion.SQL) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertStatementContains,
		Expected: fmt.Sprintf("statement containing %q", assertion.SQL),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// assertStatementOrder checks that statements appear in the specified
// order. They don't need to be consecutive.
func assertStatementOrder(result *Result, assertion Assertion) error {
	stmts := result.Statements()
	pos := 0
	for _, want := range assertion.Statements {
		found := false
		for pos < len(stmts) {
			matched := strings.Contains(stmts[pos], want)
			pos++
			if matched {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertStatementOrder,
				Expected: fmt.Sprintf("statements in order: %q", assertion.Statements),
				Actual:   fmt.Sprintf("%q missing or out of order", want),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertStatementCount checks the number of applied or planned statements,
// restricted to those containing SQL when it is set.
func assertStatementCount(result *Result, assertion Assertion) error {
	count := 0
	for _, stmt := range result.Statements() {
		if assertion.SQL == "" || strings.Contains(stmt, assertion.SQL) {
			count++
		}
	}

	if count != assertion.Count {
		what := "statements"
		if assertion.SQL != "" {
			what = fmt.Sprintf("statements containing %q", assertion.SQL)
		}
		return &AssertionError{
			Type:     AssertStatementCount,
			Expected: fmt.Sprintf("%d %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertConverged checks that every shard of a base table is structurally
// equal to it.
func assertConverged(actx *AssertionContext, result *Result, assertion Assertion) error {
	locator := catalog.NewLocator(actx.DB, actx.Registry.Tables()...)
	shards, err := locator.Locate(actx.Ctx, assertion.Table)
	if err != nil {
		return fmt.Errorf("converged: locate shards of %s: %w", assertion.Table, err)
	}

	var diffs []string
	for _, shard := range shards {
		for _, d := range actx.DB.Diff(assertion.Table, shard) {
			diffs = append(diffs, shard+": "+d)
		}
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertConverged,
			Expected: fmt.Sprintf("shards of %s match the source", assertion.Table),
			Actual:   strings.Join(diffs, "; "),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertColumn checks column attributes using subset semantics. Known
// keys: exists, type, nullable, default (null for no default).
func assertColumn(actx *AssertionContext, assertion Assertion) error {
	col, err := actx.DB.Column(actx.Ctx, assertion.Table, assertion.Column)
	if err != nil {
		return fmt.Errorf("column: %w", err)
	}

	actual := map[string]interface{}{"exists": col != nil}
	if col != nil {
		actual["type"] = col.Type
		actual["nullable"] = col.Nullable
		actual["default"] = nil
		if col.Default != nil {
			actual["default"] = *col.Default
		}
	}

	for _, key := range sortedKeys(assertion.Expect) {
		want := assertion.Expect[key]
		have, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     AssertColumn,
				Expected: fmt.Sprintf("%s.%s %s = %v", assertion.Table, assertion.Column, key, want),
				Actual:   "column not found",
			}
		}
		if !valuesEqual(have, want) {
			return &AssertionError{
				Type:     AssertColumn,
				Expected: fmt.Sprintf("%s.%s %s = %v", assertion.Table, assertion.Column, key, want),
				Actual:   fmt.Sprintf("%s = %v", key, have),
			}
		}
	}
	return nil
}

// assertEntry checks that some trace event matches every expected field.
func assertEntry(result *Result, assertion Assertion) error {
	for _, ev := range result.Trace {
		if matchEvent(ev, assertion.Expect) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEntry,
		Expected: fmt.Sprintf("entry matching %s", formatExpect(assertion.Expect)),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

func assertRunStatus(result *Result, assertion Assertion) error {
	if result.RunStatus != assertion.Status {
		return &AssertionError{
			Type:     AssertRunStatus,
			Expected: fmt.Sprintf("run status %s", assertion.Status),
			Actual:   fmt.Sprintf("run status %s", result.RunStatus),
			Trace:    result.Trace,
		}
	}
	return nil
}

func eventFields(ev TraceEvent) map[string]interface{} {
	return map[string]interface{}{
		"seq":        ev.Seq,
		"category":   ev.Category,
		"table":      ev.Table,
		"shard":      ev.Shard,
		"field":      ev.Field,
		"status":     ev.Status,
		"statement":  ev.Statement,
		"error_kind": ev.ErrorKind,
	}
}

// matchEvent checks if the event has all expected fields (subset match).
func matchEvent(ev TraceEvent, expected map[string]interface{}) bool {
	fields := eventFields(ev)
	for key, want := range expected {
		have, ok := fields[key]
		if !ok || !valuesEqual(have, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares an actual value with one decoded from YAML. YAML
// scalars decode as string, int or bool, so non-nil values compare by
// their printed form.
func valuesEqual(actual, expected interface{}) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatExpect creates a human-readable description of expected fields.
func formatExpect(expect map[string]interface{}) string {
	keys := sortedKeys(expect)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, expect[k]))
	}
	return strings.Join(parts, " ")
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	DB       *testutil.FakeDB
	Registry *plan.Registry
	Ctx      context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for converged and column
// assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStatementContains:
			err = assertStatementContains(result, assertion)
		case AssertStatementOrder:
			err = assertStatementOrder(result, assertion)
		case AssertStatementCount:
			err = assertStatementCount(result, assertion)
		case AssertEntry:
			err = assertEntry(result, assertion)
		case AssertRunStatus:
			err = assertRunStatus(result, assertion)
		case AssertConverged, AssertColumn:
			if actx == nil || actx.DB == nil || actx.Registry == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertConverged {
				err = assertConverged(actx, result, assertion)
			} else {
				err = assertColumn(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
