package harness

import (
	"github.com/roach88/tableshard/internal/report"
)

// TraceEvent is one reported outcome of a scenario run, in report order.
type TraceEvent struct {
	Seq       int    `json:"seq"`
	Category  string `json:"category"`
	Table     string `json:"table"`
	Shard     string `json:"shard,omitempty"`
	Field     string `json:"field,omitempty"`
	Status    string `json:"status"`
	Statement string `json:"statement,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every report entry in order.
	Trace []TraceEvent `json:"trace"`

	// Executed is the SQL the fake database actually applied, in order.
	// It differs from the trace statements on failures and dry runs.
	Executed []string `json:"executed"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// RunStatus is the journal status the run finished with.
	RunStatus string `json:"run_status"`

	// Output is the progress text the orchestrator printed.
	Output string `json:"output"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Executed: []string{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEntries appends report entries to the trace.
func (r *Result) AddEntries(entries []report.Entry) {
	for _, e := range entries {
		r.Trace = append(r.Trace, TraceEvent{
			Seq:       len(r.Trace) + 1,
			Category:  string(e.Category),
			Table:     e.Table,
			Shard:     e.Shard,
			Field:     e.Field,
			Status:    string(e.Status),
			Statement: e.Statement,
			ErrorKind: string(e.ErrorKind),
		})
	}
}

// Statements returns the statements of applied and planned trace events.
func (r *Result) Statements() []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.Status == string(report.StatusApplied) || ev.Status == string(report.StatusPlanned) {
			out = append(out, ev.Statement)
		}
	}
	return out
}
