// Package report collects the typed outcome of a shard migration run.
//
// Every statement the reconciler applies, plans or fails on becomes an
// Entry, as does every warning (unsupported field, missing shards,
// unresolvable field). Nothing is only printed.
package report

import (
	"fmt"
	"sort"

	"github.com/roach88/tableshard/internal/schema"
)

// Status is the outcome of one entry.
type Status string

const (
	StatusApplied Status = "applied"
	StatusPlanned Status = "planned" // dry run
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped" // shard skipped after a connection failure
	StatusWarning Status = "warning"
)

// Entry is one unit of reported work.
type Entry struct {
	Category  schema.Category
	Table     string // base table
	Field     string
	Shard     string
	Statement string
	Status    Status
	ErrorKind schema.ErrorKind
	Error     string
}

// Failed reports whether the entry is a failure.
func (e Entry) Failed() bool {
	return e.Status == StatusFailed
}

// FromError builds an entry from a typed error.
func FromError(category schema.Category, status Status, err *schema.Error) Entry {
	msg := err.Message
	if err.Err != nil {
		msg = fmt.Sprintf("%s: %v", err.Message, err.Err)
	}
	return Entry{
		Category:  category,
		Table:     err.Table,
		Field:     err.Field,
		Shard:     err.Shard,
		Statement: err.Statement,
		Status:    status,
		ErrorKind: err.Kind,
		Error:     msg,
	}
}

// Report is the ordered list of entries of one run.
type Report struct {
	RunID   string
	Entries []Entry
}

// Add appends entries.
func (r *Report) Add(entries ...Entry) {
	r.Entries = append(r.Entries, entries...)
}

// Failures returns the failed entries.
func (r *Report) Failures() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Failed() {
			out = append(out, e)
		}
	}
	return out
}

// HasFailures reports whether any entry failed.
func (r *Report) HasFailures() bool {
	for _, e := range r.Entries {
		if e.Failed() {
			return true
		}
	}
	return false
}

// Statements returns the SQL of applied and planned entries in order.
func (r *Report) Statements() []string {
	var out []string
	for _, e := range r.Entries {
		if e.Status == StatusApplied || e.Status == StatusPlanned {
			out = append(out, e.Statement)
		}
	}
	return out
}

// Summary counts entries per category and status.
type Summary map[schema.Category]map[Status]int

// Summarize returns per-category counts.
func (r *Report) Summarize() Summary {
	s := Summary{}
	for _, e := range r.Entries {
		if s[e.Category] == nil {
			s[e.Category] = map[Status]int{}
		}
		s[e.Category][e.Status]++
	}
	return s
}

// Lines renders the summary as sorted human-readable lines.
func (s Summary) Lines() []string {
	var lines []string
	for _, c := range schema.Categories {
		counts, ok := s[c]
		if !ok {
			continue
		}
		statuses := make([]string, 0, len(counts))
		for st := range counts {
			statuses = append(statuses, string(st))
		}
		sort.Strings(statuses)
		line := string(c) + ":"
		for _, st := range statuses {
			line += fmt.Sprintf(" %s=%d", st, counts[Status(st)])
		}
		lines = append(lines, line)
	}
	return lines
}
