package schema

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes reconciliation failures.
type ErrorKind string

const (
	// KindConnectionFailure means no connection could be obtained. It ends
	// the current work item for that shard; other shards continue.
	KindConnectionFailure ErrorKind = "CONNECTION_FAILURE"

	// KindStatementFailure means a single statement failed.
	KindStatementFailure ErrorKind = "STATEMENT_FAILURE"

	// KindUnsupportedFieldKind marks many-to-many and one-to-one fields on
	// sharded models.
	KindUnsupportedFieldKind ErrorKind = "UNSUPPORTED_FIELD_KIND"

	// KindNoShardsFound means a base table has no physical shards. Not a failure.
	KindNoShardsFound ErrorKind = "NO_SHARDS_FOUND"

	// KindAmbiguousFieldResolution means neither the plain nor the
	// _id-suffixed column could be found.
	KindAmbiguousFieldResolution ErrorKind = "AMBIGUOUS_FIELD_RESOLUTION"
)

// Error is a typed reconciliation error. It carries enough context to be
// reported without a stack trace.
type Error struct {
	Kind      ErrorKind
	Message   string
	Table     string // base (source) table
	Shard     string
	Field     string
	Statement string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Shard != "" {
		msg += fmt.Sprintf(" (shard=%s)", e.Shard)
	} else if e.Table != "" {
		msg += fmt.Sprintf(" (table=%s)", e.Table)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a typed error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err is a typed error of the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// NewUnsupportedFieldError reports a relation kind sharding cannot carry.
func NewUnsupportedFieldError(table, field, fieldKind string) *Error {
	return &Error{
		Kind:    KindUnsupportedFieldKind,
		Message: fmt.Sprintf("%s not supported with table sharding", fieldKind),
		Table:   table,
		Field:   field,
	}
}

// NewNoShardsError reports a base table without shards.
func NewNoShardsError(table string) *Error {
	return &Error{
		Kind:    KindNoShardsFound,
		Message: fmt.Sprintf("no sharded tables for %s", table),
		Table:   table,
	}
}

// NewAmbiguousFieldError reports a field that resolves to no column.
func NewAmbiguousFieldError(table, shard, field string) *Error {
	return &Error{
		Kind:    KindAmbiguousFieldResolution,
		Message: fmt.Sprintf("neither %s nor %s found", field, ForeignKeyColumn(field)),
		Table:   table,
		Shard:   shard,
		Field:   field,
	}
}
