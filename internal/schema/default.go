package schema

import "fmt"

// DefaultKind classifies the default value a migration operation carries.
type DefaultKind int

const (
	// DefaultUnset means the operation carried no field definition at all,
	// so there is no default information to propagate.
	DefaultUnset DefaultKind = iota

	// DefaultNotProvided means the field definition exists but declares no
	// default. It never produces a DEFAULT clause.
	DefaultNotProvided

	// DefaultNull is an explicit null default; it clears any shard default.
	DefaultNull

	// DefaultBool is a boolean default, rendered as numeric 1 or 0.
	DefaultBool

	// DefaultLiteral is any other concrete default, rendered as a string literal.
	DefaultLiteral
)

func (k DefaultKind) String() string {
	switch k {
	case DefaultUnset:
		return "unset"
	case DefaultNotProvided:
		return "not_provided"
	case DefaultNull:
		return "null"
	case DefaultBool:
		return "bool"
	case DefaultLiteral:
		return "literal"
	default:
		return fmt.Sprintf("DefaultKind(%d)", int(k))
	}
}

// Default is the default value hint attached to a field change.
// The zero value is DefaultUnset.
type Default struct {
	Kind    DefaultKind
	Bool    bool
	Literal string
}

// NotProvided returns the "field declares no default" sentinel.
func NotProvided() Default { return Default{Kind: DefaultNotProvided} }

// Null returns an explicit null default.
func Null() Default { return Default{Kind: DefaultNull} }

// BoolDefault returns a boolean default.
func BoolDefault(b bool) Default { return Default{Kind: DefaultBool, Bool: b} }

// LiteralDefault returns a concrete literal default.
func LiteralDefault(s string) Default { return Default{Kind: DefaultLiteral, Literal: s} }

// Supplied reports whether the operation carried default information.
// Explicit null counts as supplied: it means "clear the default".
func (d Default) Supplied() bool {
	return d.Kind != DefaultUnset
}

// Resolvable reports whether the default maps to a concrete DEFAULT value.
func (d Default) Resolvable() bool {
	return d.Kind == DefaultBool || d.Kind == DefaultLiteral
}

// Value returns the SQL value of a resolvable default and whether it is
// numeric. Booleans translate to 1 and 0, never the host's boolean token.
func (d Default) Value() (value string, numeric bool) {
	switch d.Kind {
	case DefaultBool:
		if d.Bool {
			return "1", true
		}
		return "0", true
	case DefaultLiteral:
		return d.Literal, false
	default:
		return "", false
	}
}

func (d Default) String() string {
	switch d.Kind {
	case DefaultBool:
		return fmt.Sprintf("%t", d.Bool)
	case DefaultLiteral:
		return fmt.Sprintf("%q", d.Literal)
	default:
		return d.Kind.String()
	}
}
