package ddl

import (
	"fmt"
	"strings"
)

// Kind identifies a statement shape.
type Kind string

const (
	AddColumn         Kind = "ADD_COLUMN"
	DropColumn        Kind = "DROP_COLUMN"
	ChangeColumn      Kind = "CHANGE_COLUMN"
	ModifyColumn      Kind = "MODIFY_COLUMN"
	SetDefault        Kind = "SET_DEFAULT"
	AddIndex          Kind = "ADD_INDEX"
	AddUnique         Kind = "ADD_UNIQUE"
	DropIndex         Kind = "DROP_INDEX"
	CreateUniqueIndex Kind = "CREATE_UNIQUE_INDEX"
	AddForeignKey     Kind = "ADD_FOREIGN_KEY"
	DropForeignKey    Kind = "DROP_FOREIGN_KEY"
	CreateTableLike   Kind = "CREATE_TABLE_LIKE"
)

// Literal is a value in a DEFAULT clause.
type Literal struct {
	Value   string
	Numeric bool
}

// SQL renders the literal.
func (l Literal) SQL() string {
	if l.Numeric {
		return l.Value
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(l.Value) + `"`
}

// ColumnDef is a column definition: type, nullability and default.
type ColumnDef struct {
	Type    string
	NotNull bool
	Default *Literal
}

// SQL renders the definition as it follows the column name.
func (d ColumnDef) SQL() string {
	var b strings.Builder
	b.WriteString(d.Type)
	if d.NotNull {
		b.WriteString(" NOT NULL")
	}
	if d.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(d.Default.SQL())
	}
	return b.String()
}

// Statement is one DDL statement against one table.
type Statement struct {
	Kind  Kind
	Table string

	// Column is the target column; for CHANGE_COLUMN it is the old name.
	Column  string
	NewName string

	Def     ColumnDef
	Default Literal

	// Index names the index or constraint for index and FK statements.
	Index   string
	Columns []string

	// RefTable and RefColumn are the foreign-key target; for
	// CREATE_TABLE_LIKE RefTable is the template table.
	RefTable  string
	RefColumn string
}

// QuoteIdent backtick-quotes an identifier.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ",")
}

// SQL renders the statement in MySQL syntax.
func (s Statement) SQL() string {
	t := QuoteIdent(s.Table)
	switch s.Kind {
	case AddColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t, QuoteIdent(s.Column), s.Def.SQL())
	case DropColumn:
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", t, QuoteIdent(s.Column))
	case ChangeColumn:
		return fmt.Sprintf("ALTER TABLE %s CHANGE %s %s %s", t, QuoteIdent(s.Column), QuoteIdent(s.NewName), s.Def.SQL())
	case ModifyColumn:
		return fmt.Sprintf("ALTER TABLE %s MODIFY %s %s", t, QuoteIdent(s.Column), s.Def.SQL())
	case SetDefault:
		return fmt.Sprintf("ALTER TABLE %s ALTER %s SET DEFAULT %s", t, QuoteIdent(s.Column), s.Default.SQL())
	case AddIndex:
		return fmt.Sprintf("ALTER TABLE %s ADD INDEX (%s)", t, QuoteIdent(s.Column))
	case AddUnique:
		return fmt.Sprintf("ALTER TABLE %s ADD UNIQUE (%s)", t, QuoteIdent(s.Column))
	case DropIndex:
		return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", t, QuoteIdent(s.Index))
	case CreateUniqueIndex:
		return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", QuoteIdent(s.Index), t, quoteList(s.Columns))
	case AddForeignKey:
		return fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s (%s)",
			t, QuoteIdent(s.Column), QuoteIdent(s.RefTable), QuoteIdent(s.RefColumn))
	case DropForeignKey:
		return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", t, QuoteIdent(s.Index))
	case CreateTableLike:
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s LIKE %s", t, QuoteIdent(s.RefTable))
	default:
		return fmt.Sprintf("-- unknown statement kind %q on %s", s.Kind, t)
	}
}

func (s Statement) String() string {
	return s.SQL()
}
