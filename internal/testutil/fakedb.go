package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"

	"github.com/roach88/tableshard/internal/ddl"
	"github.com/roach88/tableshard/internal/schema"
)

// FakeIndex is an index in a FakeTable.
type FakeIndex struct {
	Name    string
	Columns []string
	Unique  bool
	Primary bool
}

// FakeTable is the in-memory structure of one table.
type FakeTable struct {
	Columns     []schema.Column
	Indexes     []FakeIndex
	ForeignKeys []schema.ForeignKey
}

func (t *FakeTable) column(name string) *schema.Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

func (t *FakeTable) index(name string) int {
	for i, idx := range t.Indexes {
		if idx.Name == name {
			return i
		}
	}
	return -1
}

func (t *FakeTable) clone() *FakeTable {
	c := &FakeTable{}
	for _, col := range t.Columns {
		if col.Default != nil {
			v := *col.Default
			col.Default = &v
		}
		c.Columns = append(c.Columns, col)
	}
	for _, idx := range t.Indexes {
		idx.Columns = append([]string(nil), idx.Columns...)
		c.Indexes = append(c.Indexes, idx)
	}
	c.ForeignKeys = append(c.ForeignKeys, t.ForeignKeys...)
	return c
}

// FakeDB is an in-memory MySQL stand-in implementing catalog.Catalog and
// ddl.Executor. Executed statements are applied structurally to the
// tables so tests can check convergence, not just emitted SQL.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FakeDB struct {
	mu       sync.Mutex
	tables   map[string]*FakeTable
	executed []ddl.Statement

	// ExecErrors fails any statement on the keyed table.
	ExecErrors map[string]error

	// StatementErrors fails the statement whose SQL matches the key.
	StatementErrors map[string]error

	// CatalogErrors fails every catalog lookup on the keyed table.
	CatalogErrors map[string]error
}

// NewFakeDB creates an empty fake database.
func NewFakeDB() *FakeDB {
	return &FakeDB{
		tables:          map[string]*FakeTable{},
		ExecErrors:      map[string]error{},
		StatementErrors: map[string]error{},
		CatalogErrors:   map[string]error{},
	}
}

// Col is a shorthand column constructor for tests. An empty def means no
// default.
func Col(name, typ string, nullable bool, def ...string) schema.Column {
	c := schema.Column{Name: name, Type: typ, Nullable: nullable}
	if len(def) > 0 {
		v := def[0]
		c.Default = &v
	}
	return c
}

// CreateTable adds a table with an id primary key and the given columns.
func (db *FakeDB) CreateTable(name string, columns ...schema.Column) *FakeTable {
	db.mu.Lock()
	defer db.mu.Unlock()
	t := &FakeTable{
		Columns: append([]schema.Column{{Name: "id", Type: "int", Nullable: false}}, columns...),
		Indexes: []FakeIndex{{Name: "PRIMARY", Columns: []string{"id"}, Unique: true, Primary: true}},
	}
	db.tables[name] = t
	return t
}

// CloneTable copies src to each of dst, like CREATE TABLE ... LIKE.
func (db *FakeDB) CloneTable(src string, dst ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, d := range dst {
		db.tables[d] = db.tables[src].clone()
	}
}

// AddIndex adds an index to a table.
func (db *FakeDB) AddIndex(table, name string, unique bool, columns ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t := db.tables[table]
	t.Indexes = append(t.Indexes, FakeIndex{Name: name, Columns: columns, Unique: unique})
}

// AddForeignKey adds a foreign-key constraint to a table.
func (db *FakeDB) AddForeignKey(table, name, column, refTable string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t := db.tables[table]
	t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
		Name: name, Column: column, RefTable: refTable, RefColumn: schema.PrimaryKeyColumn,
	})
}

// Table returns a copy of a table's structure, or nil.
func (db *FakeDB) Table(name string) *FakeTable {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[name]
	if !ok {
		return nil
	}
	return t.clone()
}

// Executed returns the statements run so far, in order.
func (db *FakeDB) Executed() []ddl.Statement {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]ddl.Statement(nil), db.executed...)
}

// SQL returns the rendered SQL of the executed statements.
func (db *FakeDB) SQL() []string {
	stmts := db.Executed()
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.SQL()
	}
	return out
}

// Column implements catalog.Catalog.
func (db *FakeDB) Column(_ context.Context, table, column string) (*schema.Column, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.CatalogErrors[table]; err != nil {
		return nil, err
	}
	t, ok := db.tables[table]
	if !ok {
		return nil, nil
	}
	c := t.column(column)
	if c == nil {
		return nil, nil
	}
	out := *c
	return &out, nil
}

// Indexes implements catalog.Catalog.
func (db *FakeDB) Indexes(_ context.Context, table, column string) ([]schema.Index, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.CatalogErrors[table]; err != nil {
		return nil, err
	}
	t, ok := db.tables[table]
	if !ok {
		return nil, nil
	}
	var out []schema.Index
	for _, idx := range t.Indexes {
		if idx.Primary || len(idx.Columns) != 1 || idx.Columns[0] != column || schema.IsUniqName(idx.Name) {
			continue
		}
		out = append(out, schema.Index{Name: idx.Name, Column: column, Unique: idx.Unique})
	}
	return out, nil
}

// ForeignKeys implements catalog.Catalog.
func (db *FakeDB) ForeignKeys(_ context.Context, table, column string) ([]schema.ForeignKey, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.CatalogErrors[table]; err != nil {
		return nil, err
	}
	t, ok := db.tables[table]
	if !ok {
		return nil, nil
	}
	var out []schema.ForeignKey
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			out = append(out, fk)
		}
	}
	return out, nil
}

// UniqueConstraints implements catalog.Catalog.
func (db *FakeDB) UniqueConstraints(_ context.Context, table string) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.CatalogErrors[table]; err != nil {
		return nil, err
	}
	t, ok := db.tables[table]
	if !ok {
		return nil, nil
	}
	var out []string
	for _, idx := range t.Indexes {
		if idx.Unique && !idx.Primary {
			out = append(out, idx.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Tables implements catalog.Catalog. The prefix matches literally.
func (db *FakeDB) Tables(_ context.Context, prefix string) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.CatalogErrors[prefix]; err != nil {
		return nil, err
	}
	var out []string
	for name := range db.tables {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func serverError(number uint16, format string, args ...any) error {
	return &mysql.MySQLError{Number: number, Message: fmt.Sprintf(format, args...)}
}

// Exec implements ddl.Executor.
func (db *FakeDB) Exec(_ context.Context, stmt ddl.Statement) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ExecErrors[stmt.Table]; err != nil {
		return err
	}
	if err := db.StatementErrors[stmt.SQL()]; err != nil {
		return err
	}

	if stmt.Kind == ddl.CreateTableLike {
		src, ok := db.tables[stmt.RefTable]
		if !ok {
			return serverError(1146, "Table '%s' doesn't exist", stmt.RefTable)
		}
		if _, exists := db.tables[stmt.Table]; !exists {
			db.tables[stmt.Table] = src.clone()
		}
		db.executed = append(db.executed, stmt)
		return nil
	}

	t, ok := db.tables[stmt.Table]
	if !ok {
		return serverError(1146, "Table '%s' doesn't exist", stmt.Table)
	}
	if err := applyStatement(t, stmt); err != nil {
		return err
	}
	db.executed = append(db.executed, stmt)
	return nil
}

func literalPtr(l *ddl.Literal) *string {
	if l == nil {
		return nil
	}
	v := l.Value
	return &v
}

func applyStatement(t *FakeTable, stmt ddl.Statement) error {
	switch stmt.Kind {
	case ddl.AddColumn:
		if t.column(stmt.Column) != nil {
			return serverError(1060, "Duplicate column name '%s'", stmt.Column)
		}
		t.Columns = append(t.Columns, schema.Column{
			Name:     stmt.Column,
			Type:     stmt.Def.Type,
			Nullable: !stmt.Def.NotNull,
			Default:  literalPtr(stmt.Def.Default),
		})

	case ddl.DropColumn:
		if t.column(stmt.Column) == nil {
			return serverError(1091, "Can't DROP '%s'; check that column/key exists", stmt.Column)
		}
		for _, fk := range t.ForeignKeys {
			if fk.Column == stmt.Column {
				return serverError(1828, "Cannot drop column '%s': needed in a foreign key constraint '%s'", stmt.Column, fk.Name)
			}
		}
		var cols []schema.Column
		for _, c := range t.Columns {
			if c.Name != stmt.Column {
				cols = append(cols, c)
			}
		}
		t.Columns = cols
		var idxs []FakeIndex
		for _, idx := range t.Indexes {
			var remaining []string
			for _, c := range idx.Columns {
				if c != stmt.Column {
					remaining = append(remaining, c)
				}
			}
			if len(remaining) > 0 {
				idx.Columns = remaining
				idxs = append(idxs, idx)
			}
		}
		t.Indexes = idxs

	case ddl.ChangeColumn:
		c := t.column(stmt.Column)
		if c == nil {
			return serverError(1054, "Unknown column '%s'", stmt.Column)
		}
		if stmt.NewName != stmt.Column && t.column(stmt.NewName) != nil {
			return serverError(1060, "Duplicate column name '%s'", stmt.NewName)
		}
		c.Name = stmt.NewName
		c.Type = stmt.Def.Type
		c.Nullable = !stmt.Def.NotNull
		c.Default = literalPtr(stmt.Def.Default)
		for i := range t.Indexes {
			for j, col := range t.Indexes[i].Columns {
				if col == stmt.Column {
					t.Indexes[i].Columns[j] = stmt.NewName
				}
			}
		}
		for i := range t.ForeignKeys {
			if t.ForeignKeys[i].Column == stmt.Column {
				t.ForeignKeys[i].Column = stmt.NewName
			}
		}

	case ddl.ModifyColumn:
		c := t.column(stmt.Column)
		if c == nil {
			return serverError(1054, "Unknown column '%s'", stmt.Column)
		}
		c.Type = stmt.Def.Type
		c.Nullable = !stmt.Def.NotNull
		c.Default = literalPtr(stmt.Def.Default)

	case ddl.SetDefault:
		c := t.column(stmt.Column)
		if c == nil {
			return serverError(1054, "Unknown column '%s'", stmt.Column)
		}
		c.Default = literalPtr(&stmt.Default)

	case ddl.AddIndex, ddl.AddUnique:
		if t.column(stmt.Column) == nil {
			return serverError(1072, "Key column '%s' doesn't exist in table", stmt.Column)
		}
		name := stmt.Column
		for n := 2; t.index(name) >= 0; n++ {
			name = fmt.Sprintf("%s_%d", stmt.Column, n)
		}
		t.Indexes = append(t.Indexes, FakeIndex{
			Name:    name,
			Columns: []string{stmt.Column},
			Unique:  stmt.Kind == ddl.AddUnique,
		})

	case ddl.DropIndex:
		i := t.index(stmt.Index)
		if i < 0 {
			return serverError(1091, "Can't DROP '%s'; check that column/key exists", stmt.Index)
		}
		t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)

	case ddl.CreateUniqueIndex:
		if t.index(stmt.Index) >= 0 {
			return serverError(1061, "Duplicate key name '%s'", stmt.Index)
		}
		for _, c := range stmt.Columns {
			if t.column(c) == nil {
				return serverError(1072, "Key column '%s' doesn't exist in table", c)
			}
		}
		t.Indexes = append(t.Indexes, FakeIndex{
			Name:    stmt.Index,
			Columns: append([]string(nil), stmt.Columns...),
			Unique:  true,
		})

	case ddl.AddForeignKey:
		if t.column(stmt.Column) == nil {
			return serverError(1072, "Key column '%s' doesn't exist in table", stmt.Column)
		}
		t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
			Name:      fmt.Sprintf("%s_ibfk_%d", stmt.Table, len(t.ForeignKeys)+1),
			Column:    stmt.Column,
			RefTable:  stmt.RefTable,
			RefColumn: stmt.RefColumn,
		})

	case ddl.DropForeignKey:
		for i, fk := range t.ForeignKeys {
			if fk.Name == stmt.Index {
				t.ForeignKeys = append(t.ForeignKeys[:i], t.ForeignKeys[i+1:]...)
				return nil
			}
		}
		return serverError(1091, "Can't DROP '%s'; check that column/key exists", stmt.Index)

	default:
		return fmt.Errorf("fake db: unsupported statement kind %q", stmt.Kind)
	}
	return nil
}

// Diff lists the structural differences between a source table and a
// shard: column names and types, single-column index uniqueness, foreign
// key columns and composite _uniq column sets. Index and constraint names
// are not compared. An empty result means the shard has converged.
func (db *FakeDB) Diff(source, shard string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return diffTables(db.tables[source], db.tables[shard])
}

func diffTables(src, dst *FakeTable) []string {
	if src == nil || dst == nil {
		return []string{"missing table"}
	}
	var diffs []string
	describe := func(t *FakeTable) map[string]string {
		m := map[string]string{}
		for _, c := range t.Columns {
			m["column "+c.Name] = c.Type
		}
		for _, idx := range t.Indexes {
			if idx.Primary {
				continue
			}
			if schema.IsUniqName(idx.Name) {
				m["uniq "+strings.Join(idx.Columns, ",")] = "unique"
				continue
			}
			if len(idx.Columns) == 1 {
				kind := "index"
				if idx.Unique {
					kind = "unique"
				}
				m["index "+idx.Columns[0]] = kind
			}
		}
		for _, fk := range t.ForeignKeys {
			m["fk "+fk.Column] = fk.RefTable
		}
		return m
	}
	want, have := describe(src), describe(dst)
	for k, v := range want {
		if have[k] != v {
			diffs = append(diffs, fmt.Sprintf("%s: want %q, have %q", k, v, have[k]))
		}
	}
	for k, v := range have {
		if _, ok := want[k]; !ok {
			diffs = append(diffs, fmt.Sprintf("%s: unexpected %q", k, v))
		}
	}
	sort.Strings(diffs)
	return diffs
}
