package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/roach88/tableshard/internal/schema"
)

// nonUniqueFlag is the information_schema.STATISTICS.NON_UNIQUE value for
// an index that permits duplicates; 0 means the index is unique.
const nonUniqueFlag = 1

const (
	columnQuery = "SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT " +
		"FROM information_schema.COLUMNS " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?"

	indexQuery = "SELECT s.INDEX_NAME, s.NON_UNIQUE " +
		"FROM information_schema.STATISTICS s " +
		"WHERE s.TABLE_SCHEMA = DATABASE() AND s.TABLE_NAME = ? AND s.COLUMN_NAME = ? " +
		"AND s.INDEX_NAME <> 'PRIMARY' " +
		"AND (SELECT COUNT(*) FROM information_schema.STATISTICS c " +
		"WHERE c.TABLE_SCHEMA = s.TABLE_SCHEMA AND c.TABLE_NAME = s.TABLE_NAME " +
		"AND c.INDEX_NAME = s.INDEX_NAME) = 1 " +
		"ORDER BY s.INDEX_NAME"

	foreignKeyQuery = "SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME " +
		"FROM information_schema.KEY_COLUMN_USAGE " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ? " +
		"AND REFERENCED_TABLE_NAME IS NOT NULL " +
		"ORDER BY CONSTRAINT_NAME"

	uniqueQuery = "SELECT CONSTRAINT_NAME FROM information_schema.TABLE_CONSTRAINTS " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND CONSTRAINT_TYPE = 'UNIQUE' " +
		"ORDER BY CONSTRAINT_NAME"

	tablesQuery = "SELECT TABLE_NAME FROM information_schema.TABLES " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' AND TABLE_NAME LIKE ? " +
		"ORDER BY TABLE_NAME"
)

// MySQL reads catalog metadata from information_schema of the connected
// database.
type MySQL struct {
	db *sql.DB
}

// NewMySQL creates a catalog over db.
func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

// Column implements Catalog.
func (m *MySQL) Column(ctx context.Context, table, column string) (*schema.Column, error) {
	var (
		c        schema.Column
		nullable string
		def      sql.NullString
	)
	err := m.db.QueryRowContext(ctx, columnQuery, table, column).Scan(&c.Name, &c.Type, &nullable, &def)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, fmt.Sprintf("cannot read column %s.%s", table, column))
	}
	c.Nullable = nullable == "YES"
	if def.Valid {
		v := def.String
		c.Default = &v
	}
	return &c, nil
}

// Indexes implements Catalog.
func (m *MySQL) Indexes(ctx context.Context, table, column string) ([]schema.Index, error) {
	rows, err := m.db.QueryContext(ctx, indexQuery, table, column)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("cannot read indexes of %s.%s", table, column))
	}
	defer rows.Close()

	var out []schema.Index
	for rows.Next() {
		var (
			name      string
			nonUnique int
		)
		if err := rows.Scan(&name, &nonUnique); err != nil {
			return nil, errors.Wrap(err, "cannot scan index row")
		}
		if schema.IsUniqName(name) {
			continue
		}
		out = append(out, schema.Index{
			Name:   name,
			Column: column,
			Unique: nonUnique != nonUniqueFlag,
		})
	}
	return out, errors.Wrap(rows.Err(), "cannot iterate index rows")
}

// ForeignKeys implements Catalog.
func (m *MySQL) ForeignKeys(ctx context.Context, table, column string) ([]schema.ForeignKey, error) {
	rows, err := m.db.QueryContext(ctx, foreignKeyQuery, table, column)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("cannot read foreign keys of %s.%s", table, column))
	}
	defer rows.Close()

	var out []schema.ForeignKey
	for rows.Next() {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.Name, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, errors.Wrap(err, "cannot scan foreign key row")
		}
		out = append(out, fk)
	}
	return out, errors.Wrap(rows.Err(), "cannot iterate foreign key rows")
}

// UniqueConstraints implements Catalog.
func (m *MySQL) UniqueConstraints(ctx context.Context, table string) ([]string, error) {
	return m.names(ctx, uniqueQuery, table)
}

// Tables implements Catalog.
func (m *MySQL) Tables(ctx context.Context, prefix string) ([]string, error) {
	return m.names(ctx, tablesQuery, EscapeLike(prefix)+"%")
}

func (m *MySQL) names(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("catalog query failed for %q", arg))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "cannot scan name row")
		}
		out = append(out, name)
	}
	return out, errors.Wrap(rows.Err(), "cannot iterate name rows")
}
