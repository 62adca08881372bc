package schema

import "strings"

const (
	// ForeignKeySuffix is appended to a relation field name to get its column.
	ForeignKeySuffix = "_id"

	// UniqSuffix marks composite unique indexes so removal never touches
	// ordinary indexes.
	UniqSuffix = "_uniq"

	// PrimaryKeyColumn is the column foreign keys on shards reference.
	PrimaryKeyColumn = "id"
)

// Column describes one column as reported by the catalog.
type Column struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"` // full declared type, e.g. "varchar(32)"
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default,omitempty"` // nil when the column has no default
}

// IsTemporal reports whether the column holds a date or time value.
func (c Column) IsTemporal() bool {
	return IsTemporalType(c.Type)
}

// Index describes a single-column index.
type Index struct {
	Name   string `json:"name"`
	Column string `json:"column"`
	Unique bool   `json:"unique"`
}

// ForeignKey describes a foreign-key constraint on one column.
type ForeignKey struct {
	Name      string `json:"name"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// temporalTypes are the MySQL types whose defaults are left to the row
// insertion layer.
var temporalTypes = []string{"datetime", "timestamp", "date", "time", "year"}

// IsTemporalType reports whether a declared column type is a date/time type.
func IsTemporalType(columnType string) bool {
	t := strings.ToLower(strings.TrimSpace(columnType))
	for _, prefix := range temporalTypes {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// ForeignKeyColumn returns the column name a relation field is stored in.
func ForeignKeyColumn(field string) string {
	return field + ForeignKeySuffix
}

// RelatedModelName strips the foreign-key suffix from a column name.
func RelatedModelName(column string) string {
	return strings.TrimSuffix(column, ForeignKeySuffix)
}

// IsUniqName reports whether an index or constraint name follows the
// composite unique naming convention.
func IsUniqName(name string) bool {
	return strings.HasSuffix(name, UniqSuffix)
}

// UniqIndexName builds the composite unique index name for a field list.
//
//	UniqIndexName([]string{"a", "b"}) // "a_b_uniq"
func UniqIndexName(fields []string) string {
	return strings.Join(fields, "_") + UniqSuffix
}

// ShardTableName returns the physical table name for a shard suffix.
func ShardTableName(base, suffix string) string {
	return base + "_" + suffix
}
