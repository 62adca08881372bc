// Package ddl models the statements shard reconciliation emits and
// executes them against MySQL.
//
// Statements are built structurally (kind plus operands) and rendered to
// SQL on demand. Executors and test fakes dispatch on the structure, so
// nothing ever parses SQL text back.
//
// Identifiers are always backtick-quoted. String literals in DEFAULT
// clauses are double-quoted; booleans are rendered as bare 1 and 0.
package ddl
