// Package schema defines the data model shared by the shard migration
// pipeline: catalog descriptors read from the live database, the field
// changes produced by classification, and the typed error kinds surfaced
// in a run report.
//
// The source table is always the single source of truth. Shard tables are
// only read to learn their current state and the delta that closes it.
//
// # Naming Conventions
//
//   - Shard tables are named <base>_<suffix>.
//   - A relation field "owner" is stored in column "owner_id".
//   - Composite unique indexes created on shards end in "_uniq".
package schema
