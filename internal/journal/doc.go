// Package journal persists shard migration runs in a local SQLite file.
//
// A run is opened before any shard work, its report entries are appended as
// each work item completes and it is closed with a final status. The
// journal is an audit trail: nothing reads it back to decide what to apply,
// since every run re-derives its work from the live catalog.
package journal
