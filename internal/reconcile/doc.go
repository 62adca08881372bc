// Package reconcile brings shard tables into structural parity with their
// source table after the source has been migrated.
//
// Each work item (one field change, one rename, one composite unique
// change) is reconciled against every shard returned by the locator. For
// each shard the current state is read from the catalog and only the
// statements needed to converge are emitted.
//
// # Ordering
//
// Per field the order is fixed and must not be changed:
//
//  1. foreign-key constraints are dropped before their column
//  2. columns are added before index, type, default or FK changes
//  3. single-column index reconciliation follows the column add
//  4. width/type and default changes apply only to shards that already
//     held the column
//  5. foreign keys are added last
//
// # Failures
//
// A failed statement is reported and the next statement or shard runs.
// A connection failure ends the current work item for that shard only.
// Every outcome is returned as report entries; nothing is swallowed.
package reconcile
