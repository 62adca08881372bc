// Package migrate drives one shard migration run.
//
// A run moves through these states, strictly in order:
//
//	Planned -> SourceMigrated -> Reconciling(add_or_alter) ->
//	Reconciling(unique_together_add) -> Reconciling(unique_together_remove) ->
//	Reconciling(rename) -> Done
//
// Reconciling states are entered only when their worklist is non-empty.
// There is no rollback: once the source migration has committed, shard
// reconciliation is best-effort and a failure in one shard or category never
// blocks the next. Failures are collected in the run's report.
package migrate
