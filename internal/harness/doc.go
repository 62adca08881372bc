// Package harness provides conformance testing for shard migrations.
//
// A scenario declares a database before a migration, the source tables
// after the host applied it, a model registry and a plan. The harness
// builds the database in a testutil.FakeDB, runs the real orchestrator
// against it with an in-memory journal, and evaluates assertions on the
// reported statements and the final table structure.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: add_nullable_column
//	description: "A nullable column reaches every shard without a default"
//	models:
//	  - {name: lead, app: app, sharded: true}
//	tables:
//	  app_lead:
//	    columns:
//	      - {name: name, type: varchar(64)}
//	    shards: ["1", "2"]
//	source:
//	  app_lead:
//	    columns:
//	      - {name: name, type: varchar(64)}
//	      - {name: note, type: longtext, nullable: true}
//	plan:
//	  migrations:
//	    - app: app
//	      name: 0002_lead_note
//	      operations:
//	        - op: AddField
//	          model: lead
//	          name: note
//	          field: {kind: TextField, default: null}
//	assertions:
//	  - type: statement_count
//	    count: 2
//	  - type: converged
//	    table: app_lead
//
// Tables are created before the run and cloned to their shards; source
// definitions replace the matching tables when the source migration step
// runs. A dry run never migrates the source, so its source definitions are
// applied before the run and only the shards keep the old structure. Shard tables may also be
// declared directly under tables when they must differ from the source.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - statement_contains: Some applied or planned statement contains sql
//   - statement_order: Statements appear in the given order
//   - statement_count: Exactly count statements, optionally matching sql
//   - converged: Every shard of table is structurally equal to it
//   - column: A column has the expected type, nullable or default
//   - entry: A report entry matches the expected fields
//   - run_status: The journal run finished with status
//
// # Golden Files
//
// RunWithGolden compares the trace against testdata/golden/<name>.golden,
// one line per report entry. Regenerate with:
//
//	go test ./internal/harness -update
package harness
