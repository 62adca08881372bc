package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tableshard/internal/report"
	"github.com/roach88/tableshard/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded invocation of the migrate command.
type Run struct {
	ID         string
	Plan       string
	Database   string
	DryRun     bool
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// Journal is the SQLite-backed run history.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a journal at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations stamps user_version and refuses journals written by a newer
// schema. Incremental migrations go here, keyed on the stored version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// BeginRun records the start of a run. Status is forced to running.
func (j *Journal) BeginRun(ctx context.Context, run Run) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, plan, db_alias, dry_run, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Plan, run.Database, boolToInt(run.DryRun), RunRunning, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordEntries appends entries to a run, continuing its sequence.
func (j *Journal) RecordEntries(ctx context.Context, runID string, entries []report.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record entries: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM entries WHERE run_id = ?`, runID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("record entries: next seq: %w", err)
	}

	for _, e := range entries {
		seq++
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries
			(run_id, seq, category, base_table, field, shard, statement, status, error_kind, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, seq,
			string(e.Category), e.Table, e.Field, e.Shard, e.Statement,
			string(e.Status), string(e.ErrorKind), e.Error,
		)
		if err != nil {
			return fmt.Errorf("record entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record entries: commit: %w", err)
	}
	return nil
}

// FinishRun marks a run as finished with the given status.
func (j *Journal) FinishRun(ctx context.Context, runID, status string, finishedAt time.Time) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, formatTime(finishedAt), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// Runs returns all runs, most recent first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, plan, db_alias, dry_run, status, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns a single run.
func (j *Journal) Run(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, plan, db_alias, dry_run, status, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run        Run
		dryRun     int
		startedAt  string
		finishedAt sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Plan, &run.Database, &dryRun, &run.Status, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.DryRun = dryRun != 0

	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return Run{}, fmt.Errorf("scan run %s: started_at: %w", run.ID, err)
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = time.Parse(time.RFC3339, finishedAt.String); err != nil {
			return Run{}, fmt.Errorf("scan run %s: finished_at: %w", run.ID, err)
		}
	}
	return run, nil
}

// Entries returns a run's entries in recorded order.
func (j *Journal) Entries(ctx context.Context, runID string) ([]report.Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT category, base_table, field, shard, statement, status, error_kind, error
		FROM entries
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []report.Entry{}
	for rows.Next() {
		var (
			e                         report.Entry
			category, status, errKind string
		)
		if err := rows.Scan(&category, &e.Table, &e.Field, &e.Shard, &e.Statement, &status, &errKind, &e.Error); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Category = schema.Category(category)
		e.Status = report.Status(status)
		e.ErrorKind = schema.ErrorKind(errKind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
