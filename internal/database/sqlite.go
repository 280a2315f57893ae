package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rentcat/internal/database/migrations"
	"rentcat/internal/rentcat"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// timeLayout is how timestamps are stored; it sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteDatabase stores the activity log and regeneration history.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock rentcat.Clock
}

// NewSQLiteDatabase opens the database at path, or an in-memory one for ":memory:".
func NewSQLiteDatabase(path string, clock rentcat.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already configured connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock rentcat.Clock) *SQLiteDatabase {
	return &SQLiteDatabase{db: db, clock: clock}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Activity log

func (s *SQLiteDatabase) Record(event string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encoding activity details: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO activity_events (event, details, created_at) VALUES (?, ?, ?)`,
		event, string(raw), formatTime(s.clock.Now()))
	if err != nil {
		return fmt.Errorf("recording activity %s: %w", event, err)
	}
	return nil
}

// ListActivity returns the newest events first. limit <= 0 means all.
func (s *SQLiteDatabase) ListActivity(limit int) ([]rentcat.ActivityEvent, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, event, details, created_at FROM activity_events ORDER BY id DESC LIMIT ?`,
		sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	var events []rentcat.ActivityEvent
	for rows.Next() {
		var (
			e         rentcat.ActivityEvent
			details   string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Event, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("decoding details of activity %d: %w", e.ID, err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Regeneration history

// RecordRun stores the run and its stages in one transaction.
func (s *SQLiteDatabase) RecordRun(run rentcat.RegenerationResult) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO regeneration_runs (id, started_at, finished_at, forced, outcome, error) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Forced, string(run.Outcome), run.Error)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.RunID, err)
	}

	for i, st := range run.Stages {
		var stageErr string
		if st.Err != nil {
			stageErr = st.Err.Error()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO regeneration_stages (run_id, position, name, exit_code, stdout, stderr, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, i, st.Name, st.ExitCode, st.Stdout, st.Stderr, stageErr, st.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("recording stage %s of run %s: %w", st.Name, run.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns returns the newest runs first, with their stages in order.
func (s *SQLiteDatabase) ListRuns(limit int) ([]rentcat.RegenerationResult, error) {
	ctx := context.Background()
	runs, err := s.queryRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	// Stages are loaded after the run rows are closed so a single
	// connection (":memory:") is never needed twice.
	for i := range runs {
		if runs[i].Stages, err = s.queryStages(ctx, runs[i].RunID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLiteDatabase) queryRuns(ctx context.Context, limit int) ([]rentcat.RegenerationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, forced, outcome, error
		 FROM regeneration_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []rentcat.RegenerationResult
	for rows.Next() {
		var (
			r                 rentcat.RegenerationResult
			started, finished string
			outcome           string
		)
		if err := rows.Scan(&r.RunID, &started, &finished, &r.Forced, &outcome, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Outcome = rentcat.Outcome(outcome)
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteDatabase) queryStages(ctx context.Context, runID string) ([]rentcat.StageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, exit_code, stdout, stderr, error, duration_ms
		 FROM regeneration_stages WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing stages of run %s: %w", runID, err)
	}
	defer rows.Close()

	var stages []rentcat.StageResult
	for rows.Next() {
		var (
			st       rentcat.StageResult
			stageErr string
			ms       int64
		)
		if err := rows.Scan(&st.Name, &st.ExitCode, &st.Stdout, &st.Stderr, &stageErr, &ms); err != nil {
			return nil, fmt.Errorf("scanning stage: %w", err)
		}
		if stageErr != "" {
			st.Err = storedError(stageErr)
		}
		st.Duration = time.Duration(ms) * time.Millisecond
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

// storedError is a stage error read back from history.
type storedError string

func (e storedError) Error() string { return string(e) }

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

var _ Database = (*SQLiteDatabase)(nil)
