package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"biolabel/internal/config"
)

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	defaultListLimit = 20

	// fixed width so timestamps sort lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the history database under state_dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the database at dbPath, creating the schema when new.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts a running run with a fresh identifier.
func (s *Store) BeginRun(ctx context.Context, command, subject string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Command:   command,
		Subject:   subject,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, command, subject, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.Subject, run.Status, formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run succeeded, or failed with runErr's message.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status := StatusSucceeded
	var message sql.NullString
	if runErr != nil {
		status = StatusFailed
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}
	err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ? WHERE id = ?`,
		status, formatTime(time.Now().UTC()), message, id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

// RecordStage appends a stage result to its run.
func (s *Store) RecordStage(ctx context.Context, result StageResult) error {
	if strings.TrimSpace(result.RunID) == "" {
		return errors.New("record stage: run id is required")
	}
	if result.FinishedAt.IsZero() {
		result.FinishedAt = time.Now().UTC()
	}
	if result.StartedAt.IsZero() {
		result.StartedAt = result.FinishedAt
	}
	err := s.exec(ctx,
		`INSERT INTO stage_results (
            run_id, stage, modality, status, rows_in, rows_out, excluded,
            output_path, output_sha256, message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Stage, result.Modality, result.Status,
		result.RowsIn, result.RowsOut, result.Excluded,
		nullString(result.OutputPath), nullString(result.OutputSHA256), nullString(result.Message),
		formatTime(result.StartedAt), formatTime(result.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record stage %s: %w", result.Stage, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 uses a default.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, subject, status, started_at, finished_at, error_message
         FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			finished sql.NullString
			message  sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Command, &run.Subject, &run.Status, &started, &finished, &message); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		if finished.Valid {
			t := parseTime(finished.String)
			run.FinishedAt = &t
		}
		run.ErrorMessage = message.String
		out = append(out, run)
	}
	return out, rows.Err()
}

// StageResults returns a run's stage results in recording order.
func (s *Store) StageResults(ctx context.Context, runID string) ([]StageResult, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, modality, status, rows_in, rows_out, excluded,
                output_path, output_sha256, message, started_at, finished_at
         FROM stage_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	var out []StageResult
	for rows.Next() {
		var (
			res                     StageResult
			outPath, sha, message   sql.NullString
			startedText, finishText string
		)
		if err := rows.Scan(&res.ID, &res.RunID, &res.Stage, &res.Modality, &res.Status,
			&res.RowsIn, &res.RowsOut, &res.Excluded, &outPath, &sha, &message,
			&startedText, &finishText); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		res.OutputPath = outPath.String
		res.OutputSHA256 = sha.String
		res.Message = message.String
		res.StartedAt = parseTime(startedText)
		res.FinishedAt = parseTime(finishText)
		out = append(out, res)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
