package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// BeginRun inserts run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
            id, started_at, status, strategy, workers,
            input_dir, output_dir, overlay_path, overlay_digest
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		StatusRunning,
		run.Strategy,
		run.Workers,
		run.InputDir,
		run.OutputDir,
		run.OverlayPath,
		run.OverlayDigest,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordJob stores the terminal state of one job.
func (s *Store) RecordJob(ctx context.Context, job Job) error {
	if job.FinishedAt.IsZero() {
		job.FinishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (
            run_id, job_index, source, output, error_kind, error, elapsed_ms, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.RunID,
		job.Index,
		job.Source,
		nullableString(job.Output),
		nullableString(job.ErrorKind),
		nullableString(job.Error),
		job.Elapsed.Milliseconds(),
		formatTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job %d: %w", job.Index, err)
	}
	return nil
}

// FinishRun writes the final counters and status of a run.
func (s *Store) FinishRun(ctx context.Context, id string, totals Totals) error {
	status := StatusCompleted
	var message string
	if totals.Err != nil {
		status = StatusFailed
		message = totals.Err.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
            finished_at = ?, status = ?, attempted = ?, completed = ?,
            failed = ?, reclaims = ?, peak_bytes = ?, error = ?
        WHERE id = ?`,
		formatTime(time.Now()),
		status,
		totals.Attempted,
		totals.Completed,
		totals.Failed,
		totals.Reclaims,
		int64(totals.PeakBytes),
		nullableString(message),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run: no run with id %s", id)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, status, strategy, workers,
        input_dir, output_dir, overlay_path, overlay_digest,
        attempted, completed, failed, reclaims, peak_bytes, error
        FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started           string
			finished, errText sql.NullString
			peak              int64
		)
		if err := rows.Scan(
			&run.ID, &started, &finished, &run.Status, &run.Strategy, &run.Workers,
			&run.InputDir, &run.OutputDir, &run.OverlayPath, &run.OverlayDigest,
			&run.Attempted, &run.Completed, &run.Failed, &run.Reclaims, &peak, &errText,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished.String)
		run.PeakBytes = uint64(peak)
		run.Error = errText.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Jobs returns the recorded jobs of a run in index order.
func (s *Store) Jobs(ctx context.Context, runID string) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, job_index, source, output, error_kind, error, elapsed_ms, finished_at
        FROM jobs WHERE run_id = ? ORDER BY job_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			job                     Job
			output, kind, errorText sql.NullString
			elapsedMS               int64
			finished                string
		)
		if err := rows.Scan(&job.RunID, &job.Index, &job.Source, &output, &kind, &errorText, &elapsedMS, &finished); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Output = output.String
		job.ErrorKind = kind.String
		job.Error = errorText.String
		job.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		job.FinishedAt = parseTime(finished)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Digest returns the BLAKE3 digest of the file at path as "blake3:<hex>".
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return "blake3:" + hex.EncodeToString(h.Sum(nil)), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
