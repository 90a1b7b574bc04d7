package journal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/config"
)

// Terminal statuses recorded for every consumed task.
const (
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusRetryScheduled = "retry_scheduled"
)

// Entry is one recorded task outcome.
type Entry struct {
	ID              int64
	TaskID          string
	RecordingID     string
	Status          string
	Error           string
	Attempts        int
	DurationSeconds float64
	ProcessingMS    int64
	CreatedAt       time.Time
}

// Store keeps a durable local record of task outcomes in SQLite, so the
// worker's history survives broker and cache restarts.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "journal.db"))
}

// OpenPath opens the journal at an explicit database path.
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
	if err := store.applyMigrations(context.Background()); err != nil {
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

// Record appends one outcome.
func (s *Store) Record(ctx context.Context, e Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO task_outcomes (
            task_id, recording_id, status, error, attempts,
            duration_seconds, processing_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TaskID,
		e.RecordingID,
		e.Status,
		nullableString(e.Error),
		e.Attempts,
		e.DurationSeconds,
		e.ProcessingMS,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// List returns the most recent outcomes, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, task_id, recording_id, status, error, attempts,
                duration_seconds, processing_ms, created_at
         FROM task_outcomes ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ByRecording returns every recorded outcome for a recording, oldest first,
// which lays out the full retry history.
func (s *Store) ByRecording(ctx context.Context, recordingID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, task_id, recording_id, status, error, attempts,
                duration_seconds, processing_ms, created_at
         FROM task_outcomes WHERE recording_id = ? ORDER BY id ASC`,
		recordingID,
	)
	if err != nil {
		return nil, fmt.Errorf("outcomes by recording: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			errText   sql.NullString
			createdAt string
		)
		if err := rows.Scan(
			&e.ID, &e.TaskID, &e.RecordingID, &e.Status, &errText,
			&e.Attempts, &e.DurationSeconds, &e.ProcessingMS, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		e.Error = errText.String
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return entries, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
