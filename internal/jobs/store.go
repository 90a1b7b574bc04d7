package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"scribe/internal/logging"
)

// Hash TTLs. Job progress is short-lived bookkeeping; results stay around
// long enough for late readers.
const (
	jobTTL    = 24 * time.Hour
	resultTTL = 7 * 24 * time.Hour
)

// ErrJobNotFound is returned when a job hash does not exist or has expired.
var ErrJobNotFound = errors.New("job not found")

// JobKey returns the Redis key tracking a batch job's progress.
func JobKey(jobID string) string { return "transcribe:job:" + jobID }

// ResultKey returns the Redis key holding a recording's transcription result.
func ResultKey(recordingID string) string { return "transcribe:result:" + recordingID }

// JobStatus is the externally visible progress of a batch job.
type JobStatus struct {
	Status  string `json:"status"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// ResultRecord is the cached outcome for one recording.
type ResultRecord struct {
	Status   string  `json:"status"`
	Text     string  `json:"text,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Store caches job progress and transcription results in Redis hashes.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewStore connects to Redis using a URL of the form redis://host:port/db.
func NewStore(url string, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("jobs: parse redis url: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		rdb:    redis.NewClient(opts),
		logger: logging.NewComponentLogger(logger, "jobs"),
	}, nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// SetProgress updates a job's status hash and refreshes its TTL.
func (s *Store) SetProgress(ctx context.Context, jobID, status string, current, total int) error {
	key := JobKey(jobID)
	fields := map[string]any{
		"status":  status,
		"current": strconv.Itoa(current),
		"total":   strconv.Itoa(total),
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("jobs: set progress: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, jobTTL).Err(); err != nil {
		return fmt.Errorf("jobs: expire job: %w", err)
	}
	return nil
}

// MarkCompleted flips a job's status to completed.
func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	if err := s.rdb.HSet(ctx, JobKey(jobID), "status", "completed").Err(); err != nil {
		return fmt.Errorf("jobs: mark completed: %w", err)
	}
	return nil
}

// Progress reads a job's status hash.
func (s *Store) Progress(ctx context.Context, jobID string) (JobStatus, error) {
	fields, err := s.rdb.HGetAll(ctx, JobKey(jobID)).Result()
	if err != nil {
		return JobStatus{}, fmt.Errorf("jobs: get progress: %w", err)
	}
	if len(fields) == 0 {
		return JobStatus{}, ErrJobNotFound
	}
	status := JobStatus{Status: fields["status"]}
	status.Current, _ = strconv.Atoi(fields["current"])
	status.Total, _ = strconv.Atoi(fields["total"])
	return status, nil
}

// StoreResult caches a recording's outcome.
func (s *Store) StoreResult(ctx context.Context, recordingID string, rec ResultRecord) error {
	key := ResultKey(recordingID)
	fields := map[string]any{"status": rec.Status}
	if rec.Status == "completed" {
		fields["text"] = rec.Text
		fields["duration"] = strconv.FormatFloat(rec.Duration, 'f', -1, 64)
	} else if rec.Error != "" {
		fields["error"] = rec.Error
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("jobs: store result: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, resultTTL).Err(); err != nil {
		return fmt.Errorf("jobs: expire result: %w", err)
	}
	return nil
}

// Result reads a cached recording outcome.
func (s *Store) Result(ctx context.Context, recordingID string) (ResultRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, ResultKey(recordingID)).Result()
	if err != nil {
		return ResultRecord{}, fmt.Errorf("jobs: get result: %w", err)
	}
	if len(fields) == 0 {
		return ResultRecord{}, ErrJobNotFound
	}
	rec := ResultRecord{
		Status: fields["status"],
		Text:   fields["text"],
		Error:  fields["error"],
	}
	rec.Duration, _ = strconv.ParseFloat(fields["duration"], 64)
	return rec, nil
}
