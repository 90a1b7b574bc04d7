package jobs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"scribe/internal/logging"
	"scribe/internal/task"
)

// BatchItem is one recording in a batch request.
type BatchItem struct {
	RecordingID string `json:"recording_id" binding:"required"`
	FileURL     string `json:"file_url" binding:"required"`
	CallbackURL string `json:"callback_url,omitempty"`
	Language    string `json:"language,omitempty"`
}

// batchCallback is the per-item POST body for batch completions.
type batchCallback struct {
	RecordingID string             `json:"recording_id"`
	Text        string             `json:"text"`
	Segments    []task.TextSegment `json:"segments"`
	Duration    float64            `json:"duration"`
}

// Progress is the sink for job bookkeeping, implemented by Store.
type Progress interface {
	SetProgress(ctx context.Context, jobID, status string, current, total int) error
	MarkCompleted(ctx context.Context, jobID string) error
	StoreResult(ctx context.Context, recordingID string, rec ResultRecord) error
}

// Downloader fetches a stored object to a local path.
type Downloader interface {
	Download(ctx context.Context, fileURL, localPath string) error
}

// Processor transcribes a local recording.
type Processor interface {
	Process(ctx context.Context, recordingID, sourcePath, lang string) (task.Result, error)
}

// Notifier delivers best-effort callbacks.
type Notifier interface {
	Send(ctx context.Context, url string, payload any)
}

// Runner executes batch transcription jobs in the background, updating
// progress after each item. A failed item records a failed result and the
// job moves on; only cancellation stops the batch.
type Runner struct {
	progress   Progress
	downloader Downloader
	processor  Processor
	notifier   Notifier
	workDir    string
	logger     *slog.Logger
}

// NewRunner wires a batch runner.
func NewRunner(progress Progress, downloader Downloader, processor Processor, notifier Notifier, workDir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		progress:   progress,
		downloader: downloader,
		processor:  processor,
		notifier:   notifier,
		workDir:    workDir,
		logger:     logging.NewComponentLogger(logger, "batch"),
	}
}

// NewJobID mints an identifier for a batch job.
func NewJobID() string {
	return uuid.NewString()
}

// Run processes the items in order. It is meant to run on its own goroutine;
// progress and results land in the store as it goes.
func (r *Runner) Run(ctx context.Context, jobID string, items []BatchItem) {
	log := r.logger.With(logging.String("job_id", jobID), logging.Int("total", len(items)))
	log.Info("batch started")

	for i, item := range items {
		if ctx.Err() != nil {
			log.Warn("batch canceled", logging.Int("completed", i))
			return
		}
		if err := r.progress.SetProgress(ctx, jobID, "processing", i+1, len(items)); err != nil {
			log.Warn("progress update failed", logging.Error(err))
		}
		r.runItem(ctx, item, log)
	}

	if err := r.progress.MarkCompleted(ctx, jobID); err != nil {
		log.Warn("final progress update failed", logging.Error(err))
	}
	log.Info("batch completed")
}

func (r *Runner) runItem(ctx context.Context, item BatchItem, log *slog.Logger) {
	result, err := r.transcribe(ctx, item)
	if err != nil {
		log.Error("batch item failed",
			logging.String(logging.FieldRecordingID, item.RecordingID),
			logging.Error(err))
		if storeErr := r.progress.StoreResult(ctx, item.RecordingID, ResultRecord{
			Status: "failed",
			Error:  err.Error(),
		}); storeErr != nil {
			log.Warn("result store failed", logging.Error(storeErr))
		}
		return
	}

	if err := r.progress.StoreResult(ctx, item.RecordingID, ResultRecord{
		Status:   "completed",
		Text:     result.Text,
		Duration: result.Duration,
	}); err != nil {
		log.Warn("result store failed", logging.Error(err))
	}
	if item.CallbackURL != "" && r.notifier != nil {
		r.notifier.Send(ctx, item.CallbackURL, batchCallback{
			RecordingID: item.RecordingID,
			Text:        result.Text,
			Segments:    result.Segments,
			Duration:    result.Duration,
		})
	}
}

func (r *Runner) transcribe(ctx context.Context, item BatchItem) (task.Result, error) {
	dir, err := os.MkdirTemp(r.workDir, "batch-")
	if err != nil {
		return task.Result{}, err
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(item.FileURL)
	if ext == "" {
		ext = ".ogg"
	}
	localPath := filepath.Join(dir, "source"+ext)
	if err := r.downloader.Download(ctx, item.FileURL, localPath); err != nil {
		return task.Result{}, err
	}
	return r.processor.Process(ctx, item.RecordingID, localPath, item.Language)
}
