package consumer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scribe/internal/config"
	"scribe/internal/journal"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/task"
)

// Outcome is the terminal state of one delivery attempt.
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeFailedPermanent Outcome = "failed_permanent"
	OutcomeRetryScheduled  Outcome = "retry_scheduled"
)

// Downloader fetches the task's source object to a local path.
type Downloader interface {
	Download(ctx context.Context, fileURL, localPath string) error
}

// Processor transcribes a local recording.
type Processor interface {
	Process(ctx context.Context, recordingID, sourcePath, lang string) (task.Result, error)
}

// Publisher routes tasks to the retry queue or the DLQ.
type Publisher interface {
	PublishToRetry(ctx context.Context, t task.Task) error
	PublishToDLQ(ctx context.Context, t task.Task, cause string) error
}

// Recorder journals terminal outcomes.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Consumer executes transcription tasks delivered by the broker and decides,
// per failure, between a delayed retry and the dead-letter queue. Exactly one
// callback is sent per terminal outcome; retries send none.
type Consumer struct {
	maxRetries int
	workDir    string

	downloader Downloader
	processor  Processor
	publisher  Publisher
	recorder   Recorder
	callbacks  *CallbackSender
	logger     *slog.Logger
}

// New wires a consumer from its collaborators.
func New(cfg *config.Config, downloader Downloader, processor Processor, publisher Publisher, recorder Recorder, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consumer{
		maxRetries: cfg.Broker.MaxRetries,
		workDir:    cfg.Paths.WorkDir,
		downloader: downloader,
		processor:  processor,
		publisher:  publisher,
		recorder:   recorder,
		callbacks:  NewCallbackSender(time.Duration(cfg.Callback.TimeoutSeconds)*time.Second, logger),
		logger:     logging.NewComponentLogger(logger, "consumer"),
	}
}

// HandleDelivery is the broker handler. Malformed payloads are logged and
// dropped; the broker acks regardless, so a poisoned message never loops.
func (c *Consumer) HandleDelivery(ctx context.Context, body []byte) {
	t, err := task.Parse(body)
	if err != nil {
		c.logger.Error("dropping malformed task payload", logging.Error(err))
		return
	}
	c.Execute(ctx, t)
}

// Execute runs one task to a terminal outcome.
func (c *Consumer) Execute(ctx context.Context, t task.Task) Outcome {
	ctx = services.WithTaskID(ctx, t.TaskID)
	ctx = services.WithRecordingID(ctx, t.RecordingID)
	log := c.logger.With(
		logging.String(logging.FieldTaskID, t.TaskID),
		logging.String(logging.FieldRecordingID, t.RecordingID),
	)
	log.Info("task processing",
		logging.String("file_url", t.FileURL),
		logging.Int("retry_count", t.RetryCount))

	started := time.Now()
	result, err := c.transcribe(ctx, t)
	elapsed := time.Since(started)

	if err == nil {
		c.journal(ctx, journal.Entry{
			TaskID:          t.TaskID,
			RecordingID:     t.RecordingID,
			Status:          journal.StatusCompleted,
			Attempts:        t.RetryCount + 1,
			DurationSeconds: result.Duration,
			ProcessingMS:    elapsed.Milliseconds(),
		})
		if t.CallbackURL != "" {
			c.callbacks.Send(ctx, t.CallbackURL, task.NewSuccessCallback(t, result, time.Now(), elapsed))
		}
		log.Info("task completed",
			logging.Float64("audio_seconds", result.Duration),
			logging.Int64("processing_ms", elapsed.Milliseconds()))
		return OutcomeCompleted
	}

	log.Error("task failed", logging.Error(err), logging.Int("retry_count", t.RetryCount))

	if services.IsPermanent(err) || t.RetryCount >= c.maxRetries {
		cause := err.Error()
		if pubErr := c.publisher.PublishToDLQ(ctx, t, cause); pubErr != nil {
			log.Error("dlq publish failed", logging.Error(pubErr))
		}
		c.journal(ctx, journal.Entry{
			TaskID:       t.TaskID,
			RecordingID:  t.RecordingID,
			Status:       journal.StatusFailed,
			Error:        cause,
			Attempts:     t.RetryCount + 1,
			ProcessingMS: elapsed.Milliseconds(),
		})
		if t.CallbackURL != "" {
			c.callbacks.Send(ctx, t.CallbackURL, task.NewFailureCallback(t, cause))
		}
		return OutcomeFailedPermanent
	}

	t.RetryCount++
	if pubErr := c.publisher.PublishToRetry(ctx, t); pubErr != nil {
		// The message is already acked; losing the retry publish loses the
		// task, so record it loudly.
		log.Error("retry publish failed, task lost", logging.Error(pubErr))
	}
	c.journal(ctx, journal.Entry{
		TaskID:      t.TaskID,
		RecordingID: t.RecordingID,
		Status:      journal.StatusRetryScheduled,
		Error:       err.Error(),
		Attempts:    t.RetryCount,
	})
	log.Info("task scheduled for retry",
		logging.Int("retry_count", t.RetryCount),
		logging.Int("max_retries", c.maxRetries))
	return OutcomeRetryScheduled
}

// transcribe downloads the source object and runs the pipeline on it. The
// download directory is removed on every exit path.
func (c *Consumer) transcribe(ctx context.Context, t task.Task) (task.Result, error) {
	dir, err := os.MkdirTemp(c.workDir, "download-")
	if err != nil {
		return task.Result{}, services.Wrap(services.ErrTransient, "consumer", "workspace", "create download dir", err)
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(t.FileURL)
	if ext == "" {
		ext = ".ogg"
	}
	localPath := filepath.Join(dir, "source"+ext)
	if err := c.downloader.Download(ctx, t.FileURL, localPath); err != nil {
		return task.Result{}, err
	}
	return c.processor.Process(ctx, t.RecordingID, localPath, "")
}

func (c *Consumer) journal(ctx context.Context, e journal.Entry) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, e); err != nil {
		c.logger.Warn("journal write failed", logging.Error(err))
	}
}
