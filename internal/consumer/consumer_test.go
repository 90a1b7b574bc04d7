package consumer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"scribe/internal/config"
	"scribe/internal/journal"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/task"
)

type fakeDownloader struct {
	err error
}

func (f *fakeDownloader) Download(ctx context.Context, fileURL, localPath string) error {
	return f.err
}

type fakeProcessor struct {
	result task.Result
	err    error
}

func (f *fakeProcessor) Process(ctx context.Context, recordingID, sourcePath, lang string) (task.Result, error) {
	return f.result, f.err
}

type fakePublisher struct {
	retried []task.Task
	dlq     []task.Task
	causes  []string
}

func (f *fakePublisher) PublishToRetry(ctx context.Context, t task.Task) error {
	f.retried = append(f.retried, t)
	return nil
}

func (f *fakePublisher) PublishToDLQ(ctx context.Context, t task.Task, cause string) error {
	f.dlq = append(f.dlq, t)
	f.causes = append(f.causes, cause)
	return nil
}

type fakeRecorder struct {
	entries []journal.Entry
}

func (f *fakeRecorder) Record(ctx context.Context, e journal.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

// callbackRecorder captures every POST body delivered to it.
type callbackRecorder struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (r *callbackRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err == nil {
			r.mu.Lock()
			r.bodies = append(r.bodies, body)
			r.mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (r *callbackRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func newTestConsumer(t *testing.T, downloader Downloader, processor Processor, publisher Publisher, recorder Recorder) *Consumer {
	t.Helper()
	cfg := &config.Config{}
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Broker.MaxRetries = 3
	cfg.Callback.TimeoutSeconds = 5
	return New(cfg, downloader, processor, publisher, recorder, logging.NewNop())
}

func TestExecuteCompletedSendsOneSuccessCallback(t *testing.T) {
	callbacks := &callbackRecorder{}
	srv := httptest.NewServer(callbacks.handler())
	defer srv.Close()

	publisher := &fakePublisher{}
	recorder := &fakeRecorder{}
	result := task.Result{
		Text:     "hello world",
		Segments: []task.TextSegment{{Start: 0, End: 2, Text: "hello world"}},
		Duration: 2.0,
	}
	c := newTestConsumer(t, &fakeDownloader{}, &fakeProcessor{result: result}, publisher, recorder)

	outcome := c.Execute(t.Context(), task.Task{
		TaskID:      "t1",
		RecordingID: "r1",
		FileURL:     "bucket/audio/r1.ogg",
		CallbackURL: srv.URL,
	})

	if outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(publisher.retried) != 0 || len(publisher.dlq) != 0 {
		t.Fatalf("completed task must not be republished: %+v", publisher)
	}
	if callbacks.count() != 1 {
		t.Fatalf("expected exactly one callback, got %d", callbacks.count())
	}
	body := callbacks.bodies[0]
	if body["status"] != "completed" || body["text"] != "hello world" {
		t.Fatalf("unexpected callback body: %v", body)
	}
	if _, ok := body["error"]; !ok || body["error"] != nil {
		t.Fatalf("success callback must carry an explicit null error: %v", body)
	}
	if len(recorder.entries) != 1 || recorder.entries[0].Status != journal.StatusCompleted {
		t.Fatalf("outcome not journaled: %+v", recorder.entries)
	}
}

func TestExecutePermanentErrorGoesStraightToDLQ(t *testing.T) {
	callbacks := &callbackRecorder{}
	srv := httptest.NewServer(callbacks.handler())
	defer srv.Close()

	publisher := &fakePublisher{}
	permErr := services.Wrap(services.ErrNotFound, "storage", "download", "object missing", nil)
	c := newTestConsumer(t, &fakeDownloader{err: permErr}, &fakeProcessor{}, publisher, &fakeRecorder{})

	outcome := c.Execute(t.Context(), task.Task{
		TaskID:      "t1",
		RecordingID: "r1",
		FileURL:     "bucket/audio/missing.ogg",
		CallbackURL: srv.URL,
		RetryCount:  0,
	})

	if outcome != OutcomeFailedPermanent {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(publisher.retried) != 0 {
		t.Fatal("permanent failures must never be retried")
	}
	if len(publisher.dlq) != 1 {
		t.Fatalf("expected one dlq publish, got %d", len(publisher.dlq))
	}
	if callbacks.count() != 1 {
		t.Fatalf("expected one failure callback, got %d", callbacks.count())
	}
	if callbacks.bodies[0]["status"] != "failed" {
		t.Fatalf("unexpected callback: %v", callbacks.bodies[0])
	}
}

func TestExecuteTransientErrorSchedulesRetry(t *testing.T) {
	callbacks := &callbackRecorder{}
	srv := httptest.NewServer(callbacks.handler())
	defer srv.Close()

	publisher := &fakePublisher{}
	recorder := &fakeRecorder{}
	transient := services.Wrap(services.ErrTransient, "broker", "download", "connection reset", nil)
	c := newTestConsumer(t, &fakeDownloader{err: transient}, &fakeProcessor{}, publisher, recorder)

	outcome := c.Execute(t.Context(), task.Task{
		TaskID:      "t1",
		RecordingID: "r1",
		FileURL:     "bucket/a.ogg",
		CallbackURL: srv.URL,
		RetryCount:  1,
	})

	if outcome != OutcomeRetryScheduled {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(publisher.retried) != 1 || publisher.retried[0].RetryCount != 2 {
		t.Fatalf("retry_count must be incremented before republish: %+v", publisher.retried)
	}
	if callbacks.count() != 0 {
		t.Fatal("retries must not send callbacks")
	}
	if len(recorder.entries) != 1 || recorder.entries[0].Status != journal.StatusRetryScheduled {
		t.Fatalf("retry not journaled: %+v", recorder.entries)
	}
}

func TestExecuteRetriesExhaustedGoToDLQ(t *testing.T) {
	publisher := &fakePublisher{}
	transient := services.Wrap(services.ErrTransient, "recognize", "transcribe", "engine busy", nil)
	c := newTestConsumer(t, &fakeDownloader{}, &fakeProcessor{err: transient}, publisher, &fakeRecorder{})

	// Fourth attempt: retry_count already at the maximum of 3.
	outcome := c.Execute(t.Context(), task.Task{
		TaskID:      "t1",
		RecordingID: "r1",
		FileURL:     "bucket/a.ogg",
		RetryCount:  3,
	})

	if outcome != OutcomeFailedPermanent {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(publisher.retried) != 0 {
		t.Fatal("exhausted task must not re-enter the retry queue")
	}
	if len(publisher.dlq) != 1 {
		t.Fatalf("expected dlq publish on the fourth attempt, got %d", len(publisher.dlq))
	}
}

func TestHandleDeliveryDropsMalformedJSON(t *testing.T) {
	publisher := &fakePublisher{}
	recorder := &fakeRecorder{}
	c := newTestConsumer(t, &fakeDownloader{}, &fakeProcessor{}, publisher, recorder)

	c.HandleDelivery(t.Context(), []byte("{not json"))

	if len(publisher.retried) != 0 || len(publisher.dlq) != 0 {
		t.Fatal("malformed payload must be dropped, not republished")
	}
	if len(recorder.entries) != 0 {
		t.Fatal("malformed payload must not be journaled")
	}
}

func TestExecuteMarkerFallbackClassification(t *testing.T) {
	publisher := &fakePublisher{}
	// Untagged error whose text matches a permanent marker, as produced by
	// remote recognizers.
	plain := &textError{msg: "upstream said: 404 Not Found"}
	c := newTestConsumer(t, &fakeDownloader{err: plain}, &fakeProcessor{}, publisher, &fakeRecorder{})

	outcome := c.Execute(t.Context(), task.Task{TaskID: "t1", RecordingID: "r1", FileURL: "bucket/a.ogg"})
	if outcome != OutcomeFailedPermanent {
		t.Fatalf("marker fallback did not classify as permanent: %s", outcome)
	}
}

type textError struct{ msg string }

func (e *textError) Error() string { return e.msg }
