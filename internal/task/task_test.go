package task_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"scribe/internal/task"
)

func TestParseValidPayload(t *testing.T) {
	body := []byte(`{"task_id":"t1","recording_id":"r1","meeting_id":"m1","file_url":"recordings/m1/u1.ogg","callback_url":"http://app:3000/cb","retry_count":2}`)
	tk, err := task.Parse(body)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if tk.TaskID != "t1" || tk.FileURL != "recordings/m1/u1.ogg" || tk.RetryCount != 2 {
		t.Fatalf("unexpected task: %+v", tk)
	}
}

func TestParseRejectsMissingFields(t *testing.T) {
	if _, err := task.Parse([]byte(`{"recording_id":"r1","file_url":"a.ogg"}`)); err == nil {
		t.Fatal("expected error for missing task_id")
	}
	if _, err := task.Parse([]byte(`{"task_id":"t1"}`)); err == nil {
		t.Fatal("expected error for missing file_url")
	}
	if _, err := task.Parse([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestDLQPayloadStampsFailure(t *testing.T) {
	tk := task.Task{TaskID: "t1", RecordingID: "r1", FileURL: "a.ogg", RetryCount: 3}
	body, err := tk.DLQPayload("audio file not found")
	if err != nil {
		t.Fatalf("DLQPayload failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if decoded["status"] != "failed" {
		t.Fatalf("status = %v", decoded["status"])
	}
	if decoded["error"] != "audio file not found" {
		t.Fatalf("error = %v", decoded["error"])
	}
	if decoded["task_id"] != "t1" {
		t.Fatalf("task_id = %v", decoded["task_id"])
	}
}

func TestBuildResultJoinsText(t *testing.T) {
	segments := []task.TextSegment{
		{Start: 0, End: 1.5, Text: "Hello there."},
		{Start: 1.6, End: 3.2, Text: "How are you?"},
	}
	res := task.BuildResult(segments, 3.2)
	if res.Text != "Hello there. How are you?" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Duration != 3.2 {
		t.Fatalf("duration = %v", res.Duration)
	}

	joined := strings.Join([]string{segments[0].Text, segments[1].Text}, " ")
	if res.Text != joined {
		t.Fatalf("text must equal space-joined segment texts")
	}
}

func TestBuildResultEmpty(t *testing.T) {
	res := task.BuildResult(nil, 0)
	if res.Text != "" || res.Duration != 0 {
		t.Fatalf("unexpected empty result: %+v", res)
	}
	if res.Segments == nil {
		t.Fatal("segments should serialize as [] not null")
	}
}

func TestSuccessCallbackShape(t *testing.T) {
	tk := task.Task{TaskID: "t1", RecordingID: "r1", MeetingID: "m1"}
	res := task.BuildResult([]task.TextSegment{{Start: 0, End: 1, Text: "hi"}}, 1)
	cb := task.NewSuccessCallback(tk, res, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 1500*time.Millisecond)

	if cb.Status != "completed" || cb.ProcessingMS != 1500 || cb.Error != nil {
		t.Fatalf("unexpected callback: %+v", cb)
	}
	body, err := json.Marshal(cb)
	if err != nil {
		t.Fatal(err)
	}
	for _, fragment := range []string{`"status":"completed"`, `"processed_at":"2026-03-01T10:00:00Z"`, `"error":null`} {
		if !strings.Contains(string(body), fragment) {
			t.Fatalf("expected %s in %s", fragment, body)
		}
	}
}
