// Package task defines the broker message and callback payload shapes shared
// by the consumer, pipeline, and HTTP surface.
package task

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Task is one unit of transcription work delivered over the broker. Identity
// is TaskID; RecordingID correlates to the business-level recording, not to
// the delivery. RetryCount is incremented by the consumer on every requeue.
type Task struct {
	TaskID        string `json:"task_id"`
	RecordingID   string `json:"recording_id"`
	MeetingID     string `json:"meeting_id,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	FileURL       string `json:"file_url"`
	CallbackURL   string `json:"callback_url,omitempty"`
	RetryCount    int    `json:"retry_count"`
}

// Parse decodes a broker payload into a Task and checks the fields without
// which the task cannot even be reported as failed.
func Parse(body []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return Task{}, fmt.Errorf("decode task payload: %w", err)
	}
	if strings.TrimSpace(t.TaskID) == "" {
		return Task{}, fmt.Errorf("task payload missing task_id")
	}
	if strings.TrimSpace(t.FileURL) == "" {
		return Task{}, fmt.Errorf("task %s missing file_url", t.TaskID)
	}
	return t, nil
}

// DLQPayload returns the task fields stamped with the failure for dead-letter
// publication.
func (t Task) DLQPayload(errMsg string) ([]byte, error) {
	payload := struct {
		Task
		Error  string `json:"error"`
		Status string `json:"status"`
	}{Task: t, Error: errMsg, Status: "failed"}
	return json.Marshal(payload)
}
