package task

import (
	"strings"
	"time"
)

// TextSegment is one time-stamped span of recognized text on the absolute
// recording timeline. Segments are ordered by start; boundaries at interval
// joins may touch or slightly overlap.
type TextSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the immutable outcome of one transcription.
type Result struct {
	Text     string        `json:"text"`
	Segments []TextSegment `json:"segments"`
	Duration float64       `json:"duration"`
}

// BuildResult assembles the final result from ordered segments. Text is the
// space-joined concatenation of segment texts; duration is the furthest
// detected speech end.
func BuildResult(segments []TextSegment, duration float64) Result {
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	if segments == nil {
		segments = []TextSegment{}
	}
	return Result{
		Text:     strings.Join(texts, " "),
		Segments: segments,
		Duration: duration,
	}
}

// SuccessCallback is the POST body delivered on task completion.
type SuccessCallback struct {
	TaskID        string        `json:"task_id"`
	RecordingID   string        `json:"recording_id"`
	MeetingID     string        `json:"meeting_id,omitempty"`
	ParticipantID string        `json:"participant_id,omitempty"`
	Status        string        `json:"status"`
	Text          string        `json:"text"`
	Segments      []TextSegment `json:"segments"`
	Duration      float64       `json:"duration"`
	ProcessedAt   string        `json:"processed_at"`
	ProcessingMS  int64         `json:"processing_time_ms"`
	Error         *string       `json:"error"`
}

// FailureCallback is the POST body delivered on permanent failure.
type FailureCallback struct {
	TaskID      string `json:"task_id"`
	RecordingID string `json:"recording_id"`
	MeetingID   string `json:"meeting_id,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error"`
}

// NewSuccessCallback builds the completion payload for a task.
func NewSuccessCallback(t Task, res Result, processedAt time.Time, processing time.Duration) SuccessCallback {
	return SuccessCallback{
		TaskID:        t.TaskID,
		RecordingID:   t.RecordingID,
		MeetingID:     t.MeetingID,
		ParticipantID: t.ParticipantID,
		Status:        "completed",
		Text:          res.Text,
		Segments:      res.Segments,
		Duration:      res.Duration,
		ProcessedAt:   processedAt.UTC().Format(time.RFC3339),
		ProcessingMS:  processing.Milliseconds(),
		Error:         nil,
	}
}

// NewFailureCallback builds the permanent-failure payload for a task.
func NewFailureCallback(t Task, errMsg string) FailureCallback {
	return FailureCallback{
		TaskID:      t.TaskID,
		RecordingID: t.RecordingID,
		MeetingID:   t.MeetingID,
		Status:      "failed",
		Error:       errMsg,
	}
}
