package services

import "context"

type contextKey string

const (
	taskIDKey      contextKey = "task_id"
	recordingIDKey contextKey = "recording_id"
	stageKey       contextKey = "stage"
	requestIDKey   contextKey = "request_id"
)

// WithTaskID annotates context with the broker task identifier.
func WithTaskID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext extracts the task identifier if present.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(taskIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRecordingID annotates context with the business-level recording identifier.
func WithRecordingID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, recordingIDKey, id)
}

// RecordingIDFromContext extracts the recording identifier if present.
func RecordingIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(recordingIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(requestIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
