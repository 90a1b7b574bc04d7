package logging

import (
	"context"
	"log/slog"

	"scribe/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTaskID is the standardized structured logging key for broker task identifiers.
	FieldTaskID = "task_id"
	// FieldRecordingID is the standardized structured logging key for recording identifiers.
	FieldRecordingID = "recording_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldEventType marks task state transitions (received, completed, retried, failed).
	FieldEventType = "event_type"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTaskID, id))
	}
	if id, ok := services.RecordingIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRecordingID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
