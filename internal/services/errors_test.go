package services_test

import (
	"errors"
	"strings"
	"testing"

	"scribe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "normalize", "ffmpeg", "conversion failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"normalize", "ffmpeg", "conversion failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "download", "fetch", "connection reset", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsPermanentTaggedErrors(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"not found", services.Wrap(services.ErrNotFound, "download", "fetch", "missing object", nil), true},
		{"invalid input", services.Wrap(services.ErrInvalidInput, "normalize", "probe", "unsupported codec", nil), true},
		{"corrupted", services.Wrap(services.ErrCorrupted, "normalize", "decode", "truncated stream", nil), true},
		{"external tool", services.Wrap(services.ErrExternalTool, "normalize", "ffmpeg", "signal killed", nil), false},
		{"timeout", services.Wrap(services.ErrTimeout, "recognize", "model", "deadline", nil), false},
		{"transient", services.Wrap(services.ErrTransient, "callback", "post", "refused", nil), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := services.IsPermanent(tc.err); got != tc.permanent {
			t.Errorf("%s: IsPermanent = %v, want %v", tc.name, got, tc.permanent)
		}
	}
}

func TestIsPermanentMarkerFallback(t *testing.T) {
	// Untagged errors fall back to substring matching against the legacy
	// marker set.
	if !services.IsPermanent(errors.New("storage: 404 object does not exist")) {
		t.Fatal("expected 404 text to classify as permanent")
	}
	if services.IsPermanent(errors.New("connection refused")) {
		t.Fatal("expected transient text to classify as retryable")
	}
	// Capitalized upstream phrasings must classify the same way.
	if !services.IsPermanent(errors.New("Audio file not found")) {
		t.Fatal("expected capitalized marker to classify as permanent")
	}
	if !services.IsPermanent(errors.New("whisper: Corrupted file header")) {
		t.Fatal("expected capitalized corrupted-file text to classify as permanent")
	}
}

func TestTaskContextRoundTrip(t *testing.T) {
	ctx := services.WithTaskID(t.Context(), "task-1")
	ctx = services.WithRecordingID(ctx, "rec-9")
	ctx = services.WithStage(ctx, "recognize")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != "task-1" {
		t.Fatalf("task id = %q, %v", id, ok)
	}
	if id, ok := services.RecordingIDFromContext(ctx); !ok || id != "rec-9" {
		t.Fatalf("recording id = %q, %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "recognize" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("unexpected request id")
	}
}
