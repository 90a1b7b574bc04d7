package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/logging"
	"scribe/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scribe.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("task completed", logging.String(logging.FieldTaskID, "task-42"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	for _, fragment := range []string{`"msg":"task completed"`, `"task_id":"task-42"`, `"level":"info"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in log output %q", fragment, line)
		}
	}
}

func TestWithContextAddsTaskFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := services.WithTaskID(t.Context(), "task-7")
	ctx = services.WithStage(ctx, "detect")
	logging.WithContext(ctx, logger).Info("stage started")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"task_id":"task-7"`) || !strings.Contains(line, `"stage":"detect"`) {
		t.Fatalf("expected context fields in output %q", line)
	}
}

func TestDebugBelowInfoIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("noise")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "noise") {
		t.Fatal("debug line should have been filtered")
	}
}
