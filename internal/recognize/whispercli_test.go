package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
)

func TestCLIBuildArgsStandalone(t *testing.T) {
	b := NewCLI(config.Recognizer{Model: "large-v3", BeamSize: 5, Binary: "whisper-ctranslate2"}, logging.NewNop())
	args := b.buildArgs(Request{
		AudioPath:     "/tmp/clip.wav",
		Language:      "ru",
		InitialPrompt: "API backend deploy",
		Standalone:    true,
	}, "/tmp")

	for _, pair := range [][2]string{
		{"--model", "large-v3"},
		{"--beam_size", "5"},
		{"--vad_filter", "False"},
		{"--condition_on_previous_text", "False"},
		{"--word_timestamps", "True"},
		{"--language", "ru"},
		{"--initial_prompt", "API backend deploy"},
		{"--output_format", "json"},
	} {
		i := slices.Index(args, pair[0])
		if i < 0 || i+1 >= len(args) || args[i+1] != pair[1] {
			t.Fatalf("missing %s %s in %v", pair[0], pair[1], args)
		}
	}
}

func TestCLIBuildArgsWholeFileKeepsEngineVAD(t *testing.T) {
	b := NewCLI(config.Recognizer{}, logging.NewNop())
	args := b.buildArgs(Request{AudioPath: "/tmp/full.wav"}, "/tmp")
	if slices.Contains(args, "--vad_filter") || slices.Contains(args, "--condition_on_previous_text") {
		t.Fatalf("whole-file mode must not disable engine VAD: %v", args)
	}
}

func TestCLITranscribeParsesTranscript(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(audio, []byte("riff"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewCLI(config.Recognizer{}, logging.NewNop())
	b.WithRunner(func(ctx context.Context, name string, args ...string) error {
		payload := cliPayload{Segments: []Segment{
			{Start: 0, End: 2.4, Text: " hello world ", Words: []Word{
				{Text: " hello", Start: 0, End: 1.1},
				{Text: " world", Start: 1.2, End: 2.4},
			}},
		}}
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "clip.json"), data, 0o644)
	})

	got, err := b.Transcribe(t.Context(), Request{AudioPath: audio, Standalone: true})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(got) != 1 || got[0].Text != "hello world" {
		t.Fatalf("unexpected segments: %+v", got)
	}
	if len(got[0].Words) != 2 {
		t.Fatalf("word timings lost: %+v", got[0])
	}
}

func TestCLITranscribeWrapsRunnerFailure(t *testing.T) {
	b := NewCLI(config.Recognizer{}, logging.NewNop())
	b.WithRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("model not found")
	})
	_, err := b.Transcribe(t.Context(), Request{AudioPath: "/tmp/missing.wav"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool classification, got %v", err)
	}
	if services.IsPermanent(err) {
		t.Fatalf("tool failure must stay retryable: %v", err)
	}
}

func TestNewBackendSelection(t *testing.T) {
	if _, err := NewBackend(config.Recognizer{Backend: "whisper_cli"}, logging.NewNop()); err != nil {
		t.Fatalf("whisper_cli: %v", err)
	}
	if _, err := NewBackend(config.Recognizer{Backend: "openai", OpenAIAPIKey: "sk-test"}, logging.NewNop()); err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, err := NewBackend(config.Recognizer{Backend: "openai"}, logging.NewNop()); err == nil {
		t.Fatal("openai without key should fail")
	}
	if _, err := NewBackend(config.Recognizer{Backend: "bogus"}, logging.NewNop()); err == nil {
		t.Fatal("unknown backend should fail")
	}
}
