package recognize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"scribe/internal/config"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// DefaultCLIBinary is the whisper-compatible command invoked when none is
// configured. whisper-ctranslate2 shares the faster-whisper flag surface.
const DefaultCLIBinary = "whisper-ctranslate2"

// CLIBackend shells out to a whisper-style CLI that writes a JSON transcript
// with per-word timings into an output directory.
type CLIBackend struct {
	cfg    config.Recognizer
	logger *slog.Logger
	runner func(ctx context.Context, name string, args ...string) error
}

// NewCLI creates a CLI backend from recognizer settings.
func NewCLI(cfg config.Recognizer, logger *slog.Logger) *CLIBackend {
	if cfg.Binary == "" {
		cfg.Binary = DefaultCLIBinary
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CLIBackend{cfg: cfg, logger: logger}
}

// WithRunner sets a custom command runner (for testing).
func (b *CLIBackend) WithRunner(runner func(ctx context.Context, name string, args ...string) error) {
	b.runner = runner
}

// Transcribe invokes the CLI on req.AudioPath and parses the JSON transcript
// it writes alongside the clip.
func (b *CLIBackend) Transcribe(ctx context.Context, req Request) ([]Segment, error) {
	if req.AudioPath == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "recognize", "transcribe", "audio path required", nil)
	}
	outputDir := filepath.Dir(req.AudioPath)

	args := b.buildArgs(req, outputDir)
	if err := b.run(ctx, b.cfg.Binary, args...); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "recognize", "transcribe",
			fmt.Sprintf("%s failed", b.cfg.Binary), err)
	}

	baseName := strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	segments, err := loadSegments(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "recognize", "transcribe", "read transcript", err)
	}
	return segments, nil
}

// buildArgs constructs the CLI invocation. Standalone clips get the engine's
// own VAD and cross-segment conditioning switched off so timings stay local
// to the clip.
func (b *CLIBackend) buildArgs(req Request, outputDir string) []string {
	model := b.cfg.Model
	if model == "" {
		model = "large-v3"
	}
	beam := b.cfg.BeamSize
	if beam <= 0 {
		beam = 5
	}

	args := []string{
		req.AudioPath,
		"--model", model,
		"--task", "transcribe",
		"--beam_size", strconv.Itoa(beam),
		"--output_dir", outputDir,
		"--output_format", "json",
		"--word_timestamps", "True",
	}
	if req.Standalone {
		args = append(args,
			"--vad_filter", "False",
			"--condition_on_previous_text", "False",
		)
	}
	if lang := language.ToISO2(req.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if req.InitialPrompt != "" {
		args = append(args, "--initial_prompt", req.InitialPrompt)
	}
	return args
}

func (b *CLIBackend) run(ctx context.Context, name string, args ...string) error {
	if b.runner != nil {
		return b.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// cliPayload is the JSON structure written by faster-whisper style CLIs.
type cliPayload struct {
	Segments []Segment `json:"segments"`
}

func loadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload cliPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse transcript json: %w", err)
	}
	for i := range payload.Segments {
		payload.Segments[i].Text = strings.TrimSpace(payload.Segments[i].Text)
	}
	return payload.Segments, nil
}
