package recognize

import (
	"context"
	"fmt"
	"log/slog"

	"scribe/internal/config"
)

// Recognition backend identifiers, matching config validation.
const (
	BackendWhisperCLI = "whisper_cli"
	BackendOpenAI     = "openai"
)

// Invocation modes. In per-segment mode the pipeline extracts each detected
// speech interval into its own clip and recognizes them independently; in
// whole-file mode the normalized recording is recognized in one call.
const (
	ModePerSegment = "per_segment"
	ModeWholeFile  = "whole_file"
)

// Word is a single recognized word with its timing inside the clip.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is one recognized span of speech. Timings are relative to the
// start of the clip that was passed to the backend; the pipeline offsets
// them back onto the recording timeline.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Request describes a single recognition call.
type Request struct {
	// AudioPath is a mono 16 kHz WAV file.
	AudioPath string
	// Language is an ISO 639-1 hint; empty lets the engine detect.
	Language string
	// InitialPrompt seeds domain vocabulary.
	InitialPrompt string
	// Standalone marks a pre-segmented clip. Backends disable their own
	// voice activity filtering and cross-segment conditioning so each
	// clip is recognized independently.
	Standalone bool
}

// Backend recognizes speech from an audio file.
type Backend interface {
	Transcribe(ctx context.Context, req Request) ([]Segment, error)
}

// NewBackend constructs the backend selected by the configuration.
func NewBackend(cfg config.Recognizer, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case BackendWhisperCLI, "":
		return NewCLI(cfg, logger), nil
	case BackendOpenAI:
		return NewOpenAI(cfg, logger)
	default:
		return nil, fmt.Errorf("recognize: unknown backend %q", cfg.Backend)
	}
}
