// Package media normalizes input audio to the canonical mono 16 kHz waveform
// and extracts per-interval clips for recognition.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"scribe/internal/services"
)

const (
	// SampleRate is the canonical waveform rate expected by the VAD and the
	// recognizer backends.
	SampleRate = 16000

	// FFmpegCommand is the default codec tool binary.
	FFmpegCommand = "ffmpeg"
)

// Normalizer converts arbitrary input audio to canonical WAV via ffmpeg.
type Normalizer struct {
	binary string
	// runner is swappable for tests.
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewNormalizer builds a Normalizer around the given ffmpeg binary.
func NewNormalizer(binary string) *Normalizer {
	if strings.TrimSpace(binary) == "" {
		binary = FFmpegCommand
	}
	return &Normalizer{binary: binary}
}

// WithRunner sets a custom command runner (for testing).
func (n *Normalizer) WithRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	n.runner = runner
}

// Convert transcodes source into a mono 16 kHz PCM WAV at dest.
func (n *Normalizer) Convert(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dest,
	}
	if output, err := n.run(ctx, args); err != nil {
		return classifyFFmpegError("normalize", "convert", output, err)
	}
	return nil
}

// ExtractInterval cuts [startSec, startSec+durationSec) out of the canonical
// waveform into dest, preserving the mono 16 kHz format.
func (n *Normalizer) ExtractInterval(ctx context.Context, source string, startSec, durationSec float64, dest string) error {
	if durationSec <= 0 {
		return services.Wrap(services.ErrInvalidInput, "extract", "interval", fmt.Sprintf("invalid duration %.3f", durationSec), nil)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", startSec),
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-i", source,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dest,
	}
	if output, err := n.run(ctx, args); err != nil {
		return classifyFFmpegError("extract", "interval", output, err)
	}
	return nil
}

func (n *Normalizer) run(ctx context.Context, args []string) ([]byte, error) {
	if n.runner != nil {
		return n.runner(ctx, n.binary, args...)
	}
	cmd := exec.CommandContext(ctx, n.binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// classifyFFmpegError distinguishes unreadable input (permanent) from tool
// failures (transient). ffmpeg reports both through the exit status, so the
// stderr text is the only signal.
func classifyFFmpegError(stage, operation string, output []byte, err error) error {
	text := strings.ToLower(strings.TrimSpace(string(output)))
	detail := strings.TrimSpace(string(output))
	switch {
	case strings.Contains(text, "invalid data found when processing input"),
		strings.Contains(text, "could not find codec parameters"),
		strings.Contains(text, "invalid argument"):
		return services.Wrap(services.ErrInvalidInput, stage, operation, detail, err)
	case strings.Contains(text, "error while decoding"),
		strings.Contains(text, "truncat"):
		return services.Wrap(services.ErrCorrupted, stage, operation, detail, err)
	case strings.Contains(text, "no such file"):
		return services.Wrap(services.ErrNotFound, stage, operation, detail, err)
	default:
		return services.Wrap(services.ErrExternalTool, stage, operation, detail, err)
	}
}
