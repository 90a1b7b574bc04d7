package recognize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"scribe/internal/config"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// OpenAIBackend recognizes speech through an OpenAI-compatible transcription
// endpoint, requesting verbose JSON with word granularity.
type OpenAIBackend struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates a backend against the configured endpoint. A base URL
// override points it at compatible self-hosted servers.
func NewOpenAI(cfg config.Recognizer, logger *slog.Logger) (*OpenAIBackend, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("recognize: openai backend requires an api key")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "large") {
		model = openai.Whisper1
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}, nil
}

// Transcribe sends the clip for recognition and maps the verbose response
// onto segments with word timings.
func (b *OpenAIBackend) Transcribe(ctx context.Context, req Request) ([]Segment, error) {
	if req.AudioPath == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "recognize", "transcribe", "audio path required", nil)
	}
	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    b.model,
		FilePath: req.AudioPath,
		Language: language.ToISO2(req.Language),
		Prompt:   req.InitialPrompt,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "recognize", "transcribe", "transcription request", err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: seg.Start, End: seg.End, Text: text})
	}
	if len(segments) == 0 {
		if text := strings.TrimSpace(resp.Text); text != "" {
			segments = append(segments, Segment{Start: 0, End: resp.Duration, Text: text})
		}
		return segments, nil
	}

	// Words arrive as one flat list; fold each into the segment covering
	// its start time. The API returns bare word texts, but downstream
	// assembly concatenates word texts verbatim, so every word after the
	// first in a segment gets a leading space.
	for _, w := range resp.Words {
		for i := range segments {
			if w.Start >= segments[i].Start && w.Start < segments[i].End {
				text := w.Word
				if len(segments[i].Words) > 0 && !strings.HasPrefix(text, " ") {
					text = " " + text
				}
				segments[i].Words = append(segments[i].Words, Word{Text: text, Start: w.Start, End: w.End})
				break
			}
		}
	}
	return segments, nil
}
