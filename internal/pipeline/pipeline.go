package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/recognize"
	"scribe/internal/services"
	"scribe/internal/task"
	"scribe/internal/vad"
)

// extractWorkers bounds concurrent ffmpeg clip extraction per task.
const extractWorkers = 4

// Detector yields speech intervals for a decoded waveform.
type Detector interface {
	Detect(ctx context.Context, wave media.Waveform) ([]vad.Interval, error)
}

// Normalizer prepares audio files for recognition.
type Normalizer interface {
	Convert(ctx context.Context, source, dest string) error
	ExtractInterval(ctx context.Context, source string, startSec, durationSec float64, dest string) error
}

// Pipeline runs the full transcription flow for one recording: normalize to
// canonical PCM, detect speech intervals, recognize each interval in order,
// and assemble the result.
type Pipeline struct {
	cfg        config.Recognizer
	workDir    string
	normalizer Normalizer
	detector   Detector
	backend    recognize.Backend
	assembler  *recognize.SentenceAssembler
	logger     *slog.Logger

	loadWave func(path string) (media.Waveform, error)
}

// New wires a pipeline from its collaborators.
func New(cfg config.Recognizer, workDir string, normalizer Normalizer, detector Detector, backend recognize.Backend, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:        cfg,
		workDir:    workDir,
		normalizer: normalizer,
		detector:   detector,
		backend:    backend,
		assembler:  recognize.NewSentenceAssembler(cfg.SentenceSplitChars),
		logger:     logger,
		loadWave:   media.ReadWaveform,
	}
}

// Process transcribes the recording at sourcePath. Language overrides the
// configured default when non-empty. All intermediate files live in a
// per-task directory that is removed on every exit path.
func (p *Pipeline) Process(ctx context.Context, recordingID, sourcePath, lang string) (task.Result, error) {
	if lang == "" {
		lang = p.cfg.DefaultLanguage
	}
	log := p.logger.With(logging.String(logging.FieldRecordingID, recordingID))

	tmpDir, err := os.MkdirTemp(p.workDir, "task-")
	if err != nil {
		return task.Result{}, services.Wrap(services.ErrTransient, "pipeline", "workspace", "create task dir", err)
	}
	defer os.RemoveAll(tmpDir)

	normalized := filepath.Join(tmpDir, "audio.wav")
	if err := p.normalizer.Convert(ctx, sourcePath, normalized); err != nil {
		return task.Result{}, err
	}

	wave, err := p.loadWave(normalized)
	if err != nil {
		return task.Result{}, services.Wrap(services.ErrCorrupted, "pipeline", "decode", "read normalized audio", err)
	}

	intervals, err := p.detector.Detect(ctx, wave)
	if err != nil {
		return task.Result{}, err
	}
	log.Info("speech detection complete",
		logging.Int("intervals", len(intervals)),
		logging.Float64("audio_seconds", wave.DurationSeconds()))

	if len(intervals) == 0 {
		return task.BuildResult(nil, 0), nil
	}

	if p.cfg.Mode == recognize.ModeWholeFile {
		return p.recognizeWholeFile(ctx, normalized, lang, wave.DurationSeconds())
	}
	return p.recognizeIntervals(ctx, normalized, tmpDir, lang, intervals, log)
}

// recognizeIntervals extracts interval clips concurrently, then recognizes
// them strictly in timeline order. Cancellation is honored between clips so
// a shutdown never abandons a half-written callback.
func (p *Pipeline) recognizeIntervals(ctx context.Context, normalized, tmpDir, lang string, intervals []vad.Interval, log *slog.Logger) (task.Result, error) {
	clips, err := p.extractClips(ctx, normalized, tmpDir, intervals)
	if err != nil {
		return task.Result{}, err
	}

	var (
		segments []task.TextSegment
		duration float64
	)
	for i, iv := range intervals {
		if err := ctx.Err(); err != nil {
			return task.Result{}, services.Wrap(services.ErrTransient, "pipeline", "recognize", "canceled", err)
		}
		recognized, err := p.backend.Transcribe(ctx, recognize.Request{
			AudioPath:     clips[i],
			Language:      lang,
			InitialPrompt: p.cfg.InitialPrompt,
			Standalone:    true,
		})
		if err != nil {
			return task.Result{}, err
		}
		for _, seg := range p.assembler.Rewrite(recognized, iv.Start) {
			segments = append(segments, task.TextSegment{Start: seg.Start, End: seg.End, Text: seg.Text})
		}
		if iv.End > duration {
			duration = iv.End
		}
		log.Debug("interval recognized",
			logging.Int("index", i),
			logging.Float64("start", iv.Start),
			logging.Float64("end", iv.End))
	}
	return task.BuildResult(segments, duration), nil
}

func (p *Pipeline) recognizeWholeFile(ctx context.Context, normalized, lang string, duration float64) (task.Result, error) {
	recognized, err := p.backend.Transcribe(ctx, recognize.Request{
		AudioPath:     normalized,
		Language:      lang,
		InitialPrompt: p.cfg.InitialPrompt,
	})
	if err != nil {
		return task.Result{}, err
	}
	var segments []task.TextSegment
	for _, seg := range p.assembler.Rewrite(recognized, 0) {
		segments = append(segments, task.TextSegment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return task.BuildResult(segments, duration), nil
}

// extractClips writes one WAV clip per interval. Extraction runs on a small
// worker pool; clip order follows the interval order regardless of which
// worker finished first.
func (p *Pipeline) extractClips(ctx context.Context, source, tmpDir string, intervals []vad.Interval) ([]string, error) {
	clips := make([]string, len(intervals))
	errs := make([]error, len(intervals))

	sem := make(chan struct{}, extractWorkers)
	var wg sync.WaitGroup
	for i, iv := range intervals {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, iv vad.Interval) {
			defer wg.Done()
			defer func() { <-sem }()
			dest := filepath.Join(tmpDir, fmt.Sprintf("clip_%04d.wav", i))
			if err := p.normalizer.ExtractInterval(ctx, source, iv.Start, iv.Duration(), dest); err != nil {
				errs[i] = err
				return
			}
			clips[i] = dest
		}(i, iv)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return clips, nil
}
