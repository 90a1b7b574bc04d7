package vad

import (
	"context"
	"log/slog"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/services"
)

// Interval is a contiguous time range believed to contain speech, in seconds
// from the start of the recording. Start < End always holds; after Merge the
// list is ordered by Start and non-overlapping.
type Interval struct {
	Start float64
	End   float64
}

// Duration returns the interval length in seconds.
func (i Interval) Duration() float64 { return i.End - i.Start }

// Detector turns a canonical waveform into merged speech intervals.
type Detector struct {
	classifier Classifier
	cfg        config.VAD
	logger     *slog.Logger
}

// NewDetector builds a Detector around a frame classifier.
func NewDetector(classifier Classifier, cfg config.VAD, logger *slog.Logger) *Detector {
	return &Detector{
		classifier: classifier,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "vad"),
	}
}

// Detect classifies fixed-duration frames, folds the boolean sequence into raw
// intervals with silence hysteresis, drops too-short intervals, pads the
// survivors, and merges the result. A recording with no speech yields an
// empty, non-nil slice.
func (d *Detector) Detect(ctx context.Context, wave media.Waveform) ([]Interval, error) {
	started := time.Now()

	flags, err := d.classifyFrames(wave)
	if err != nil {
		return nil, err
	}

	frameDur := float64(d.cfg.FrameMS) / 1000.0
	raw := foldFrames(flags, frameDur, float64(d.cfg.MinSilenceMS)/1000.0)
	kept := dropShort(raw, float64(d.cfg.MinSpeechMS)/1000.0)
	padded := pad(kept, float64(d.cfg.SpeechPadMS)/1000.0, wave.DurationSeconds())
	merged := Merge(padded, d.cfg.MaxGapSeconds, d.cfg.MaxSegmentSeconds)

	d.logger.Debug("speech detection finished",
		logging.Int("frames", len(flags)),
		logging.Int("raw_intervals", len(raw)),
		logging.Int("merged_intervals", len(merged)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return merged, nil
}

func (d *Detector) classifyFrames(wave media.Waveform) ([]bool, error) {
	samplesPerFrame := wave.SampleRate * d.cfg.FrameMS / 1000
	frameBytes := samplesPerFrame * 2
	if frameBytes <= 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "detect", "frame", "waveform sample rate missing", nil)
	}

	flags := make([]bool, 0, len(wave.PCM)/frameBytes)
	for offset := 0; offset+frameBytes <= len(wave.PCM); offset += frameBytes {
		isSpeech, err := d.classifier.Process(wave.SampleRate, wave.PCM[offset:offset+frameBytes])
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "detect", "classify frame", "", err)
		}
		flags = append(flags, isSpeech)
	}
	return flags, nil
}

// foldFrames converts the frame-level speech flags into raw intervals. A
// speech frame opens an interval; the interval closes only once non-speech
// frames have accumulated minSilence seconds, so brief pauses do not split an
// utterance.
func foldFrames(flags []bool, frameDur, minSilence float64) []Interval {
	intervals := make([]Interval, 0)
	var (
		triggered    bool
		start        float64
		silenceSince float64 // time the current silence run began
		inSilence    bool
	)

	for i, speech := range flags {
		t := float64(i) * frameDur
		if !triggered {
			if speech {
				triggered = true
				start = t
				inSilence = false
			}
			continue
		}
		if speech {
			inSilence = false
			continue
		}
		if !inSilence {
			inSilence = true
			silenceSince = t
		}
		if t+frameDur-silenceSince >= minSilence {
			intervals = append(intervals, Interval{Start: start, End: silenceSince})
			triggered = false
			inSilence = false
		}
	}

	if triggered {
		end := float64(len(flags)) * frameDur
		if inSilence {
			end = silenceSince
		}
		if end > start {
			intervals = append(intervals, Interval{Start: start, End: end})
		}
	}
	return intervals
}

func dropShort(intervals []Interval, minSpeech float64) []Interval {
	kept := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Duration() >= minSpeech {
			kept = append(kept, iv)
		}
	}
	return kept
}

// pad widens each interval symmetrically, clamped to the recording bounds.
func pad(intervals []Interval, padding, total float64) []Interval {
	if padding <= 0 {
		return intervals
	}
	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		start := iv.Start - padding
		if start < 0 {
			start = 0
		}
		end := iv.End + padding
		if total > 0 && end > total {
			end = total
		}
		out = append(out, Interval{Start: start, End: end})
	}
	return out
}
