package recognize

import (
	"math"
	"strings"
)

// DefaultSplitThreshold is the block length in characters above which a
// recognized segment is rewritten into sentence-sized pieces.
const DefaultSplitThreshold = 80

// sentenceEnders are the trailing characters that close a sentence.
const sentenceEnders = ".!?"

// SentenceAssembler rewrites long recognized blocks into sentence-sized
// segments using word timings, so downstream consumers get readable units
// instead of one wall of text per speech interval.
type SentenceAssembler struct {
	threshold int
}

// NewSentenceAssembler returns an assembler splitting blocks longer than
// threshold characters. Non-positive thresholds fall back to the default.
func NewSentenceAssembler(threshold int) *SentenceAssembler {
	if threshold <= 0 {
		threshold = DefaultSplitThreshold
	}
	return &SentenceAssembler{threshold: threshold}
}

// Rewrite shifts segment timings by offset seconds onto the recording
// timeline and splits any segment whose text exceeds the threshold and
// carries word timings. Short segments and segments without words pass
// through with adjusted timings only.
func (a *SentenceAssembler) Rewrite(segments []Segment, offset float64) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if len(seg.Words) > 0 && len(text) > a.threshold {
			out = append(out, splitWords(seg.Words, offset)...)
			continue
		}
		out = append(out, Segment{
			Start: round3(offset + seg.Start),
			End:   round3(offset + seg.End),
			Text:  text,
		})
	}
	return out
}

// splitWords folds a word run into sentences, closing one whenever a word
// ends with sentence punctuation and flushing the trailing run. Word texts
// carry their own leading spaces, so they concatenate without separators.
func splitWords(words []Word, offset float64) []Segment {
	var (
		out     []Segment
		current []string
		start   float64
		open    bool
	)
	flush := func(end float64) {
		text := strings.TrimSpace(strings.Join(current, ""))
		if text != "" {
			out = append(out, Segment{
				Start: round3(offset + start),
				End:   round3(offset + end),
				Text:  text,
			})
		}
		current = current[:0]
		open = false
	}
	for _, w := range words {
		if !open {
			start = w.Start
			open = true
		}
		current = append(current, w.Text)
		trimmed := strings.TrimSpace(w.Text)
		if trimmed != "" && strings.ContainsRune(sentenceEnders, rune(trimmed[len(trimmed)-1])) {
			flush(w.End)
		}
	}
	if open && len(words) > 0 {
		flush(words[len(words)-1].End)
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
