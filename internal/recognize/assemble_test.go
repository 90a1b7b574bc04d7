package recognize_test

import (
	"strings"
	"testing"

	"scribe/internal/recognize"
)

// wordsFromText fabricates word timings for a block, keeping the leading
// space convention whisper engines use.
func wordsFromText(text string, start, step float64) []recognize.Word {
	fields := strings.Fields(text)
	words := make([]recognize.Word, 0, len(fields))
	t := start
	for i, f := range fields {
		w := f
		if i > 0 {
			w = " " + f
		}
		words = append(words, recognize.Word{Text: w, Start: t, End: t + step})
		t += step
	}
	return words
}

func TestRewriteSplitsLongBlockIntoSentences(t *testing.T) {
	text := "The quarterly deployment review covered every open incident in detail. " +
		"Nobody objected to the new rollout schedule! " +
		"Should we revisit the capacity plan before the next sprint?"
	if len(text) <= 80 {
		t.Fatalf("fixture must exceed the split threshold, got %d chars", len(text))
	}
	seg := recognize.Segment{
		Start: 0,
		End:   12,
		Text:  text,
		Words: wordsFromText(text, 0, 0.4),
	}

	a := recognize.NewSentenceAssembler(80)
	got := a.Rewrite([]recognize.Segment{seg}, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %+v", len(got), got)
	}

	var parts []string
	for i, s := range got {
		parts = append(parts, s.Text)
		if s.End < s.Start {
			t.Fatalf("segment %d has inverted timing: %+v", i, s)
		}
		if i > 0 && s.Start < got[i-1].End {
			t.Fatalf("segments overlap: %+v then %+v", got[i-1], s)
		}
	}
	if joined := strings.Join(parts, " "); joined != text {
		t.Fatalf("reassembled text mismatch:\n got: %q\nwant: %q", joined, text)
	}
}

func TestRewriteKeepsShortBlocksIntact(t *testing.T) {
	seg := recognize.Segment{
		Start: 1.0,
		End:   2.5,
		Text:  "Short remark. With two sentences.",
		Words: wordsFromText("Short remark. With two sentences.", 1.0, 0.3),
	}
	a := recognize.NewSentenceAssembler(80)
	got := a.Rewrite([]recognize.Segment{seg}, 0)
	if len(got) != 1 || got[0].Text != seg.Text {
		t.Fatalf("short block should pass through unsplit, got %+v", got)
	}
}

func TestRewriteAppliesOffset(t *testing.T) {
	seg := recognize.Segment{Start: 0.5, End: 1.5, Text: "hello there"}
	a := recognize.NewSentenceAssembler(80)
	got := a.Rewrite([]recognize.Segment{seg}, 10.0)
	if len(got) != 1 {
		t.Fatalf("expected 1 segment, got %+v", got)
	}
	if got[0].Start != 10.5 || got[0].End != 11.5 {
		t.Fatalf("offset not applied: %+v", got[0])
	}
}

func TestRewriteFlushesTrailingRunWithoutPunctuation(t *testing.T) {
	text := "First complete sentence that is definitely long enough to trip the threshold here. " +
		"and then a dangling clause with no terminal punctuation"
	seg := recognize.Segment{
		Start: 0,
		End:   10,
		Text:  text,
		Words: wordsFromText(text, 0, 0.4),
	}
	a := recognize.NewSentenceAssembler(80)
	got := a.Rewrite([]recognize.Segment{seg}, 0)
	if len(got) != 2 {
		t.Fatalf("expected sentence plus trailing run, got %+v", got)
	}
	if !strings.HasSuffix(got[1].Text, "punctuation") {
		t.Fatalf("trailing run lost: %+v", got[1])
	}
}

func TestRewriteDropsEmptySegments(t *testing.T) {
	a := recognize.NewSentenceAssembler(80)
	got := a.Rewrite([]recognize.Segment{{Start: 0, End: 1, Text: "   "}}, 0)
	if len(got) != 0 {
		t.Fatalf("blank segment should be dropped, got %+v", got)
	}
}
