package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\x1b[0m"
	colorDim    = "\x1b[2m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorBlue   = "\x1b[34m"
	colorCyan   = "\x1b[36m"
)

// consoleHandler renders human-oriented log lines:
//
//	15:04:05 INFO  [consumer] task completed task_id=abc duration=4.2s
type consoleHandler struct {
	mu     sync.Mutex
	writer io.Writer
	level  *slog.LevelVar
	attrs  []slog.Attr
	color  bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar) slog.Handler {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &consoleHandler{writer: w, level: lvl, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	attrs := make([]slog.Attr, 0, record.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)
		return true
	})

	var component string
	fields := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Key == FieldComponent && component == "" {
			component = attr.Value.String()
			continue
		}
		fields = append(fields, attr)
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return fieldRank(fields[i].Key) < fieldRank(fields[j].Key)
	})

	var b strings.Builder
	b.WriteString(h.paint(colorDim, timestamp.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(h.paint(levelColor(record.Level), fmt.Sprintf("%-5s", levelLabel(record.Level))))
	if component != "" {
		b.WriteByte(' ')
		b.WriteString(h.paint(colorCyan, "["+component+"]"))
	}
	b.WriteByte(' ')
	b.WriteString(record.Message)
	for _, attr := range fields {
		b.WriteByte(' ')
		b.WriteString(h.paint(colorDim, attr.Key+"="))
		b.WriteString(formatValue(attr.Value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &consoleHandler{writer: h.writer, level: h.level, attrs: merged, color: h.color}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened on the console; the JSON handler preserves them.
	return h
}

func (h *consoleHandler) paint(color, text string) string {
	if !h.color || color == "" {
		return text
	}
	return color + text + colorReset
}

// fieldRank keeps task-identifying fields at the front of the line.
func fieldRank(key string) int {
	switch key {
	case FieldTaskID:
		return 0
	case FieldRecordingID:
		return 1
	case FieldStage:
		return 2
	default:
		return 3
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorBlue
	default:
		return colorDim
	}
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t") {
			return fmt.Sprintf("%q", s)
		}
		return s
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindFloat64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v.Float64()), "0"), ".")
	default:
		return v.String()
	}
}
