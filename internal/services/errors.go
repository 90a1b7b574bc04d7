package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("audio file not found")
	ErrInvalidInput = errors.New("invalid audio format")
	ErrCorrupted    = errors.New("corrupted file")
	ErrExternalTool = errors.New("external tool error")
	ErrTimeout      = errors.New("timeout")
	ErrTransient    = errors.New("transient failure")
)

// permanentMarkers is the legacy substring set used to classify errors that
// arrive without a sentinel tag, for example from a remote recognizer whose
// message text is all we have. Tagged errors are classified by errors.Is
// first; the markers are a fallback only. Matching is case-insensitive since
// upstream tools capitalize these phrases inconsistently.
var permanentMarkers = []string{
	"audio file not found",
	"invalid audio format",
	"corrupted file",
	"404",
}

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker for later retry classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPermanent reports whether an error should never be retried: the input is
// fundamentally unprocessable and redelivery cannot change the outcome.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrCorrupted) {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
