// Command scribe runs the transcription worker daemon and its operator
// tooling: one-shot transcription, journal inspection, health checks, and
// config management.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// A canceled context means an interrupt already reported by the
		// command; exit quietly in that case.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "scribe:", err)
		}
		os.Exit(1)
	}
}
