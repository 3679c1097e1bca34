// Package stt defines the Transcriber interface for batch speech-to-text
// backends.
//
// A Transcriber turns one short mono audio clip into text. Callers transcribe
// many clips concurrently, so implementations must be safe for concurrent use.
// A clip with no recognisable speech yields the empty string and a nil error.
package stt

import (
	"context"
	"strings"
)

// Clip is one mono audio segment in [-1, 1] float samples.
type Clip struct {
	// Index is the segment's position in recording order. It is used for
	// logging and by test doubles; providers must not rely on it.
	Index int

	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Transcriber converts a clip to text.
type Transcriber interface {
	// Transcribe returns the text spoken in clip. Implementations return the
	// text with surrounding whitespace removed.
	Transcribe(ctx context.Context, clip Clip) (string, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}

// CleanText collapses runs of whitespace, including line breaks, to single
// spaces and trims the result. Providers apply it to raw service output.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
