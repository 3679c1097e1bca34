// Package transcribe runs speech-to-text over every segment of a recording.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/takesplit/pkg/audio"
	"github.com/MrWong99/takesplit/pkg/provider/stt"
)

const defaultConcurrency = 4

// Option configures [Run].
type Option func(*runner)

// WithConcurrency sets how many segments are transcribed at once.
// Default: 4.
func WithConcurrency(n int) Option {
	return func(r *runner) { r.concurrency = n }
}

// WithLogger sets the logger for per-segment progress. Default:
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) { r.log = l }
}

// WithObserver registers fn to be called after each segment with the time
// the transcriber took and its error, if any.
func WithObserver(fn func(index int, took time.Duration, err error)) Option {
	return func(r *runner) { r.observe = fn }
}

type runner struct {
	concurrency int
	log         *slog.Logger
	observe     func(int, time.Duration, error)
}

// Run transcribes each range of buf with t and returns one text per range,
// in range order. The first error cancels the remaining work.
func Run(ctx context.Context, t stt.Transcriber, buf *audio.Buffer, ranges []audio.Range, opts ...Option) ([]string, error) {
	r := runner{concurrency: defaultConcurrency, log: slog.Default()}
	for _, o := range opts {
		o(&r)
	}

	texts := make([]string, len(ranges))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.concurrency, 1))
	for i, rg := range ranges {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			clip := stt.Clip{Index: i, Samples: buf.Slice(rg), SampleRate: buf.SampleRate}

			start := time.Now()
			text, err := t.Transcribe(ctx, clip)
			if r.observe != nil {
				r.observe(i, time.Since(start), err)
			}
			if err != nil {
				return fmt.Errorf("transcribe: segment %d: %w", i, err)
			}

			texts[i] = stt.CleanText(text)
			n := done.Add(1)
			r.log.Info("transcribe: segment done",
				"segment", i, "done", n, "total", len(ranges), "text", texts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}
