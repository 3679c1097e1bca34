// Package pipeline runs the takesplit stages against a working directory.
//
// The stages communicate only through files in the working directory, so
// each can be re-run on its own:
//
//	segment     audio            -> Timestamps.txt [, Segments/]
//	transcribe  audio, Timestamps -> Transcript.txt
//	align       audio, script, Timestamps, Transcript -> Clips/, NotFound.txt
//	rename      Clips/           -> ClipsOrdered/
//
// Every stage holds an exclusive lock on the working directory while it runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/takesplit/internal/config"
	"github.com/MrWong99/takesplit/internal/health"
	"github.com/MrWong99/takesplit/internal/observe"
	"github.com/MrWong99/takesplit/internal/resilience"
	"github.com/MrWong99/takesplit/pkg/provider/stt"
)

// File and directory names inside the working directory.
const (
	TimestampsFile = "Timestamps.txt"
	TranscriptFile = "Transcript.txt"
	NotFoundFile   = "NotFound.txt"
	SegmentsDir    = "Segments"
	ClipsDir       = "Clips"
	OrderedDir     = "ClipsOrdered"

	lockFile = ".takesplit.lock"
)

// ErrLocked is returned when another run holds the working directory lock.
var ErrLocked = errors.New("pipeline: work directory is locked by another run")

// Pipeline runs stages for one configuration. A Pipeline is not safe for
// concurrent use; the directory lock guards against concurrent processes.
type Pipeline struct {
	cfg         *config.Config
	log         *slog.Logger
	metrics     *observe.Metrics
	registry    *config.Registry
	transcriber stt.Transcriber
	out         io.Writer
	runID       string
	progress    *health.Progress

	// chain is read by health checks from the HTTP goroutine.
	chainMu sync.Mutex
	chain   *resilience.TranscriberChain

	// locked is set while a stage holds the directory lock so that Run can
	// call the other stages without re-acquiring it.
	locked bool
}

// Option is a functional option for [New].
type Option func(*Pipeline)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRegistry sets the registry used to build transcribers from
// configuration. Default: config.NewRegistry().
func WithRegistry(r *config.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithTranscriber bypasses the registry and uses t as the only transcriber.
func WithTranscriber(t stt.Transcriber) Option {
	return func(p *Pipeline) { p.transcriber = t }
}

// WithOutput sets where the alignment summary is printed. Default: os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// WithProgress reports stage progress to pr.
func WithProgress(pr *health.Progress) Option {
	return func(p *Pipeline) { p.progress = pr }
}

// New returns a Pipeline for cfg. cfg must already be validated.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:   cfg,
		log:   slog.Default(),
		out:   os.Stdout,
		runID: uuid.NewString(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.registry == nil {
		p.registry = config.NewRegistry()
	}
	if p.progress == nil {
		p.progress = health.NewProgress(p.runID)
	}
	p.log = p.log.With("run_id", p.runID)
	return p
}

// RunID returns the identifier stamped on this pipeline's logs and summary.
func (p *Pipeline) RunID() string { return p.runID }

// path resolves name inside the working directory.
func (p *Pipeline) path(name string) string {
	return filepath.Join(p.cfg.Paths.WorkDir, name)
}

// workPath resolves a configured path relative to the working directory
// unless it is absolute.
func (p *Pipeline) workPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return p.path(name)
}

// Run executes segment, transcribe and align in order under one lock.
func (p *Pipeline) Run(ctx context.Context) (*AlignResult, error) {
	var res *AlignResult
	err := p.withLock(func() error {
		if _, err := p.Segment(ctx); err != nil {
			return err
		}
		if _, err := p.Transcribe(ctx); err != nil {
			return err
		}
		var err error
		res, err = p.Align(ctx)
		return err
	})
	return res, err
}

// withLock runs fn while holding the working directory lock.
func (p *Pipeline) withLock(fn func() error) error {
	if p.locked {
		return fn()
	}
	if err := os.MkdirAll(p.cfg.Paths.WorkDir, 0o755); err != nil {
		return fmt.Errorf("pipeline: create work dir: %w", err)
	}
	lock := flock.New(p.path(lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("pipeline: acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, p.cfg.Paths.WorkDir)
	}
	p.locked = true
	defer func() {
		p.locked = false
		if err := lock.Unlock(); err != nil {
			p.log.Warn("pipeline: failed to release lock", "err", err)
		}
	}()
	return fn()
}

// stage runs fn under the directory lock inside a span, recording its
// duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	return p.withLock(func() error {
		ctx, span := observe.StartSpan(ctx, "takesplit."+name)
		defer span.End()

		start := time.Now()
		p.progress.Begin(name)
		p.log.Info("pipeline: stage started", "stage", name)
		err := fn(ctx)
		took := time.Since(start)
		p.progress.End(err)
		p.metrics.RecordStage(ctx, name, took.Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		p.log.Info("pipeline: stage finished", "stage", name, "duration", took)
		return nil
	})
}

// Checkers returns readiness checks for the running pipeline. The
// transcriber check fails once every backend's breaker is open.
func (p *Pipeline) Checkers() []health.Checker {
	return []health.Checker{{
		Name: "transcribers",
		Check: func(context.Context) error {
			p.chainMu.Lock()
			chain := p.chain
			p.chainMu.Unlock()
			if chain == nil {
				return nil
			}
			for _, st := range chain.States() {
				if st != resilience.StateOpen {
					return nil
				}
			}
			return errors.New("all transcriber breakers are open")
		},
	}}
}
