package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/takesplit/pkg/provider/stt"
)

// ErrAllFailed is returned when every transcriber in a [TranscriberChain]
// failed or had an open breaker.
var ErrAllFailed = errors.New("resilience: all transcribers failed")

var _ stt.Transcriber = (*TranscriberChain)(nil)

type link struct {
	t       stt.Transcriber
	breaker *Breaker
}

// ChainOption configures a [TranscriberChain].
type ChainOption func(*TranscriberChain)

// WithLogger sets the logger for failover messages and breaker state
// changes. Default: slog.Default().
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *TranscriberChain) { c.log = l }
}

// WithFailureHook registers fn to be called whenever a transcriber in the
// chain fails, including calls rejected by an open breaker.
func WithFailureHook(fn func(provider string, err error)) ChainOption {
	return func(c *TranscriberChain) { c.onFailure = fn }
}

// TranscriberChain tries transcribers in order. Each has its own [Breaker],
// so a backend that keeps failing is skipped until its timeout elapses.
type TranscriberChain struct {
	links     []link
	log       *slog.Logger
	onFailure func(string, error)
}

// NewTranscriberChain returns a chain over ts, preferred first. Every
// transcriber gets a breaker configured from cfg with its own name.
func NewTranscriberChain(cfg BreakerConfig, ts []stt.Transcriber, opts ...ChainOption) (*TranscriberChain, error) {
	if len(ts) == 0 {
		return nil, errors.New("resilience: transcriber chain needs at least one transcriber")
	}
	c := &TranscriberChain{log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	for _, t := range ts {
		bc := cfg
		bc.Name = t.Name()
		if bc.Logger == nil {
			bc.Logger = c.log
		}
		c.links = append(c.links, link{t: t, breaker: NewBreaker(bc)})
	}
	return c, nil
}

// Name implements stt.Transcriber.
func (c *TranscriberChain) Name() string {
	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.t.Name()
	}
	return strings.Join(names, ",")
}

// Transcribe implements stt.Transcriber. Context errors stop the chain
// immediately instead of falling through to the next backend.
func (c *TranscriberChain) Transcribe(ctx context.Context, clip stt.Clip) (string, error) {
	var errs []error
	for _, l := range c.links {
		var text string
		err := l.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			text, err = l.t.Transcribe(ctx, clip)
			return err
		})
		if err == nil {
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		errs = append(errs, fmt.Errorf("%s: %w", l.t.Name(), err))
		if c.onFailure != nil {
			c.onFailure(l.t.Name(), err)
		}
		if errors.Is(err, ErrCircuitOpen) {
			c.log.Debug("resilience: skipping transcriber, circuit open", "provider", l.t.Name())
			continue
		}
		c.log.Warn("resilience: transcriber failed, trying next",
			"provider", l.t.Name(), "segment", clip.Index, "err", err)
	}
	return "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}

// States returns the breaker state of each transcriber by name.
func (c *TranscriberChain) States() map[string]State {
	out := make(map[string]State, len(c.links))
	for _, l := range c.links {
		out[l.t.Name()] = l.breaker.State()
	}
	return out
}
