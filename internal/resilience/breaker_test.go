package resilience_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/takesplit/internal/resilience"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newBreaker(clock *fakeClock, maxFailures int) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfig{
		Name:         "test",
		MaxFailures:  maxFailures,
		ResetTimeout: time.Minute,
		Logger:       slog.New(slog.DiscardHandler),
		Now:          clock.Now,
	})
}

func fail(context.Context) error    { return errTest }
func succeed(context.Context) error { return nil }

func TestBreaker_StartsClosed(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{})
	if b.State() != resilience.StateClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
	called := false
	if err := b.Do(context.Background(), func(context.Context) error { called = true; return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !called {
		t.Error("fn was not called")
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBreaker(clock, 3)
	ctx := context.Background()

	for range 3 {
		if err := b.Do(ctx, fail); !errors.Is(err, errTest) {
			t.Fatalf("Do = %v, want errTest", err)
		}
	}
	if b.State() != resilience.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Do while open = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn called while open")
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBreaker(clock, 3)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, succeed)
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)

	if b.State() != resilience.StateClosed {
		t.Errorf("state = %v, want closed (success resets the count)", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBreaker(clock, 1)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	clock.Advance(30 * time.Second)
	if b.State() != resilience.StateOpen {
		t.Fatalf("state before timeout = %v, want open", b.State())
	}

	clock.Advance(30 * time.Second)
	if b.State() != resilience.StateHalfOpen {
		t.Fatalf("state after timeout = %v, want half-open", b.State())
	}

	// A failed probe re-opens immediately.
	_ = b.Do(ctx, fail)
	if b.State() != resilience.StateOpen {
		t.Fatalf("state after failed probe = %v, want open", b.State())
	}

	clock.Advance(time.Minute)
	if err := b.Do(ctx, succeed); err != nil {
		t.Fatalf("probe Do: %v", err)
	}
	if b.State() != resilience.StateClosed {
		t.Errorf("state after successful probe = %v, want closed", b.State())
	}
}

func TestBreaker_ContextErrorsNotCounted(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBreaker(clock, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do = %v, want context.Canceled", err)
	}
	if b.State() != resilience.StateClosed {
		t.Errorf("state = %v, want closed (cancellation is not a backend failure)", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBreaker(clock, 1)
	_ = b.Do(context.Background(), fail)
	b.Reset()
	if b.State() != resilience.StateClosed {
		t.Errorf("state after Reset = %v, want closed", b.State())
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[resilience.State]string{
		resilience.StateClosed:   "closed",
		resilience.StateOpen:     "open",
		resilience.StateHalfOpen: "half-open",
		resilience.State(42):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
