package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/autonews-pipeline/internal/clock/system"
	"github.com/JakeFAU/autonews-pipeline/internal/metrics"
	"go.uber.org/zap"
)

// Clock is the time source used by Window.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Window allows at most maxRequests acquisitions in any trailing window.
// Callers are serialized: a waiting caller holds the lock so grants are
// handed out in arrival order.
type Window struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	stamps      []time.Time
	clock       Clock
	logger      *zap.Logger
}

// WindowOption customizes a Window.
type WindowOption func(*Window)

// WithClock overrides the time source.
func WithClock(c Clock) WindowOption {
	return func(w *Window) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithLogger attaches a logger that reports waits.
func WithLogger(l *zap.Logger) WindowOption {
	return func(w *Window) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWindow creates a sliding-window limiter. A non-positive maxRequests
// disables limiting.
func NewWindow(maxRequests int, window time.Duration, opts ...WindowOption) *Window {
	w := &Window{
		maxRequests: maxRequests,
		window:      window,
		clock:       system.New(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Acquire blocks until a grant is available and records it.
func (w *Window) Acquire(ctx context.Context) error {
	if w.maxRequests <= 0 {
		return ctx.Err()
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.evict(now)
	for len(w.stamps) >= w.maxRequests {
		wait := w.window - now.Sub(w.stamps[0])
		if wait > 0 {
			w.logger.Info("rate limit reached, waiting",
				zap.Duration("wait", wait),
				zap.Int("max_requests", w.maxRequests),
			)
			if err := w.clock.Sleep(ctx, wait); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
			metrics.ObserveRateLimitWait(wait)
		}
		now = w.clock.Now()
		w.evict(now)
	}
	w.stamps = append(w.stamps, now)
	return nil
}

func (w *Window) evict(now time.Time) {
	i := 0
	for i < len(w.stamps) && now.Sub(w.stamps[i]) >= w.window {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}
