package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/payportal/authgw/internal/observability"
	"github.com/payportal/authgw/internal/ratelimit/store"
)

// FixedWindowLimiter implements fixed window rate limiting. Time is divided
// into windows of fixed length; each origin gets a counter per window that is
// discarded at rollover. A rejected request never consumes budget.
type FixedWindowLimiter struct {
	store  store.Store
	limit  int
	window time.Duration
	logger observability.Logger
	clock  func() time.Time

	// In-memory state, used when no distributed store is configured.
	counters sync.Map
}

// windowCounter tracks requests for one origin within one window.
type windowCounter struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// FixedWindowOption is a functional option for the limiter.
type FixedWindowOption func(*FixedWindowLimiter)

// WithStore backs the limiter with a shared counter store so budgets are
// enforced across gateway instances.
func WithStore(s store.Store) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.store = s
	}
}

// WithLogger sets the logger for the limiter.
func WithLogger(logger observability.Logger) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock sets the time source, used by tests to control window rollover.
func WithClock(clock func() time.Time) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(limit int, window time.Duration, opts ...FixedWindowOption) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		limit:  limit,
		window: window,
		logger: observability.NopLogger(),
		clock:  time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow implements Limiter.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	if l.store == nil {
		return l.allowLocal(key)
	}
	return l.allowDistributed(ctx, key)
}

// Reset implements Limiter.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	if l.store == nil {
		l.counters.Delete(key)
		return nil
	}

	windowStart := l.windowStart(l.clock())
	return l.store.Delete(ctx, l.windowKey(key, windowStart))
}

// windowStart returns the start of the window containing t.
func (l *FixedWindowLimiter) windowStart(t time.Time) time.Time {
	return t.Truncate(l.window)
}

// windowKey builds the store key for one origin and window.
func (l *FixedWindowLimiter) windowKey(key string, windowStart time.Time) string {
	return fmt.Sprintf("%s:fw:%d", key, windowStart.UnixNano())
}

// allowLocal performs rate limiting against in-process counters. The
// increment-and-compare runs under the counter's lock, so parallel requests
// from one origin cannot exceed the budget.
func (l *FixedWindowLimiter) allowLocal(key string) (*Result, error) {
	now := l.clock()
	windowStart := l.windowStart(now)

	value, _ := l.counters.LoadOrStore(key, &windowCounter{windowStart: windowStart})
	wc := value.(*windowCounter)

	wc.mu.Lock()
	defer wc.mu.Unlock()

	if !wc.windowStart.Equal(windowStart) {
		wc.count = 0
		wc.windowStart = windowStart
	}

	allowed := wc.count < l.limit
	if allowed {
		wc.count++
	}

	return l.result(allowed, wc.count, windowStart, now), nil
}

// allowDistributed performs rate limiting against the shared store. The
// compare-and-increment is atomic on the store side, so parallel requests
// across instances cannot exceed the budget.
func (l *FixedWindowLimiter) allowDistributed(ctx context.Context, key string) (*Result, error) {
	now := l.clock()
	windowStart := l.windowStart(now)
	windowKey := l.windowKey(key, windowStart)

	// Expiry gets a one-second buffer so the key outlives its window under
	// clock skew.
	count, allowed, err := l.store.IncrementIfBelow(ctx, windowKey, int64(l.limit), l.window+time.Second)
	if err != nil {
		return nil, err
	}

	return l.result(allowed, int(count), windowStart, now), nil
}

// result assembles a Result for the current window state.
func (l *FixedWindowLimiter) result(allowed bool, count int, windowStart, now time.Time) *Result {
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetAfter := windowStart.Add(l.window).Sub(now)
	if resetAfter < 0 {
		resetAfter = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = resetAfter
	}

	return &Result{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
		RetryAfter: retryAfter,
	}
}
