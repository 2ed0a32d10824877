// Package ratelimit provides per-client request budgets for the auth
// gateway using a fixed window counter.
package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if a single request is allowed for the given key.
	Allow(ctx context.Context, key string) (*Result, error)

	// Reset resets the rate limit state for the given key.
	Reset(ctx context.Context, key string) error
}

// Result represents the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests remaining in the current window.
	Remaining int

	// ResetAfter is the duration until the current window rolls over.
	ResetAfter time.Duration

	// RetryAfter is the duration to wait before retrying (when not allowed).
	RetryAfter time.Duration
}

// Config holds configuration for creating a rate limiter.
type Config struct {
	// Requests is the maximum number of requests allowed in the window.
	Requests int

	// Window is the time window for the rate limit.
	Window time.Duration
}

// DefaultConfig returns a Config with the gateway's default budget of
// 100 requests per origin per 15-minute window.
func DefaultConfig() *Config {
	return &Config{
		Requests: 100,
		Window:   15 * time.Minute,
	}
}

// NoopLimiter is a rate limiter that always allows requests.
type NoopLimiter struct{}

// NewNoopLimiter creates a new noop limiter.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// Reset implements Limiter.
func (l *NoopLimiter) Reset(ctx context.Context, key string) error {
	return nil
}
