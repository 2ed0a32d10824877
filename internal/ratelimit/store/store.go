// Package store provides storage backends for rate limit counters.
package store

import (
	"context"
	"time"
)

// Store defines the interface for rate limit counter storage.
type Store interface {
	// IncrementIfBelow atomically increments the counter when its value is
	// below limit, setting the expiration if the key is new. It returns the
	// resulting counter value and whether the increment was applied. The
	// check and the increment are a single atomic operation; a rejected
	// request never consumes budget.
	IncrementIfBelow(ctx context.Context, key string, limit int64, expiration time.Duration) (int64, bool, error)

	// Delete removes the key from the store.
	Delete(ctx context.Context, key string) error

	// Close closes the store and releases resources.
	Close() error
}
