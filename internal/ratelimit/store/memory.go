package store

import (
	"context"
	"sync"
	"time"
)

// entry holds a counter value and its expiration.
type entry struct {
	value      int64
	expiration time.Time
}

// MemoryStore implements Store using in-process memory. Suitable for a
// single-instance deployment; counters do not coordinate across processes.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]*entry
	cleanup *time.Ticker
	done    chan struct{}
	closed  bool
}

// NewMemoryStore creates a new in-memory store with a one-minute cleanup
// interval.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCleanupInterval(time.Minute)
}

// NewMemoryStoreWithCleanupInterval creates a new in-memory store with a
// custom cleanup interval.
func NewMemoryStoreWithCleanupInterval(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		data:    make(map[string]*entry),
		cleanup: time.NewTicker(interval),
		done:    make(chan struct{}),
	}

	go s.startCleanup()

	return s
}

// IncrementIfBelow implements Store. The compare and the increment run
// under a single lock, so concurrent callers can neither undercount nor
// exceed the limit.
func (s *MemoryStore) IncrementIfBelow(ctx context.Context, key string, limit int64, expiration time.Duration) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || (!e.expiration.IsZero() && now.After(e.expiration)) {
		e = &entry{}
		if expiration > 0 {
			e.expiration = now.Add(expiration)
		}
		s.data[key] = e
	}

	if e.value >= limit {
		return e.value, false, nil
	}

	e.value++

	return e.value, true, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.cleanup.Stop()
	close(s.done)

	return nil
}

// startCleanup periodically removes expired entries.
func (s *MemoryStore) startCleanup() {
	for {
		select {
		case <-s.done:
			return
		case <-s.cleanup.C:
			s.removeExpired()
		}
	}
}

// removeExpired deletes all entries whose expiration has passed.
func (s *MemoryStore) removeExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.data {
		if !e.expiration.IsZero() && now.After(e.expiration) {
			delete(s.data, key)
		}
	}
}
