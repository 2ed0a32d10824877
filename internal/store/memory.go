package store

import (
	"context"
	"sync"
)

// MemoryStore implements Store with in-process maps. Uniqueness checks and
// the insert run under a single lock, so concurrent duplicate registrations
// see at-most-one-success.
type MemoryStore struct {
	mu        sync.RWMutex
	byID      map[string]*Principal
	byEmail   map[string]string
	byIDNum   map[string]string
	byAccount map[string]string
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]*Principal),
		byEmail:   make(map[string]string),
		byIDNum:   make(map[string]string),
		byAccount: make(map[string]string),
	}
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, p *Principal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	email := NormalizeEmail(p.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return ErrDuplicateKey
	}
	if _, ok := s.byIDNum[p.IDNumber]; ok {
		return ErrDuplicateKey
	}
	if _, ok := s.byAccount[p.AccountNumber]; ok {
		return ErrDuplicateKey
	}

	clone := *p
	clone.Email = email

	s.byID[clone.ID] = &clone
	s.byEmail[email] = clone.ID
	s.byIDNum[clone.IDNumber] = clone.ID
	s.byAccount[clone.AccountNumber] = clone.ID

	return nil
}

// FindByEmail implements Store.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}

	clone := *s.byID[id]
	return &clone, nil
}

// FindByID implements Store.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	clone := *p
	return &clone, nil
}

// ExistsAny implements Store.
func (s *MemoryStore) ExistsAny(ctx context.Context, email, idNumber, accountNumber string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byEmail[NormalizeEmail(email)]; ok {
		return true, nil
	}
	if _, ok := s.byIDNum[idNumber]; ok {
		return true, nil
	}
	if _, ok := s.byAccount[accountNumber]; ok {
		return true, nil
	}

	return false, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
