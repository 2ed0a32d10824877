// Package store defines the credential store adapter: the narrow contract
// through which the auth gateway reads and creates principal records.
// Storage itself is an external collaborator; this package ships an
// in-process backend for single-instance deployments and tests, and a Redis
// backend for shared deployments.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates that no principal matched the lookup key.
	ErrNotFound = errors.New("principal not found")

	// ErrDuplicateKey indicates that an insert collided with an existing
	// unique key. Which of the three keys collided is deliberately not
	// reported.
	ErrDuplicateKey = errors.New("duplicate unique key")
)

// Principal is a persisted record of an entity capable of authenticating.
// Email, IDNumber, and AccountNumber are independent unique keys. The three
// keys and the password digest are immutable after creation.
type Principal struct {
	ID            string
	Name          string
	IDNumber      string
	AccountNumber string
	Email         string
	PasswordHash  string
	CreatedAt     time.Time
}

// Store is the credential store adapter contract.
type Store interface {
	// Insert persists a new principal. It fails with ErrDuplicateKey when
	// any of the three unique keys is already taken; under concurrent
	// duplicate inserts at most one succeeds.
	Insert(ctx context.Context, p *Principal) error

	// FindByEmail looks up a principal by email, case-insensitively.
	// Returns ErrNotFound on a miss.
	FindByEmail(ctx context.Context, email string) (*Principal, error)

	// FindByID looks up a principal by its identifier. Returns ErrNotFound
	// on a miss.
	FindByID(ctx context.Context, id string) (*Principal, error)

	// ExistsAny reports whether any principal holds one of the given
	// unique keys. A single combined existence query; callers must not
	// disclose which key matched.
	ExistsAny(ctx context.Context, email, idNumber, accountNumber string) (bool, error)

	// Close releases resources held by the store.
	Close() error
}

// NormalizeEmail lowercases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(email)
}
