// Package password provides one-way hashing and verification of principal
// secrets using bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the default bcrypt work factor.
const DefaultCost = 12

// ErrPasswordTooLong indicates the password exceeds bcrypt's 72-byte input
// bound.
var ErrPasswordTooLong = errors.New("password exceeds maximum length")

// Hasher hashes and verifies secrets. The digest embeds the algorithm id,
// cost, and a per-call random salt, so verification needs no external
// metadata.
type Hasher struct {
	cost int
}

// Option is a functional option for the hasher.
type Option func(*Hasher)

// WithCost sets the bcrypt work factor. Values outside bcrypt's supported
// range fall back to the default.
func WithCost(cost int) Option {
	return func(h *Hasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// NewHasher creates a new bcrypt hasher.
func NewHasher(opts ...Option) *Hasher {
	h := &Hasher{cost: DefaultCost}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Hash returns a salted digest of the secret. Two calls with the same secret
// produce different digests because the salt is drawn fresh per call.
func (h *Hasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest. The comparison runs in time
// independent of where a mismatch occurs.
func (h *Hasher) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
