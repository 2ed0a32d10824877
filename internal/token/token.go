// Package token mints and verifies the signed bearer tokens that bind a
// principal identifier to an absolute expiry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the default token validity period.
const DefaultTTL = 24 * time.Hour

// Sentinel errors for token verification. Verification reports exactly one
// of these for any bad token and never panics on malformed input.
var (
	// ErrTokenExpired indicates that the token's expiry has passed.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid indicates that the signature does not verify or a
	// claim is unacceptable.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrTokenMalformed indicates that the input is not structurally a
	// token.
	ErrTokenMalformed = errors.New("token is malformed")

	// ErrEmptyToken indicates that no token was supplied.
	ErrEmptyToken = errors.New("token is empty")
)

// claims carries the principal identifier alongside the registered claims.
type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Manager issues and verifies signed bearer tokens with a process-wide
// symmetric key.
type Manager struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Option is a functional option for the manager.
type Option func(*Manager)

// WithTTL sets the token validity period.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithIssuer sets the issuer claim on minted tokens.
func WithIssuer(issuer string) Option {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

// WithClock sets the time source, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a token manager. The signing key must be non-empty;
// callers treat a missing key as a fatal startup condition.
func NewManager(key []byte, opts ...Option) (*Manager, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is required")
	}

	m := &Manager{
		key: key,
		ttl: DefaultTTL,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Issue mints a signed token carrying the principal identifier, expiring
// after the configured TTL.
func (m *Manager) Issue(principalID string) (string, error) {
	now := m.now()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID: principalID,
	})

	signed, err := tok.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks signature integrity first, then expiry, and returns the
// embedded principal identifier. Failures map onto the package's sentinel
// errors.
func (m *Manager) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrEmptyToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &claims{},
		func(t *jwt.Token) (interface{}, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		default:
			return "", ErrTokenInvalid
		}
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.UserID == "" {
		return "", ErrTokenInvalid
	}

	return c.UserID, nil
}
