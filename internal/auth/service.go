// Package auth orchestrates registration, login, and session introspection
// for the gateway. Every request moves through sanitization, whitelist
// validation, and the credential store before a token is minted or accepted.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/payportal/authgw/internal/audit"
	"github.com/payportal/authgw/internal/observability"
	"github.com/payportal/authgw/internal/password"
	"github.com/payportal/authgw/internal/sanitize"
	"github.com/payportal/authgw/internal/store"
	"github.com/payportal/authgw/internal/token"
	"github.com/payportal/authgw/internal/validation"
)

// RegisterRequest carries the five registration fields.
type RegisterRequest struct {
	Name          string `json:"name"`
	IDNumber      string `json:"idNumber"`
	AccountNumber string `json:"accountNumber"`
	Email         string `json:"email"`
	Password      string `json:"password"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the public projection of a principal. It never carries the
// password digest.
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	AccountNumber string `json:"accountNumber"`
}

// Result is the outcome of a successful registration or login.
type Result struct {
	Token string
	User  *User
}

// Service implements the authentication use cases on top of the credential
// store, the password hasher, and the token manager.
type Service struct {
	store  store.Store
	hasher *password.Hasher
	tokens *token.Manager
	logger observability.Logger
	audit  audit.Logger
}

// ServiceOption is a functional option for the service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the service.
func WithServiceLogger(logger observability.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditLogger sets the audit trail for authentication outcomes.
func WithAuditLogger(auditLogger audit.Logger) ServiceOption {
	return func(s *Service) {
		if auditLogger != nil {
			s.audit = auditLogger
		}
	}
}

// NewService creates an authentication service.
func NewService(st store.Store, hasher *password.Hasher, tokens *token.Manager, opts ...ServiceOption) *Service {
	s := &Service{
		store:  st,
		hasher: hasher,
		tokens: tokens,
		logger: observability.NopLogger(),
		audit:  audit.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register creates a new principal. All five fields are sanitized, then
// validated against their whitelist rules; a collision on any unique key
// yields the generic conflict error. Hashing the secret is an explicit step
// here, the only place a digest is ever produced.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Result, error) {
	timer := time.Now()
	defer func() { authRequestDuration.WithLabelValues(opRegister).Observe(time.Since(timer).Seconds()) }()

	req.Name = sanitize.Clean(req.Name)
	req.IDNumber = sanitize.Clean(req.IDNumber)
	req.AccountNumber = sanitize.Clean(req.AccountNumber)
	req.Email = sanitize.Clean(req.Email)
	req.Password = sanitize.Clean(req.Password)

	for _, check := range []struct {
		field validation.Field
		value string
	}{
		{validation.FieldName, req.Name},
		{validation.FieldIDNumber, req.IDNumber},
		{validation.FieldAccountNumber, req.AccountNumber},
		{validation.FieldEmail, req.Email},
		{validation.FieldPassword, req.Password},
	} {
		if err := validation.Validate(check.field, check.value); err != nil {
			authRequestsTotal.WithLabelValues(opRegister, resultRejected).Inc()
			return nil, err
		}
	}

	exists, err := s.store.ExistsAny(ctx, req.Email, req.IDNumber, req.AccountNumber)
	if err != nil {
		return nil, s.internal(opRegister, "uniqueness check failed", err)
	}
	if exists {
		authRequestsTotal.WithLabelValues(opRegister, resultRejected).Inc()
		s.audit.LogAuthentication(ctx, audit.ActionRegister, audit.OutcomeFailure,
			&audit.Subject{Email: store.NormalizeEmail(req.Email)})
		return nil, ErrConflict
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, s.internal(opRegister, "password hashing failed", err)
	}

	principal := &store.Principal{
		ID:            uuid.NewString(),
		Name:          req.Name,
		IDNumber:      req.IDNumber,
		AccountNumber: req.AccountNumber,
		Email:         store.NormalizeEmail(req.Email),
		PasswordHash:  digest,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.Insert(ctx, principal); err != nil {
		// The pre-check races concurrent registrations; a late unique
		// constraint violation is the same generic conflict.
		if errors.Is(err, store.ErrDuplicateKey) {
			authRequestsTotal.WithLabelValues(opRegister, resultRejected).Inc()
			s.audit.LogAuthentication(ctx, audit.ActionRegister, audit.OutcomeFailure,
				&audit.Subject{Email: principal.Email})
			return nil, ErrConflict
		}
		return nil, s.internal(opRegister, "principal insert failed", err)
	}

	signed, err := s.tokens.Issue(principal.ID)
	if err != nil {
		return nil, s.internal(opRegister, "token issuance failed", err)
	}

	authRequestsTotal.WithLabelValues(opRegister, resultSuccess).Inc()
	s.audit.LogAuthentication(ctx, audit.ActionRegister, audit.OutcomeSuccess,
		&audit.Subject{ID: principal.ID, Email: principal.Email})
	s.logger.WithContext(ctx).Info("principal registered",
		observability.String("principal_id", principal.ID),
	)

	return &Result{Token: signed, User: publicUser(principal)}, nil
}

// Login authenticates an existing principal. Only the email shape is
// validated; password strength is a registration-time rule, and legacy weak
// passwords must still authenticate. A lookup miss and a digest mismatch
// produce the identical generic error.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Result, error) {
	timer := time.Now()
	defer func() { authRequestDuration.WithLabelValues(opLogin).Observe(time.Since(timer).Seconds()) }()

	req.Email = sanitize.Clean(req.Email)
	req.Password = sanitize.Clean(req.Password)

	if err := validation.Validate(validation.FieldEmail, req.Email); err != nil {
		authRequestsTotal.WithLabelValues(opLogin, resultRejected).Inc()
		return nil, err
	}

	principal, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authRequestsTotal.WithLabelValues(opLogin, resultRejected).Inc()
			s.audit.LogAuthentication(ctx, audit.ActionLogin, audit.OutcomeFailure,
				&audit.Subject{Email: store.NormalizeEmail(req.Email)})
			return nil, ErrInvalidCredentials
		}
		return nil, s.internal(opLogin, "principal lookup failed", err)
	}

	if !s.hasher.Verify(req.Password, principal.PasswordHash) {
		authRequestsTotal.WithLabelValues(opLogin, resultRejected).Inc()
		s.audit.LogAuthentication(ctx, audit.ActionLogin, audit.OutcomeFailure,
			&audit.Subject{ID: principal.ID, Email: principal.Email})
		return nil, ErrInvalidCredentials
	}

	signed, err := s.tokens.Issue(principal.ID)
	if err != nil {
		return nil, s.internal(opLogin, "token issuance failed", err)
	}

	authRequestsTotal.WithLabelValues(opLogin, resultSuccess).Inc()
	s.audit.LogAuthentication(ctx, audit.ActionLogin, audit.OutcomeSuccess,
		&audit.Subject{ID: principal.ID, Email: principal.Email})
	s.logger.WithContext(ctx).Info("principal logged in",
		observability.String("principal_id", principal.ID),
	)

	return &Result{Token: signed, User: publicUser(principal)}, nil
}

// Introspect verifies a bearer token and returns the public projection of
// the principal it names. Every failure mode collapses into the uniform
// unauthorized error.
func (s *Service) Introspect(ctx context.Context, bearer string) (*User, error) {
	timer := time.Now()
	defer func() { authRequestDuration.WithLabelValues(opIntrospect).Observe(time.Since(timer).Seconds()) }()

	principalID, err := s.tokens.Verify(bearer)
	if err != nil {
		authRequestsTotal.WithLabelValues(opIntrospect, resultRejected).Inc()
		s.audit.LogAuthentication(ctx, audit.ActionTokenIntrospect, audit.OutcomeDenied, nil)
		return nil, ErrUnauthorized
	}

	principal, err := s.store.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authRequestsTotal.WithLabelValues(opIntrospect, resultRejected).Inc()
			s.audit.LogAuthentication(ctx, audit.ActionTokenIntrospect, audit.OutcomeDenied,
				&audit.Subject{ID: principalID})
			return nil, ErrUnauthorized
		}
		return nil, s.internal(opIntrospect, "principal lookup failed", err)
	}

	authRequestsTotal.WithLabelValues(opIntrospect, resultSuccess).Inc()

	return publicUser(principal), nil
}

// internal logs the underlying failure with detail and returns the opaque
// internal error.
func (s *Service) internal(operation, msg string, err error) error {
	authRequestsTotal.WithLabelValues(operation, resultError).Inc()
	s.logger.Error(msg,
		observability.String("operation", operation),
		observability.Error(err),
	)
	return ErrInternal
}

// publicUser projects a principal into its public fields.
func publicUser(p *store.Principal) *User {
	return &User{
		ID:            p.ID,
		Name:          p.Name,
		Email:         p.Email,
		AccountNumber: p.AccountNumber,
	}
}
