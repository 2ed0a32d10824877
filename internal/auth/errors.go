package auth

import "errors"

// Sentinel errors for authentication outcomes. The conflict and credential
// errors are deliberately generic: disclosing which unique key collided or
// whether an account exists would hand an attacker an enumeration oracle.
var (
	// ErrConflict indicates that registration collided with an existing
	// unique key. The message never names the colliding field.
	ErrConflict = errors.New("User with this email, ID number, or account number already exists")

	// ErrInvalidCredentials indicates a login failure. Lookup misses and
	// password mismatches produce this same error.
	ErrInvalidCredentials = errors.New("Invalid credentials")

	// ErrUnauthorized indicates that a bearer token was missing, invalid,
	// expired, or referenced no principal.
	ErrUnauthorized = errors.New("Invalid token")

	// ErrInternal indicates an unexpected storage or hashing failure.
	// Detail is logged server-side and never returned to the caller.
	ErrInternal = errors.New("internal error")
)
