// Package validation provides whitelist validation for untrusted input
// fields. Every field type has a single stateless predicate; anything not
// matching the known-good shape is rejected with a human-readable reason.
package validation

import (
	"fmt"
	"regexp"
)

// Field identifies a validated field type.
type Field string

// Validated field types.
const (
	FieldName             Field = "name"
	FieldIDNumber         Field = "idNumber"
	FieldAccountNumber    Field = "accountNumber"
	FieldEmail            Field = "email"
	FieldPassword         Field = "password"
	FieldAmount           Field = "amount"
	FieldCurrency         Field = "currency"
	FieldRecipientAccount Field = "recipientAccount"
	FieldSwiftCode        Field = "swiftCode"
)

// Whitelist patterns per field type. These are the interoperability contract
// with existing clients and stored records; do not loosen or tighten them.
var patterns = map[Field]*regexp.Regexp{
	FieldName:             regexp.MustCompile(`^[a-zA-Z\s]{2,50}$`),
	FieldIDNumber:         regexp.MustCompile(`^[0-9]{13}$`),
	FieldAccountNumber:    regexp.MustCompile(`^[0-9]{10,12}$`),
	FieldEmail:            regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`),
	FieldPassword:         regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,}$`),
	FieldAmount:           regexp.MustCompile(`^\d+(\.\d{1,2})?$`),
	FieldCurrency:         regexp.MustCompile(`^[A-Z]{3}$`),
	FieldRecipientAccount: regexp.MustCompile(`^[A-Z0-9]{8,34}$`),
	FieldSwiftCode:        regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`),
}

// Password character-class requirements. Go's regexp does not support
// lookaheads, so the composed password rule is split into one pattern per
// required class plus the charset/length pattern above.
var (
	passwordLower   = regexp.MustCompile(`[a-z]`)
	passwordUpper   = regexp.MustCompile(`[A-Z]`)
	passwordDigit   = regexp.MustCompile(`\d`)
	passwordSpecial = regexp.MustCompile(`[@$!%*?&]`)
)

// Rejection messages per field type.
var reasons = map[Field]string{
	FieldName:             "Invalid name format",
	FieldIDNumber:         "ID Number must be 13 digits",
	FieldAccountNumber:    "Account number must be 10-12 digits",
	FieldEmail:            "Invalid email format",
	FieldPassword:         "Password must be at least 8 characters with uppercase, lowercase, number and special character",
	FieldAmount:           "Invalid amount format",
	FieldCurrency:         "Currency must be a 3-letter code",
	FieldRecipientAccount: "Invalid account number format",
	FieldSwiftCode:        "Invalid SWIFT code format",
}

// Error reports a field that failed whitelist validation.
type Error struct {
	Field  Field
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Reason
}

// Validate checks rawValue against the whitelist pattern for the given field
// type. It returns nil when the value is well-formed and an *Error naming the
// violated rule otherwise. Validate is pure and safe for concurrent use.
func Validate(field Field, rawValue string) error {
	pattern, ok := patterns[field]
	if !ok {
		return &Error{Field: field, Reason: fmt.Sprintf("unknown field type %q", field)}
	}

	if !pattern.MatchString(rawValue) {
		return &Error{Field: field, Reason: reasons[field]}
	}

	if field == FieldPassword && !passwordClasses(rawValue) {
		return &Error{Field: field, Reason: reasons[field]}
	}

	return nil
}

// passwordClasses reports whether the password contains at least one
// character from each required class.
func passwordClasses(password string) bool {
	return passwordLower.MatchString(password) &&
		passwordUpper.MatchString(password) &&
		passwordDigit.MatchString(password) &&
		passwordSpecial.MatchString(password)
}
