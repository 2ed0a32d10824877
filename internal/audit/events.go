// Package audit writes a tamper-evident trail of security-relevant events:
// registrations, logins, token introspections, and throttling decisions.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event.
type EventType string

// Event types.
const (
	EventTypeAuthentication EventType = "authentication"
	EventTypeSecurity       EventType = "security"
)

// Action represents the action being audited.
type Action string

// Actions.
const (
	ActionRegister          Action = "register"
	ActionLogin             Action = "login"
	ActionTokenIntrospect   Action = "token_introspect"
	ActionRateLimitExceeded Action = "rate_limit_exceeded"
)

// Outcome represents the outcome of an audited action.
type Outcome string

// Outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
	OutcomeDenied  Outcome = "denied"
)

// Level is the severity attached to an event.
type Level string

// Levels.
const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// Event represents one audit record.
type Event struct {
	// ID is a unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the type of event.
	Type EventType `json:"type"`

	// Action is the action being audited.
	Action Action `json:"action"`

	// Outcome is the outcome of the action.
	Outcome Outcome `json:"outcome"`

	// Level is the audit level.
	Level Level `json:"level"`

	// Subject is the account or origin the event concerns.
	Subject *Subject `json:"subject,omitempty"`

	// Error carries the failure message when the action failed.
	Error string `json:"error,omitempty"`

	// Metadata contains additional metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// RequestID correlates the event with the access log.
	RequestID string `json:"request_id,omitempty"`

	// Duration is how long the action took.
	Duration time.Duration `json:"duration,omitempty"`
}

// Subject identifies who or what performed the audited action. Fields stay
// optional: failed logins have no principal ID, throttled origins have only
// an address.
type Subject struct {
	// ID is the principal identifier.
	ID string `json:"id,omitempty"`

	// Email is the account email.
	Email string `json:"email,omitempty"`

	// IPAddress is the client IP address.
	IPAddress string `json:"ip_address,omitempty"`

	// UserAgent is the client user agent.
	UserAgent string `json:"user_agent,omitempty"`
}

// NewEvent creates a new audit event with default values.
func NewEvent(eventType EventType, action Action, outcome Outcome) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Action:    action,
		Outcome:   outcome,
		Level:     LevelInfo,
		Metadata:  make(map[string]interface{}),
	}
}

// WithSubject sets the subject.
func (e *Event) WithSubject(subject *Subject) *Event {
	e.Subject = subject
	return e
}

// WithError sets the failure message.
func (e *Event) WithError(msg string) *Event {
	e.Error = msg
	return e
}

// WithMetadata adds metadata to the event.
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithRequestID sets the correlating request ID.
func (e *Event) WithRequestID(requestID string) *Event {
	e.RequestID = requestID
	return e
}

// WithDuration sets the duration.
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.Duration = duration
	return e
}

// WithLevel sets the audit level.
func (e *Event) WithLevel(level Level) *Event {
	e.Level = level
	return e
}

// AuthenticationEvent creates an authentication audit event.
func AuthenticationEvent(action Action, outcome Outcome, subject *Subject) *Event {
	return NewEvent(EventTypeAuthentication, action, outcome).
		WithSubject(subject)
}

// SecurityEvent creates a security audit event.
func SecurityEvent(action Action, outcome Outcome, subject *Subject, details map[string]interface{}) *Event {
	event := NewEvent(EventTypeSecurity, action, outcome).
		WithSubject(subject).
		WithLevel(LevelWarn)
	for k, v := range details {
		event.WithMetadata(k, v)
	}
	return event
}
