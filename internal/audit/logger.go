package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/payportal/authgw/internal/observability"
)

// Constants for audit logging.
const (
	redactedValue = "[REDACTED]"
	formatJSON    = "json"
	formatText    = "text"
)

// eventsTotal counts written audit events by type, action, and outcome.
var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "authgw",
		Subsystem: "audit",
		Name:      "events_total",
		Help:      "Total number of audit events",
	},
	[]string{"type", "action", "outcome"},
)

// Logger is the audit logger interface.
type Logger interface {
	// LogEvent logs an audit event.
	LogEvent(ctx context.Context, event *Event)

	// LogAuthentication logs an authentication event.
	LogAuthentication(ctx context.Context, action Action, outcome Outcome, subject *Subject)

	// LogSecurity logs a security event.
	LogSecurity(ctx context.Context, action Action, outcome Outcome, subject *Subject, details map[string]interface{})

	// Close closes the logger.
	Close() error
}

// logger implements the Logger interface.
type logger struct {
	config *Config
	writer io.Writer
	mu     sync.Mutex
	logger observability.Logger
	closer io.Closer
}

// LoggerOption is a functional option for the logger.
type LoggerOption func(*logger)

// WithLoggerLogger sets the observability logger used for write failures.
func WithLoggerLogger(l observability.Logger) LoggerOption {
	return func(lg *logger) {
		lg.logger = l
	}
}

// WithLoggerWriter sets the writer.
func WithLoggerWriter(writer io.Writer) LoggerOption {
	return func(lg *logger) {
		lg.writer = writer
	}
}

// NewLogger creates a new audit logger.
func NewLogger(config *Config, opts ...LoggerOption) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	l := &logger{
		config: config,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.writer == nil {
		writer, closer, err := l.createWriter()
		if err != nil {
			return nil, err
		}
		l.writer = writer
		l.closer = closer
	}

	return l, nil
}

// createWriter creates the output writer based on configuration.
func (l *logger) createWriter() (io.Writer, io.Closer, error) {
	output := l.config.GetEffectiveOutput()

	switch output {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	default:
		//nolint:gosec // G304: path from config is trusted
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit log file: %w", err)
		}
		return file, file, nil
	}
}

// LogEvent logs an audit event.
func (l *logger) LogEvent(ctx context.Context, event *Event) {
	if !l.config.Enabled {
		return
	}

	if event.RequestID == "" {
		event.RequestID = observability.RequestIDFromContext(ctx)
	}

	l.redactMetadata(event)

	eventsTotal.WithLabelValues(string(event.Type), string(event.Action), string(event.Outcome)).Inc()

	l.writeEvent(event)
}

// redactMetadata redacts sensitive metadata values.
func (l *logger) redactMetadata(event *Event) {
	if len(l.config.RedactFields) == 0 || event.Metadata == nil {
		return
	}
	for key := range event.Metadata {
		if l.shouldRedact(key) {
			event.Metadata[key] = redactedValue
		}
	}
}

// shouldRedact checks if a field should be redacted.
func (l *logger) shouldRedact(field string) bool {
	lowerField := strings.ToLower(field)
	for _, redactField := range l.config.RedactFields {
		if strings.Contains(lowerField, strings.ToLower(redactField)) {
			return true
		}
	}
	return false
}

// writeEvent writes the event to the output.
func (l *logger) writeEvent(event *Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var output []byte

	switch l.config.GetEffectiveFormat() {
	case formatText:
		output = []byte(l.formatText(event))
	case formatJSON:
		fallthrough
	default:
		marshaled, err := json.Marshal(event)
		if err != nil {
			l.logger.Error("failed to marshal audit event", observability.Error(err))
			return
		}
		output = append(marshaled, '\n')
	}

	if _, err := l.writer.Write(output); err != nil {
		l.logger.Error("failed to write audit event", observability.Error(err))
	}
}

// formatText formats an event as text.
func (l *logger) formatText(event *Event) string {
	var sb strings.Builder

	sb.WriteString(event.Timestamp.Format(time.RFC3339))
	sb.WriteString(" ")
	sb.WriteString(string(event.Level))
	sb.WriteString(" ")
	sb.WriteString(string(event.Type))
	sb.WriteString(" ")
	sb.WriteString(string(event.Action))
	sb.WriteString(" ")
	sb.WriteString(string(event.Outcome))

	if event.Subject != nil {
		if event.Subject.ID != "" {
			sb.WriteString(" subject=")
			sb.WriteString(event.Subject.ID)
		}
		if event.Subject.IPAddress != "" {
			sb.WriteString(" ip=")
			sb.WriteString(event.Subject.IPAddress)
		}
	}

	if event.RequestID != "" {
		sb.WriteString(" request_id=")
		sb.WriteString(event.RequestID)
	}

	if event.Duration > 0 {
		sb.WriteString(" duration=")
		sb.WriteString(event.Duration.String())
	}

	if event.Error != "" {
		sb.WriteString(" error=")
		sb.WriteString(event.Error)
	}

	sb.WriteString("\n")
	return sb.String()
}

// LogAuthentication logs an authentication event.
func (l *logger) LogAuthentication(ctx context.Context, action Action, outcome Outcome, subject *Subject) {
	l.LogEvent(ctx, AuthenticationEvent(action, outcome, subject))
}

// LogSecurity logs a security event.
func (l *logger) LogSecurity(ctx context.Context, action Action, outcome Outcome, subject *Subject, details map[string]interface{}) {
	l.LogEvent(ctx, SecurityEvent(action, outcome, subject, details))
}

// Close closes the logger.
func (l *logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// noopLogger is a no-op audit logger.
type noopLogger struct{}

// NewNoopLogger creates a new no-op audit logger.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (l *noopLogger) LogEvent(_ context.Context, _ *Event) {}

func (l *noopLogger) LogAuthentication(_ context.Context, _ Action, _ Outcome, _ *Subject) {}

func (l *noopLogger) LogSecurity(_ context.Context, _ Action, _ Outcome, _ *Subject, _ map[string]interface{}) {
}

func (l *noopLogger) Close() error { return nil }

// Ensure implementations satisfy the interface.
var (
	_ Logger = (*logger)(nil)
	_ Logger = (*noopLogger)(nil)
)
