package audit

// Config holds audit logging configuration.
type Config struct {
	// Enabled turns the audit trail on.
	Enabled bool `yaml:"enabled"`

	// Output is "stdout", "stderr", or a file path.
	Output string `yaml:"output"`

	// Format is "json" or "text".
	Format string `yaml:"format"`

	// RedactFields lists field name substrings whose values are replaced
	// with a redaction marker before the event is written.
	RedactFields []string `yaml:"redactFields"`
}

// DefaultConfig returns audit configuration with the trail enabled on
// stdout. Password material is always redacted.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		Output:       "stdout",
		Format:       "json",
		RedactFields: []string{"password", "authorization", "token"},
	}
}

// GetEffectiveOutput returns the configured output or the default.
func (c *Config) GetEffectiveOutput() string {
	if c.Output == "" {
		return "stdout"
	}
	return c.Output
}

// GetEffectiveFormat returns the configured format or the default.
func (c *Config) GetEffectiveFormat() string {
	if c.Format == "" {
		return "json"
	}
	return c.Format
}
