// Package config defines the gateway configuration and its YAML loader.
package config

import (
	"fmt"
	"time"

	"github.com/payportal/authgw/internal/audit"
)

// Config is the root configuration for the auth gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Storage   StorageConfig   `yaml:"storage"`
	Audit     audit.Config    `yaml:"audit"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	Port           int      `yaml:"port"`
	ReadTimeout    Duration `yaml:"readTimeout"`
	WriteTimeout   Duration `yaml:"writeTimeout"`
	IdleTimeout    Duration `yaml:"idleTimeout"`
	MaxBodySize    int64    `yaml:"maxBodySize"`
	TrustedProxies []string `yaml:"trustedProxies"`
}

// MetricsConfig holds the Prometheus metrics listener settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AuthConfig holds token and password hashing settings. SigningKey has no
// default: the gateway refuses to start without one.
type AuthConfig struct {
	SigningKey string   `yaml:"signingKey"`
	TokenTTL   Duration `yaml:"tokenTTL"`
	Issuer     string   `yaml:"issuer"`
	BcryptCost int      `yaml:"bcryptCost"`
}

// RateLimitConfig holds the per-client request budget.
type RateLimitConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// StorageConfig selects the credential and counter backend.
type StorageConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings shared by the credential
// store and the rate limit counter store.
type RedisConfig struct {
	Address     string   `yaml:"address"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	DialTimeout Duration `yaml:"dialTimeout"`
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultConfig returns a Config with default values. The signing key stays
// empty and must come from the file or environment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         5000,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(120 * time.Second),
			MaxBodySize:  10 * 1024,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Auth: AuthConfig{
			TokenTTL:   Duration(24 * time.Hour),
			BcryptCost: 12,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 100,
			Window:   Duration(15 * time.Minute),
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Address:     "localhost:6379",
				DialTimeout: Duration(5 * time.Second),
			},
		},
		Audit: *audit.DefaultConfig(),
	}
}

// Validate checks the configuration for errors. A missing signing key is an
// error: starting without one would mint unverifiable sessions.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Server.Port {
			return fmt.Errorf("metrics.port must differ from server.port %d", c.Server.Port)
		}
	}

	if c.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signingKey is required")
	}
	if c.Auth.TokenTTL.Duration() <= 0 {
		return fmt.Errorf("auth.tokenTTL must be positive, got %s", c.Auth.TokenTTL.Duration())
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcryptCost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("rateLimit.requests must be positive, got %d", c.RateLimit.Requests)
		}
		if c.RateLimit.Window.Duration() <= 0 {
			return fmt.Errorf("rateLimit.window must be positive, got %s", c.RateLimit.Window.Duration())
		}
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q",
			BackendMemory, BackendRedis, c.Storage.Backend)
	}
	if c.Storage.Backend == BackendRedis && c.Storage.Redis.Address == "" {
		return fmt.Errorf("storage.redis.address is required for the redis backend")
	}

	return nil
}
