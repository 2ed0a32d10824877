package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
auth:
  signingKey: test-key
`

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, int64(10*1024), cfg.Server.MaxBodySize)
	assert.Equal(t, "test-key", cfg.Auth.SigningKey)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Duration())
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window.Duration())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromReader_Overrides(t *testing.T) {
	yaml := `
server:
  port: 8080
  maxBodySize: 4096
auth:
  signingKey: test-key
  tokenTTL: 1h
  bcryptCost: 10
rateLimit:
  enabled: true
  requests: 20
  window: 1m
storage:
  backend: redis
  redis:
    address: redis.internal:6379
    db: 2
log:
  level: debug
  format: console
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(4096), cfg.Server.MaxBodySize)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL.Duration())
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 20, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window.Duration())
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Storage.Redis.Address)
	assert.Equal(t, 2, cfg.Storage.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromReader_MissingSigningKey(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`server: {port: 8080}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.signingKey is required")
}

func TestLoadFromReader_EnvSubstitution(t *testing.T) {
	t.Setenv("AUTHGW_TEST_SECRET", "from-env")

	yaml := `
auth:
  signingKey: ${AUTHGW_TEST_SECRET}
server:
  port: ${AUTHGW_TEST_PORT:-6000}
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.SigningKey)
	assert.Equal(t, 6000, cfg.Server.Port)
}

func TestLoadFromReader_EscapedDollar(t *testing.T) {
	yaml := `
auth:
  signingKey: pa$$s{literal}
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, "pa$s{literal}", cfg.Auth.SigningKey)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.Auth.SigningKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad server port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "metrics port collision",
			mutate:  func(c *Config) { c.Metrics.Port = c.Server.Port },
			wantErr: "metrics.port",
		},
		{
			name:    "zero token ttl",
			mutate:  func(c *Config) { c.Auth.TokenTTL = 0 },
			wantErr: "auth.tokenTTL",
		},
		{
			name:    "bcrypt cost out of range",
			mutate:  func(c *Config) { c.Auth.BcryptCost = 2 },
			wantErr: "auth.bcryptCost",
		},
		{
			name:    "zero rate limit budget",
			mutate:  func(c *Config) { c.RateLimit.Requests = 0 },
			wantErr: "rateLimit.requests",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "mongo" },
			wantErr: "storage.backend",
		},
		{
			name: "redis backend without address",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendRedis
				c.Storage.Redis.Address = ""
			},
			wantErr: "storage.redis.address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Auth.SigningKey = "test-key"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDuration_Unmarshal(t *testing.T) {
	yaml := `
auth:
  signingKey: test-key
  tokenTTL: 90m
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL.Duration())
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	yaml := `
auth:
  signingKey: test-key
  tokenTTL: ninety-minutes
`
	_, err := LoadFromReader(strings.NewReader(yaml))
	assert.Error(t, err)
}
