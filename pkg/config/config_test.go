package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/festival/pkg/observability"
	"github.com/platinummonkey/festival/pkg/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL_TRUE", "TRUE")
	t.Setenv("TEST_BOOL_ONE", "1")
	t.Setenv("TEST_BOOL_FALSE", "no")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "forty")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_LIST", " a, ,b ,c")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_STR_UNSET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL_TRUE", false))
	assert.True(t, getEnvBool("TEST_BOOL_ONE", false))
	assert.False(t, getEnvBool("TEST_BOOL_FALSE", true))
	assert.True(t, getEnvBool("TEST_BOOL_UNSET", true))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_INT_BAD", 1))
	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, 0.25, getEnvFloat("TEST_FLOAT", 1))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST", nil))
	assert.Equal(t, []string{"*"}, getEnvList("TEST_LIST_UNSET", []string{"*"}))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("FESTIVAL_JWT_SECRET", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenValidity)
	assert.False(t, cfg.Auth.DenyUnlistedMutations)
	assert.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())
	assert.Equal(t, []byte(testSecret), cfg.Auth.TokenConfig().Secret)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FESTIVAL_JWT_SECRET", testSecret)
	t.Setenv("FESTIVAL_PORT", "8000")
	t.Setenv("FESTIVAL_AUTH_DENY_UNLISTED_MUTATIONS", "true")
	t.Setenv("FESTIVAL_DB_DRIVER", "postgres")
	t.Setenv("FESTIVAL_DB_URL", "postgres://localhost/festival")
	t.Setenv("FESTIVAL_RATE_LIMIT_REQUESTS", "5")
	t.Setenv("FESTIVAL_LOG_LEVEL", "debug")
	t.Setenv("FESTIVAL_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.True(t, cfg.Auth.DenyUnlistedMutations)
	assert.Equal(t, storage.DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.Server.TrustedProxies)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "festival.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8100"
  cors_origins: ["https://festival.example.com"]
auth:
  jwt_secret: "`+testSecret+`"
  token_validity: 2h
storage:
  driver: sqlite3
  url: "file:test.db"
  cache_ttl: 30s
rate_limit:
  requests: 3
`), 0o600))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("FESTIVAL_PORT", "8200")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8200", cfg.Server.Port, "environment wins over the file")
	assert.Equal(t, []string{"https://festival.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenValidity)
	assert.Equal(t, "file:test.db", cfg.Storage.URL)
	assert.Equal(t, 30*time.Second, cfg.Storage.CacheTTL)
	assert.Equal(t, 3, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window, "unset keys keep defaults")
	assert.Equal(t, "9090", cfg.Server.HealthPort)
}

func TestLoadConfig_FileErrors(t *testing.T) {
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "failed to read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	t.Setenv(ConfigFileEnv, path)
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"same health port", func(c *Config) { c.Server.HealthPort = c.Server.Port }, "must be different"},
		{"metrics port clash", func(c *Config) { c.Server.MetricsPort = c.Server.HealthPort }, "metrics port"},
		{"metrics disabled ignores clash", func(c *Config) {
			c.Server.MetricsPort = c.Server.HealthPort
			c.Observability.MetricsEnabled = false
		}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "JWT secret must be at least 32 bytes"},
		{"zero validity", func(c *Config) { c.Auth.TokenValidity = 0 }, "token validity"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "mysql" }, "unsupported storage driver"},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"lb.internal"} }, "invalid trusted proxy"},
		{"bad rate limit", func(c *Config) { c.RateLimit.Requests = 0 }, "rate limit"},
		{"rate limit disabled", func(c *Config) { c.RateLimit.Enabled = false; c.RateLimit.Requests = 0 }, ""},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "OpenTelemetry endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = testSecret
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
