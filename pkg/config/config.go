package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/observability"
	"github.com/platinummonkey/festival/pkg/storage"
)

// ConfigFileEnv names the optional YAML file loaded before the environment
const ConfigFileEnv = "FESTIVAL_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Auth configuration
	Auth AuthConfig `yaml:"auth"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Credential endpoint throttling
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// Health check server port (separate from main API)
	HealthPort string `yaml:"health_port"`
	// Prometheus exposition port
	MetricsPort string `yaml:"metrics_port"`

	CORSOrigins []string `yaml:"cors_origins"`
	// TrustedProxies are the CIDRs or addresses whose X-Forwarded-For and
	// X-Real-IP headers identify the client
	TrustedProxies []string `yaml:"trusted_proxies"`
	// StaticDir serves the web pages when set
	StaticDir string `yaml:"static_dir"`
}

// AuthConfig holds token and password settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenValidity time.Duration `yaml:"token_validity"`
	Issuer        string        `yaml:"issuer"`
	BcryptCost    int           `yaml:"bcrypt_cost"`

	// DenyUnlistedMutations requires authentication for POST, PUT, PATCH
	// and DELETE requests that match no access rule
	DenyUnlistedMutations bool `yaml:"deny_unlisted_mutations"`
}

// TokenConfig returns the immutable token service configuration
func (a AuthConfig) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:   []byte(a.JWTSecret),
		Validity: a.TokenValidity,
		Issuer:   a.Issuer,
	}
}

// RateLimitConfig holds login and registration throttling settings
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// ObservabilityConfig holds logging, metrics and tracing configuration
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel returns the tracing configuration
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
			MetricsPort:     "9091",
			CORSOrigins:     []string{"*"},
		},
		Auth: AuthConfig{
			TokenValidity: auth.DefaultTokenValidity,
			Issuer:        auth.DefaultIssuer,
			BcryptCost:    10,
		},
		Storage: storage.DefaultConfig(),
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 20,
			Window:   time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "festival",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by FESTIVAL_CONFIG_FILE and then environment variables, in that order
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadServerConfig()
	cfg.loadAuthConfig()
	cfg.loadStorageConfig()
	cfg.loadRateLimitConfig()
	cfg.loadObservabilityConfig()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadServerConfig() {
	s := &c.Server
	s.Host = getEnv("FESTIVAL_HOST", s.Host)
	s.Port = getEnv("FESTIVAL_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("FESTIVAL_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("FESTIVAL_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("FESTIVAL_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("FESTIVAL_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("FESTIVAL_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.HealthPort = getEnv("FESTIVAL_HEALTH_PORT", s.HealthPort)
	s.MetricsPort = getEnv("FESTIVAL_METRICS_PORT", s.MetricsPort)
	s.CORSOrigins = getEnvList("FESTIVAL_CORS_ORIGINS", s.CORSOrigins)
	s.TrustedProxies = getEnvList("FESTIVAL_TRUSTED_PROXIES", s.TrustedProxies)
	s.StaticDir = getEnv("FESTIVAL_STATIC_DIR", s.StaticDir)
}

func (c *Config) loadAuthConfig() {
	a := &c.Auth
	a.JWTSecret = getEnv("FESTIVAL_JWT_SECRET", a.JWTSecret)
	a.TokenValidity = getEnvDuration("FESTIVAL_TOKEN_VALIDITY", a.TokenValidity)
	a.Issuer = getEnv("FESTIVAL_TOKEN_ISSUER", a.Issuer)
	a.BcryptCost = getEnvInt("FESTIVAL_BCRYPT_COST", a.BcryptCost)
	a.DenyUnlistedMutations = getEnvBool("FESTIVAL_AUTH_DENY_UNLISTED_MUTATIONS", a.DenyUnlistedMutations)
}

func (c *Config) loadStorageConfig() {
	s := &c.Storage
	s.Driver = getEnv("FESTIVAL_DB_DRIVER", s.Driver)
	s.URL = getEnv("FESTIVAL_DB_URL", s.URL)
	s.MaxOpenConns = getEnvInt("FESTIVAL_DB_MAX_OPEN_CONNS", s.MaxOpenConns)
	s.MaxIdleConns = getEnvInt("FESTIVAL_DB_MAX_IDLE_CONNS", s.MaxIdleConns)
	s.ConnMaxLifetime = getEnvDuration("FESTIVAL_DB_CONN_MAX_LIFETIME", s.ConnMaxLifetime)
	s.ConnectTimeout = getEnvDuration("FESTIVAL_DB_CONNECT_TIMEOUT", s.ConnectTimeout)
	s.AutoMigrate = getEnvBool("FESTIVAL_DB_AUTO_MIGRATE", s.AutoMigrate)

	s.RedisURL = getEnv("FESTIVAL_REDIS_URL", s.RedisURL)
	s.RedisPassword = getEnv("FESTIVAL_REDIS_PASSWORD", s.RedisPassword)
	s.RedisDB = getEnvInt("FESTIVAL_REDIS_DB", s.RedisDB)
	s.RedisMaxRetries = getEnvInt("FESTIVAL_REDIS_MAX_RETRIES", s.RedisMaxRetries)
	s.RedisPoolSize = getEnvInt("FESTIVAL_REDIS_POOL_SIZE", s.RedisPoolSize)

	s.CacheEnabled = getEnvBool("FESTIVAL_CACHE_ENABLED", s.CacheEnabled)
	s.CacheSize = getEnvInt("FESTIVAL_CACHE_SIZE", s.CacheSize)
	s.CacheTTL = getEnvDuration("FESTIVAL_CACHE_TTL", s.CacheTTL)
}

func (c *Config) loadRateLimitConfig() {
	r := &c.RateLimit
	r.Enabled = getEnvBool("FESTIVAL_RATE_LIMIT_ENABLED", r.Enabled)
	r.Requests = getEnvInt("FESTIVAL_RATE_LIMIT_REQUESTS", r.Requests)
	r.Window = getEnvDuration("FESTIVAL_RATE_LIMIT_WINDOW", r.Window)
}

func (c *Config) loadObservabilityConfig() {
	o := &c.Observability
	o.LogLevel = getEnv("FESTIVAL_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("FESTIVAL_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("FESTIVAL_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("FESTIVAL_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("FESTIVAL_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("FESTIVAL_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("FESTIVAL_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("FESTIVAL_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}
	if c.Observability.MetricsEnabled && (c.Server.MetricsPort == c.Server.Port || c.Server.MetricsPort == c.Server.HealthPort) {
		return errors.New("metrics port must differ from the server and health ports")
	}

	if _, err := httputil.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return err
	}

	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.TokenValidity <= 0 {
		return errors.New("token validity must be positive")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("rate limit requests and window must be positive when enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
