package storage

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint
	ErrConflict = errors.New("record already exists")
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config for the storage backend
type Config struct {
	Driver string `yaml:"driver"` // "postgres" or "sqlite3"
	URL    string `yaml:"url"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`

	// AutoMigrate applies pending schema migrations on Open
	AutoMigrate bool `yaml:"auto_migrate"`

	// Redis config (optional second cache tier and shared rate limits)
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Festival cache config
	CacheEnabled bool          `yaml:"cache_enabled"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns a local SQLite configuration suitable for development
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		URL:             "file:festival.db?_foreign_keys=on",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		AutoMigrate:     true,
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		CacheEnabled:    true,
		CacheSize:       1024,
		CacheTTL:        5 * time.Minute,
	}
}

// Validate checks the configuration for obvious mistakes
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Driver)
	}
	if c.URL == "" {
		return errors.New("storage URL is required")
	}
	if c.CacheEnabled && c.CacheSize <= 0 {
		return errors.New("cache size must be positive when the cache is enabled")
	}
	return nil
}
