// Package config provides application configuration management from
// environment variables and an optional YAML file.
//
// # Overview
//
// LoadConfig starts from Default(), overlays the YAML file named by
// FESTIVAL_CONFIG_FILE when set, then applies environment variables and
// validates the result.
//
// # Configuration Structure
//
// Server settings:
//
//	FESTIVAL_HOST="0.0.0.0"
//	FESTIVAL_PORT="8080"
//	FESTIVAL_HEALTH_PORT="9090"
//	FESTIVAL_METRICS_PORT="9091"
//	FESTIVAL_CORS_ORIGINS="https://festival.example.com,http://localhost:3000"
//	FESTIVAL_STATIC_DIR="./web"
//	FESTIVAL_TRUSTED_PROXIES="10.0.0.0/8,192.0.2.10"  # forwarding headers honoured only from these peers
//
// Auth settings:
//
//	FESTIVAL_JWT_SECRET="at-least-32-bytes-of-secret-material"
//	FESTIVAL_TOKEN_VALIDITY="24h"
//	FESTIVAL_AUTH_DENY_UNLISTED_MUTATIONS="false"
//
// Storage settings:
//
//	FESTIVAL_DB_DRIVER="postgres"  # postgres, sqlite3
//	FESTIVAL_DB_URL="postgres://festival@localhost/festival?sslmode=disable"
//	FESTIVAL_REDIS_URL="redis://localhost:6379"
//	FESTIVAL_CACHE_SIZE="1024"
//
// Rate limiting:
//
//	FESTIVAL_RATE_LIMIT_REQUESTS="20"
//	FESTIVAL_RATE_LIMIT_WINDOW="1m"
//
// Observability settings:
//
//	FESTIVAL_LOG_LEVEL="info"  # debug, info, warn, error
//	FESTIVAL_OTEL_ENABLED="true"
//	FESTIVAL_OTEL_ENDPOINT="otel-collector:4317"
//
// The same keys in YAML:
//
//	server:
//	  port: "8080"
//	auth:
//	  token_validity: 12h
//	storage:
//	  driver: postgres
//	  url: postgres://festival@db/festival
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
