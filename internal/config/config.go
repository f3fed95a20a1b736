// Package config provides centralized configuration management for the
// file type service. Settings come from environment variables (optionally
// seeded from a .env file by main) and are validated on startup so that a
// misconfigured deployment fails before serving requests.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Session  SessionConfig
	Upload   UploadConfig
	Storage  StorageConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
// URL is only required when Store.Backend is "postgres".
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL" envAlt:"DB_URL" secret:"true"`
	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StoreConfig selects where file types and committed files live.
type StoreConfig struct {
	// Backend is "postgres" or "memory" (default: postgres)
	Backend string `env:"STORE_BACKEND" default:"postgres"`
}

// SessionConfig controls upload wizard session persistence.
type SessionConfig struct {
	// Backend is "memory" or "redis" (default: memory)
	Backend string `env:"SESSION_BACKEND" default:"memory"`

	// RedisURL is a redis:// URL, required when Backend is "redis"
	RedisURL string `env:"REDIS_URL" secret:"true"`

	// KeyPrefix namespaces session keys in Redis (default: fileentity)
	KeyPrefix string `env:"SESSION_KEY_PREFIX" default:"fileentity"`

	// TTL is how long an idle wizard session survives (default: 1h)
	TTL time.Duration `env:"SESSION_TTL" default:"1h"`

	// SweepInterval is how often abandoned sessions are cleaned up (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`
}

// UploadConfig holds wizard upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted upload in bytes (default: 32MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"33554432"`

	// MaxConcurrent bounds parallel upload submissions (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// StorageConfig describes the storage scheme backends.
type StorageConfig struct {
	// Schemes lists the enabled schemes in presentation order (default: public,private)
	Schemes []string `env:"STORAGE_SCHEMES" default:"public,private"`

	TempDir    string `env:"STORAGE_TEMP_DIR" default:"files/tmp"`
	PublicDir  string `env:"STORAGE_PUBLIC_DIR" default:"files/public"`
	PrivateDir string `env:"STORAGE_PRIVATE_DIR" default:"files/private"`

	// PrivateBackend is "local" or "gcs" (default: local)
	PrivateBackend string `env:"STORAGE_PRIVATE_BACKEND" default:"local"`

	// GCSBucket is required when PrivateBackend is "gcs"
	GCSBucket string `env:"STORAGE_GCS_BUCKET"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// SecurityConfig holds authentication and header settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// AdminAPIKeys grant every permission to the bearer of the X-API-Key header
	AdminAPIKeys []string `env:"ADMIN_API_KEYS" secret:"true"`

	// JWTSecret verifies HS256 bearer tokens carrying a "permissions" claim
	JWTSecret string `env:"JWT_SECRET" secret:"true"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
