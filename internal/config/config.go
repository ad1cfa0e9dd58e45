// Package config provides centralized configuration management for the gradebook
// server and CLI. Settings come from environment variables, optionally layered
// over a TOML file, with defaults for everything except the database URL.
// The result is validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Supported storage engines.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `toml:"server"`
	Database DatabaseConfig  `toml:"database"`
	Upload   UploadConfig    `toml:"upload"`
	Rate     RateLimitConfig `toml:"rate"`
	Security SecurityConfig  `toml:"security"`
	Logging  LoggingConfig   `toml:"logging"`
	Cache    CacheConfig     `toml:"cache"`
	Watch    WatchConfig     `toml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `toml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `toml:"port" env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `toml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 2m)
	WriteTimeout time.Duration `toml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `toml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `toml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig selects and configures the record store.
type DatabaseConfig struct {
	// Driver is the storage engine: postgres, sqlite or mongo (default: postgres)
	Driver string `toml:"driver" env:"DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL or MongoDB connection string.
	// Required unless Driver is sqlite. DATABASE_URL and DB_URL are both accepted.
	URL string `toml:"url" env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver; ":memory:" is allowed
	SQLitePath string `toml:"sqlite_path" env:"SQLITE_PATH" default:"gradebook.db"`

	MongoDatabase   string `toml:"mongo_database" env:"MONGO_DATABASE" default:"gradebook"`
	MongoCollection string `toml:"mongo_collection" env:"MONGO_COLLECTION" default:"students"`

	// MongoTransactions wraps bulk inserts in a session transaction.
	// Needs a replica set or sharded cluster.
	MongoTransactions bool `toml:"mongo_transactions" env:"MONGO_TRANSACTIONS" default:"false"`

	// ConnectTimeout bounds the initial connection and ping (default: 10s)
	ConnectTimeout time.Duration `toml:"connect_timeout" env:"DB_CONNECT_TIMEOUT" default:"10s"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `toml:"max_conns" env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `toml:"min_conns" env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `toml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `toml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds grade file import settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 32MB)
	MaxFileSize int64 `toml:"max_file_size" env:"UPLOAD_MAX_FILE_SIZE" default:"33554432"`

	// MaxConcurrent is the maximum number of parallel imports (default: 5)
	MaxConcurrent int `toml:"max_concurrent" env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `toml:"max_wait_time" env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single import (default: 5m)
	Timeout time.Duration `toml:"timeout" env:"UPLOAD_TIMEOUT" default:"5m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `toml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `toml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for the upload endpoint (default: 10)
	UploadLimit int `toml:"upload_limit" env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `toml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	// CORSAllowedOrigins lists origins allowed to call the API; empty disables CORS
	CORSAllowedOrigins []string `toml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `toml:"enable_csp" env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `toml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text, json or pretty (default: text)
	Format string `toml:"format" env:"LOG_FORMAT" default:"text"`
}

// CacheConfig controls the in-process record list cache.
type CacheConfig struct {
	// ListTTL is how long a listing may be served from memory; 0 disables (default: 30s)
	ListTTL time.Duration `toml:"list_ttl" env:"CACHE_LIST_TTL" default:"30s"`
}

// WatchConfig configures the drop-folder importer.
type WatchConfig struct {
	// Dir is the folder to watch for grade files; empty disables the watcher
	Dir string `toml:"dir" env:"WATCH_DIR"`

	// Debounce is how long a file must be quiet before it is imported (default: 2s)
	Debounce time.Duration `toml:"debounce" env:"WATCH_DEBOUNCE" default:"2s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
