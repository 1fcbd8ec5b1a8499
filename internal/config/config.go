// Package config loads boardsync settings from the environment.
// Every field is bound to an environment variable through struct tags and
// the whole tree is validated once on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Monday   MondayConfig
	Board    BoardConfig
	Upload   UploadConfig
	Database DatabaseConfig
	Watch    WatchConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so SSE and websocket progress streams are not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including the wait for an active sync.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP / X-Forwarded-For are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// MondayConfig holds the remote board API settings.
type MondayConfig struct {
	// APIURL is the GraphQL endpoint.
	APIURL string `env:"MONDAY_API_URL" default:"https://api.monday.com/v2"`

	// APIToken authenticates every request. Supports MONDAY_TOKEN for compatibility.
	APIToken string `env:"MONDAY_API_TOKEN" envAlt:"MONDAY_TOKEN"`

	// APIVersion is sent as the API-Version header when set.
	APIVersion string `env:"MONDAY_API_VERSION" default:"2024-10"`

	// Timeout applies to each remote call. It is the only timeout a sync run has.
	Timeout time.Duration `env:"MONDAY_TIMEOUT" default:"30s"`

	// KeyColumn is the column holding the natural key (default: text)
	KeyColumn string `env:"MONDAY_KEY_COLUMN" default:"text"`
}

// BoardConfig identifies the target collection. An empty BoardID is valid:
// the fetch step then returns an empty index and every row is created.
type BoardConfig struct {
	BoardID int64 `env:"BOARD_ID" envAlt:"MONDAY_BOARD_ID"`
}

// UploadConfig holds CSV intake settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// DrainTimeout is how long shutdown waits for an in-flight sync (default: 2m)
	DrainTimeout time.Duration `env:"UPLOAD_DRAIN_TIMEOUT" default:"2m"`
}

// DatabaseConfig holds run-history storage settings. History is disabled
// when URL is empty.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// WatchConfig holds drop-directory settings.
type WatchConfig struct {
	// Dir is the directory watched for new CSV files. Empty disables watching.
	Dir string `env:"WATCH_DIR"`

	// Debounce is how long a file must stay quiet before it is picked up.
	Debounce time.Duration `env:"WATCH_DEBOUNCE" default:"500ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, receives logs through a rotating writer instead of stderr.
	File string `env:"LOG_FILE"`

	MaxSizeMB  int `env:"LOG_MAX_SIZE_MB" default:"50"`
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"3"`
	MaxAgeDays int `env:"LOG_MAX_AGE_DAYS" default:"28"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// HistoryEnabled reports whether run history should be persisted.
func (c *DatabaseConfig) HistoryEnabled() bool {
	return c.URL != ""
}
