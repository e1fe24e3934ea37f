// Package config loads the service configuration from environment variables
// with defaults, and validates it on startup so misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Jobs     JobsConfig
	Pipeline PipelineConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8000)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8000"`

	// ReadTimeout covers reading the whole request, upload included (default: 2m)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"2m"`

	// WriteTimeout covers writing the response, downloads included (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, running jobs included (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the per-request middleware timeout (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`
}

// DatabaseConfig holds the optional Postgres sink settings.
// Leaving URL empty disables the sink.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Table receives enriched events (default: enriched_events)
	Table string `env:"DB_TABLE" default:"enriched_events"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// UploadConfig holds upload admission settings.
type UploadConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// MaxColumns rejects files with wider headers (default: 100)
	MaxColumns int `env:"UPLOAD_MAX_COLUMNS" default:"100"`

	// MaxConcurrent is the number of pipelines run at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long an upload waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	// Timeout bounds one pipeline run (default: 600s)
	Timeout time.Duration `env:"JOB_TIMEOUT" default:"600s"`

	// TTL is how long finished jobs and their files are kept (default: 1h)
	TTL time.Duration `env:"JOB_TTL" default:"1h"`

	// SweepInterval is how often expired jobs are removed (default: 10m)
	SweepInterval time.Duration `env:"JOB_SWEEP_INTERVAL" default:"10m"`

	// WorkDir holds uploads and results; empty means the OS temp dir
	WorkDir string `env:"JOB_WORK_DIR"`
}

// PipelineConfig holds classification settings.
type PipelineConfig struct {
	// StudentRoleID is the role kept by the role filter (default: 5)
	StudentRoleID string `env:"PIPELINE_STUDENT_ROLE_ID" default:"5"`

	// NonStudentEvents are event names always dropped
	NonStudentEvents []string `env:"PIPELINE_NON_STUDENT_EVENTS" default:"Course section deleted,Course backup created,Course updated,Course restored,Course reset,Course rollover"`

	// RulesPath overrides the bundled Bloom rules
	RulesPath string `env:"PIPELINE_RULES_PATH"`

	// RolesFile is an optional CSV mapping user names to role ids
	RolesFile string `env:"PIPELINE_ROLES_FILE"`

	// ExportXES adds XES logs to the results (default: true)
	ExportXES bool `env:"EXPORT_XES" default:"true"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the limit for most endpoints (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// UploadLimit is the per-minute limit for uploads (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enforces X-API-Key on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, receives logs through a rotating writer instead of stdout
	File string `env:"LOG_FILE"`

	MaxSizeMB  int `env:"LOG_MAX_SIZE_MB" default:"100"`
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"3"`
	MaxAgeDays int `env:"LOG_MAX_AGE_DAYS" default:"28"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
