package config

import (
	"time"

	"mercator-hq/turnstile/pkg/limits/ratelimit"
)

// Config is the root configuration structure for Turnstile.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Gateway configures the optional reverse proxy that puts a limiter in
	// front of an upstream service.
	Gateway GatewayConfig `yaml:"gateway"`

	// Limiters maps limiter names to their algorithm and parameters.
	Limiters map[string]LimiterConfig `yaml:"limiters"`

	// State bounds the memory used for per-identity limiter state.
	State StateConfig `yaml:"state"`

	// Journal configures the decision journal.
	Journal JournalConfig `yaml:"journal"`

	// Telemetry contains observability configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address the server binds to.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is how long to wait for in-flight requests on shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will read
	// parsing the request header.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// GatewayConfig configures gateway mode.
type GatewayConfig struct {
	// Upstream is the base URL requests are forwarded to after admission.
	// Gateway mode is off when empty.
	Upstream string `yaml:"upstream"`

	// DefaultLimiter is the limiter applied to gateway traffic.
	// Required when Upstream is set.
	DefaultLimiter string `yaml:"default_limiter"`

	// IdentitySource selects how a request's identity is derived:
	// "header", "api_key" or "remote_addr".
	// Default: "header"
	IdentitySource string `yaml:"identity_source"`

	// IdentityHeader is the header read when IdentitySource is "header".
	// The admission API also falls back to it when no identity query
	// parameter is given.
	// Default: "X-User-ID"
	IdentityHeader string `yaml:"identity_header"`

	// Timeout bounds each upstream request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// LimiterConfig configures one named limiter. Only the fields of the
// selected strategy are read.
type LimiterConfig struct {
	// Strategy is "sliding_window_log", "token_bucket" or "leaky_bucket".
	Strategy string `yaml:"strategy"`

	// Window is the sliding window length.
	Window time.Duration `yaml:"window,omitempty"`

	// RequestsAllowed is the number of admissions per window.
	RequestsAllowed int `yaml:"requests_allowed,omitempty"`

	// RefillInterval is the token bucket refill period.
	RefillInterval time.Duration `yaml:"refill_interval,omitempty"`

	// TokensPerInterval is the number of tokens added per refill interval.
	TokensPerInterval float64 `yaml:"tokens_per_interval,omitempty"`

	// Limit is the token bucket capacity.
	Limit int `yaml:"limit,omitempty"`

	// Capacity is the leaky bucket queue length.
	Capacity int `yaml:"capacity,omitempty"`

	// LeakRate is the number of queued requests drained per second.
	LeakRate float64 `yaml:"leak_rate,omitempty"`
}

// RateLimit converts the limiter configuration to its algorithm form.
func (l LimiterConfig) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		Strategy:          ratelimit.Strategy(l.Strategy),
		Window:            l.Window,
		RequestsAllowed:   l.RequestsAllowed,
		RefillInterval:    l.RefillInterval,
		TokensPerInterval: l.TokensPerInterval,
		Limit:             l.Limit,
		Capacity:          l.Capacity,
		LeakRate:          l.LeakRate,
	}
}

// RateLimits converts every limiter configuration.
func (c *Config) RateLimits() map[string]ratelimit.Config {
	out := make(map[string]ratelimit.Config, len(c.Limiters))
	for name, l := range c.Limiters {
		out[name] = l.RateLimit()
	}
	return out
}

// StateConfig bounds per-identity limiter state.
type StateConfig struct {
	// MaxIdentities is the maximum number of identities tracked per limiter.
	// The least recently seen identity is dropped when it is reached.
	// Default: 100000
	MaxIdentities int `yaml:"max_identities"`

	// Shards is the number of lock partitions per limiter.
	// Default: 32
	Shards int `yaml:"shards"`

	// SweepSchedule is the cron expression for the idle sweep.
	// Default: "@every 1m"
	SweepSchedule string `yaml:"sweep_schedule"`
}

// JournalConfig configures the decision journal.
type JournalConfig struct {
	// Enabled controls whether decisions are journaled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Mode selects which decisions are journaled: "rejected" or "all".
	// Default: "rejected"
	Mode string `yaml:"mode"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder configures the asynchronous writer.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention configures automatic pruning.
	Retention RetentionConfig `yaml:"retention"`

	// Query bounds journal queries.
	Query QueryConfig `yaml:"query"`
}

// SQLiteConfig contains SQLite storage configuration.
type SQLiteConfig struct {
	// Driver is the database/sql driver: "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the file path to the SQLite database.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait for database locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig configures the journal recorder.
type RecorderConfig struct {
	// AsyncBuffer is the number of decisions buffered before new ones are dropped.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds each storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// HashIdentities stores identity fingerprints instead of raw identities.
	// Default: true
	HashIdentities bool `yaml:"hash_identities"`
}

// RetentionConfig configures journal pruning.
type RetentionConfig struct {
	// MaxAge is how long records are kept. Zero keeps records forever.
	// Default: 720h (30 days)
	MaxAge time.Duration `yaml:"max_age"`

	// PruneSchedule is the cron expression for pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// QueryConfig bounds journal queries.
type QueryConfig struct {
	// DefaultLimit is the number of records returned when no limit is given.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit is the largest accepted limit.
	// Default: 10000
	MaxLimit int `yaml:"max_limit"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format (json, text, console).
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource adds source file and line to every record.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactIdentities replaces identities in log records with fingerprints.
	// Default: true
	RedactIdentities bool `yaml:"redact_identities"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is the sampling strategy (always, never, ratio).
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled with the ratio sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service.name resource attribute.
	// Default: "turnstile"
	ServiceName string `yaml:"service_name"`

	// OTLP contains exporter options.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
