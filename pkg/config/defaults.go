package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Gateway defaults
	DefaultIdentitySource = IdentitySourceHeader
	DefaultIdentityHeader = "X-User-ID"
	DefaultGatewayTimeout = 30 * time.Second

	// State defaults
	DefaultMaxIdentities = 100000
	DefaultShards        = 32
	DefaultSweepSchedule = "@every 1m"

	// Journal defaults
	DefaultJournalEnabled        = false
	DefaultJournalMode           = JournalModeRejected
	DefaultJournalBackend        = "sqlite"
	DefaultJournalSQLiteDriver   = "sqlite"
	DefaultJournalSQLitePath     = "data/journal.db"
	DefaultJournalMaxOpenConns   = 4
	DefaultJournalWALMode        = true
	DefaultJournalBusyTimeout    = 5 * time.Second
	DefaultJournalAsyncBuffer    = 1000
	DefaultJournalWriteTimeout   = 5 * time.Second
	DefaultJournalHashIdentities = true
	DefaultJournalMaxAge         = 30 * 24 * time.Hour
	DefaultJournalPruneSchedule  = "0 3 * * *"
	DefaultJournalQueryLimit     = 100
	DefaultJournalQueryMaxLimit  = 10000

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultRedactIdentities   = true
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "always"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "turnstile"
	DefaultOTLPInsecure       = true
	DefaultOTLPTimeout        = 10 * time.Second
	DefaultHealthEnabled      = true
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultVersionPath        = "/version"
	DefaultHealthCheckTimeout = 5 * time.Second
)

// Identity sources for gateway traffic.
const (
	IdentitySourceHeader     = "header"
	IdentitySourceAPIKey     = "api_key"
	IdentitySourceRemoteAddr = "remote_addr"
)

// Journal modes.
const (
	JournalModeRejected = "rejected"
	JournalModeAll      = "all"
)

// DefaultConfig returns a configuration with every default applied and no
// limiters. LoadConfig decodes YAML on top of it, so fields absent from the
// file keep their defaults, including booleans that default to true.
func DefaultConfig() *Config {
	cfg := &Config{
		Journal: JournalConfig{
			Enabled: DefaultJournalEnabled,
			SQLite: SQLiteConfig{
				WALMode: DefaultJournalWALMode,
			},
			Recorder: RecorderConfig{
				HashIdentities: DefaultJournalHashIdentities,
			},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactIdentities: DefaultRedactIdentities},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{
				Enabled: DefaultTracingEnabled,
				OTLP:    OTLPConfig{Insecure: DefaultOTLPInsecure},
			},
			Health: HealthConfig{Enabled: DefaultHealthEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
// Boolean fields are left untouched; use DefaultConfig for those.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Gateway defaults
	if cfg.Gateway.IdentitySource == "" {
		cfg.Gateway.IdentitySource = DefaultIdentitySource
	}
	if cfg.Gateway.IdentityHeader == "" {
		cfg.Gateway.IdentityHeader = DefaultIdentityHeader
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = DefaultGatewayTimeout
	}

	// State defaults
	if cfg.State.MaxIdentities == 0 {
		cfg.State.MaxIdentities = DefaultMaxIdentities
	}
	if cfg.State.Shards == 0 {
		cfg.State.Shards = DefaultShards
	}
	if cfg.State.SweepSchedule == "" {
		cfg.State.SweepSchedule = DefaultSweepSchedule
	}

	applyJournalDefaults(&cfg.Journal)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyJournalDefaults(j *JournalConfig) {
	if j.Mode == "" {
		j.Mode = DefaultJournalMode
	}
	if j.Backend == "" {
		j.Backend = DefaultJournalBackend
	}
	if j.SQLite.Driver == "" {
		j.SQLite.Driver = DefaultJournalSQLiteDriver
	}
	if j.SQLite.Path == "" {
		j.SQLite.Path = DefaultJournalSQLitePath
	}
	if j.SQLite.MaxOpenConns == 0 {
		j.SQLite.MaxOpenConns = DefaultJournalMaxOpenConns
	}
	if j.SQLite.BusyTimeout == 0 {
		j.SQLite.BusyTimeout = DefaultJournalBusyTimeout
	}
	if j.Recorder.AsyncBuffer == 0 {
		j.Recorder.AsyncBuffer = DefaultJournalAsyncBuffer
	}
	if j.Recorder.WriteTimeout == 0 {
		j.Recorder.WriteTimeout = DefaultJournalWriteTimeout
	}
	if j.Retention.MaxAge == 0 {
		j.Retention.MaxAge = DefaultJournalMaxAge
	}
	if j.Retention.PruneSchedule == "" {
		j.Retention.PruneSchedule = DefaultJournalPruneSchedule
	}
	if j.Query.DefaultLimit == 0 {
		j.Query.DefaultLimit = DefaultJournalQueryLimit
	}
	if j.Query.MaxLimit == 0 {
		j.Query.MaxLimit = DefaultJournalQueryMaxLimit
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	// Logging defaults
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}

	// Tracing defaults
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	// Health defaults
	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.VersionPath == "" {
		t.Health.VersionPath = DefaultVersionPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
