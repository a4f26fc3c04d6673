package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/turnstile/pkg/limits/ratelimit"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasField reports whether any error concerns field.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// limiterNamePattern restricts limiter names to what fits in a URL path segment and a metric label.
var limiterNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLimiters(cfg.Limiters)...)
	errs = append(errs, validateGateway(&cfg.Gateway, cfg.Limiters)...)
	errs = append(errs, validateState(&cfg.State)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must be positive"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "max header bytes must be non-negative"})
	}

	return errs
}

// validateLimiters validates every limiter definition. Parameter rules come
// from ratelimit.Config.Validate so they match what construction enforces.
func validateLimiters(limiters map[string]LimiterConfig) []FieldError {
	if len(limiters) == 0 {
		return []FieldError{{Field: "limiters", Message: "at least one limiter is required"}}
	}

	names := make([]string, 0, len(limiters))
	for name := range limiters {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []FieldError
	for _, name := range names {
		prefix := "limiters." + name

		if !limiterNamePattern.MatchString(name) {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: "limiter name must start with a letter or digit and contain only letters, digits, '.', '_' or '-'",
			})
		}

		err := limiters[name].RateLimit().Validate()
		if err == nil {
			continue
		}

		var cfgErr *ratelimit.ConfigError
		if errors.As(err, &cfgErr) {
			errs = append(errs, FieldError{
				Field:   prefix + "." + cfgErr.Field,
				Message: fmt.Sprintf("%s %s, got %v", cfgErr.Field, cfgErr.Reason, cfgErr.Value),
			})
			continue
		}
		errs = append(errs, FieldError{Field: prefix, Message: err.Error()})
	}

	return errs
}

// validateGateway validates gateway configuration.
func validateGateway(cfg *GatewayConfig, limiters map[string]LimiterConfig) []FieldError {
	var errs []FieldError

	switch cfg.IdentitySource {
	case IdentitySourceHeader, IdentitySourceAPIKey, IdentitySourceRemoteAddr:
	default:
		errs = append(errs, FieldError{
			Field:   "gateway.identity_source",
			Message: fmt.Sprintf("invalid identity source %q (must be: header, api_key, remote_addr)", cfg.IdentitySource),
		})
	}

	if cfg.IdentityHeader == "" {
		errs = append(errs, FieldError{
			Field:   "gateway.identity_header",
			Message: "identity header is required",
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.timeout",
			Message: "timeout must be non-negative",
		})
	}

	if cfg.DefaultLimiter != "" {
		if _, ok := limiters[cfg.DefaultLimiter]; !ok {
			errs = append(errs, FieldError{
				Field:   "gateway.default_limiter",
				Message: fmt.Sprintf("limiter %q is not defined", cfg.DefaultLimiter),
			})
		}
	}

	if cfg.Upstream == "" {
		return errs
	}

	u, err := url.Parse(cfg.Upstream)
	if err != nil {
		errs = append(errs, FieldError{
			Field:   "gateway.upstream",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "gateway.upstream",
			Message: "upstream must be an absolute http or https URL",
		})
	}

	if cfg.DefaultLimiter == "" {
		errs = append(errs, FieldError{
			Field:   "gateway.default_limiter",
			Message: "default limiter is required when upstream is set",
		})
	}

	return errs
}

// validateState validates identity state configuration.
func validateState(cfg *StateConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxIdentities < 0 {
		errs = append(errs, FieldError{Field: "state.max_identities", Message: "max identities must be non-negative"})
	}
	if cfg.Shards < 0 {
		errs = append(errs, FieldError{Field: "state.shards", Message: "shards must be non-negative"})
	}
	if cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "state.sweep_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

// validateJournal validates journal configuration. Nothing is checked when
// the journal is disabled.
func validateJournal(cfg *JournalConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	switch cfg.Mode {
	case JournalModeRejected, JournalModeAll:
	default:
		errs = append(errs, FieldError{
			Field:   "journal.mode",
			Message: fmt.Sprintf("invalid mode %q (must be: rejected, all)", cfg.Mode),
		})
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		switch cfg.SQLite.Driver {
		case "sqlite", "sqlite3":
		default:
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be: sqlite, sqlite3)", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "journal.sqlite.path", Message: "path is required"})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "journal.sqlite.max_open_conns", Message: "max open connections must be non-negative"})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "journal.sqlite.busy_timeout", Message: "busy timeout must be positive"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "journal.backend",
			Message: fmt.Sprintf("invalid backend %q (must be: memory, sqlite)", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer <= 0 {
		errs = append(errs, FieldError{Field: "journal.recorder.async_buffer", Message: "async buffer must be positive"})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "journal.recorder.write_timeout", Message: "write timeout must be positive"})
	}

	if cfg.Retention.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "journal.retention.max_age", Message: "max age must be non-negative"})
	}
	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "journal.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	if cfg.Query.DefaultLimit <= 0 {
		errs = append(errs, FieldError{Field: "journal.query.default_limit", Message: "default limit must be positive"})
	}
	if cfg.Query.MaxLimit < cfg.Query.DefaultLimit {
		errs = append(errs, FieldError{Field: "journal.query.max_limit", Message: "max limit must be at least the default limit"})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be: debug, info, warn, error)", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be: json, text, console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be: always, never, ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
	}

	if cfg.Health.Enabled {
		paths := map[string]string{
			"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
			"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
			"telemetry.health.version_path":   cfg.Health.VersionPath,
		}
		fields := make([]string, 0, len(paths))
		for field := range paths {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			if !strings.HasPrefix(paths[field], "/") {
				errs = append(errs, FieldError{Field: field, Message: "path must start with /"})
			}
		}
		if cfg.Health.CheckTimeout <= 0 {
			errs = append(errs, FieldError{Field: "telemetry.health.check_timeout", Message: "check timeout must be positive"})
		}
	}

	return errs
}
