// Package logging builds the structured loggers used across turnstile.
//
// Loggers are plain *slog.Logger values. New configures the level, the
// output format and a Redactor that masks credentials and, by default,
// replaces identities with a short SHA-256 fingerprint:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	logger.Info("request rejected", "identity", "user-42") // identity=5f0c...
//
// Records logged with a context pick up the request ID, the limiter name
// and the active trace and span IDs:
//
//	ctx = logging.WithRequestID(ctx, id)
//	logger.InfoContext(ctx, "admitted")
package logging
