package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/turnstile/pkg/proxy"
	"mercator-hq/turnstile/pkg/proxy/types"
)

// RecoveryMiddleware recovers from panics in handlers and returns a 500
// JSON error. The panic and its stack are logged; neither is sent to the
// client. http.ErrAbortHandler is re-panicked so the server can abort
// the connection.
//
// Example usage:
//
//	handler = RecoveryMiddleware(logger)(handler)
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				_ = proxy.WriteErrorResponse(w, types.NewServerError(
					"An internal error occurred. Please try again later.",
				))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
