// Package handlers implements the turnstile admission API.
//
// Endpoints
//
//   - POST|GET /v1/limiters/{name}/admit: check one identity against a
//     limiter. 200 when admitted, 429 when rejected, 404 for an unknown
//     limiter, 400 when no identity is given.
//   - GET /v1/limiters: list the configured limiters with their strategy
//     and the number of identities they track.
//
// The handlers depend on the Limiters interface so the server can hand
// them a view that follows configuration reloads.
package handlers
