// Package config provides configuration management for Turnstile.
//
// Configuration is loaded from YAML, defaulted, optionally overridden from
// the environment and validated as a whole. Every validation failure is
// collected into a single ValidationError.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("turnstile.yaml")
//
//	// with TURNSTILE_* environment overrides
//	cfg, err := config.LoadConfigWithEnvOverrides("turnstile.yaml")
//
// # Example
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//
//	limiters:
//	  api:
//	    strategy: token_bucket
//	    refill_interval: 1s
//	    tokens_per_interval: 10
//	    limit: 50
//	  login:
//	    strategy: sliding_window_log
//	    window: 1m
//	    requests_allowed: 5
//	  egress:
//	    strategy: leaky_bucket
//	    capacity: 100
//	    leak_rate: 20
//
//	gateway:
//	  upstream: "http://127.0.0.1:9000"
//	  default_limiter: api
//	  identity_source: header
//	  identity_header: X-User-ID
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TURNSTILE_SECTION_FIELD:
//
//   - TURNSTILE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - TURNSTILE_GATEWAY_UPSTREAM overrides gateway.upstream
//   - TURNSTILE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// LoadEnvFile reads a dotenv file into the environment first, for local runs.
//
// # Configuration Precedence
//
//  1. Default values (DefaultConfig)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("turnstile.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and hands every
// valid new configuration to a callback. Invalid edits are logged and the
// running configuration stays in place.
package config
