// Turnstile is an in-process admission controller served over HTTP.
//
// It admits or rejects requests per identity with a sliding window log or
// a token bucket, or globally with a leaky bucket, and can sit in front of
// an upstream service as a rate-limiting gateway.
//
// Usage:
//
//	# Start the server
//	turnstile serve --config turnstile.yaml
//
//	# Reload limiters when the file changes
//	turnstile serve --config turnstile.yaml --watch
//
//	# Check a configuration file
//	turnstile validate --config turnstile.yaml
//
//	# Replay a traffic pattern against one limiter
//	turnstile simulate api --requests 20 --interval 100ms --identities 2
//
//	# Inspect the decision journal
//	turnstile journal query --limiter api --rejected
package main

import "os"

func main() {
	os.Exit(Execute())
}
