// Package limits turns configured admission limiters into named, observable
// checks.
//
// # Overview
//
// A Manager holds a fixed set of named limiters, each built from a
// ratelimit.Config. Check runs the named limiter for an identity and
// returns a Decision. Around every decision the manager:
//
//   - records Prometheus metrics (decisions, latency, tracked identities, evictions)
//   - opens a "limits.check" tracing span
//   - logs rejections at debug level
//   - forwards the decision to an optional DecisionRecorder (the journal)
//
// The set of limiters never changes after construction. Configuration
// reloads build a new Manager.
//
// # Example
//
//	manager, err := limits.NewManager(limits.Config{
//	    Limiters: map[string]ratelimit.Config{
//	        "api": {Strategy: ratelimit.StrategyTokenBucket, RefillInterval: time.Second, TokensPerInterval: 10, Limit: 50},
//	    },
//	    Metrics: limits.NewMetrics(registry),
//	})
//	if err != nil {
//	    return err
//	}
//	defer manager.Close()
//
//	decision, err := manager.Check(ctx, "api", "user-123")
//	if err != nil {
//	    // errors.Is(err, limits.ErrUnknownLimiter)
//	}
//	if !decision.Allowed {
//	    // respond 429
//	}
//
// # Idle Sweep
//
// StartSweeper schedules Sweep with a cron expression (default "@every 1m").
// Sweep drops identities whose limiter state has fully reset, which bounds
// memory without changing any decision.
package limits
