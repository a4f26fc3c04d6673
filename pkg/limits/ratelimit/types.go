package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Strategy names an admission algorithm.
type Strategy string

const (
	// StrategySlidingWindowLog admits while fewer than RequestsAllowed
	// requests were admitted within the last Window.
	StrategySlidingWindowLog Strategy = "sliding_window_log"

	// StrategyTokenBucket spends one token per request from a bucket that
	// refills TokensPerInterval every RefillInterval, up to Limit.
	StrategyTokenBucket Strategy = "token_bucket"

	// StrategyLeakyBucket queues up to Capacity requests globally and
	// drains LeakRate of them per second.
	StrategyLeakyBucket Strategy = "leaky_bucket"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{
	StrategySlidingWindowLog,
	StrategyTokenBucket,
	StrategyLeakyBucket,
}

// ErrInvalidConfiguration is returned when a limiter is constructed with a
// non-positive or otherwise unusable parameter.
var ErrInvalidConfiguration = errors.New("invalid limiter configuration")

// ConfigError names the parameter that failed validation.
// It unwraps to ErrInvalidConfiguration.
type ConfigError struct {
	Strategy Strategy
	Field    string
	Value    any
	Reason   string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("%s: %s %s, got %v", ErrInvalidConfiguration, e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("%s: %s %s %s, got %v", ErrInvalidConfiguration, e.Strategy, e.Field, e.Reason, e.Value)
}

// Unwrap returns ErrInvalidConfiguration.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// Config selects a strategy and carries its parameters. Only the fields of
// the selected strategy are read.
type Config struct {
	// Strategy selects the algorithm.
	Strategy Strategy

	// Window is the sliding window length.
	Window time.Duration

	// RequestsAllowed is the maximum number of admissions within Window.
	RequestsAllowed int

	// RefillInterval is the token bucket refill period.
	RefillInterval time.Duration

	// TokensPerInterval is how many tokens are added every RefillInterval.
	// Fractional values are allowed.
	TokensPerInterval float64

	// Limit is the token bucket capacity.
	Limit int

	// Capacity is the maximum leaky bucket queue length.
	Capacity int

	// LeakRate is how many queued requests drain per second.
	LeakRate float64
}

// Validate checks the parameters of the selected strategy.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategySlidingWindowLog:
		if err := positiveDuration(c.Strategy, "window", c.Window); err != nil {
			return err
		}
		return positiveInt(c.Strategy, "requests_allowed", c.RequestsAllowed)

	case StrategyTokenBucket:
		if err := positiveDuration(c.Strategy, "refill_interval", c.RefillInterval); err != nil {
			return err
		}
		if err := positiveFloat(c.Strategy, "tokens_per_interval", c.TokensPerInterval); err != nil {
			return err
		}
		return positiveInt(c.Strategy, "limit", c.Limit)

	case StrategyLeakyBucket:
		if err := positiveInt(c.Strategy, "capacity", c.Capacity); err != nil {
			return err
		}
		return positiveFloat(c.Strategy, "leak_rate", c.LeakRate)

	default:
		return &ConfigError{
			Field:  "strategy",
			Value:  c.Strategy,
			Reason: fmt.Sprintf("must be one of %v", Strategies),
		}
	}
}

// ResetHorizon returns how long an identity must stay idle before its state
// is equivalent to fresh state. It is zero for the leaky bucket, which keeps
// no per-identity state.
func (c Config) ResetHorizon() time.Duration {
	switch c.Strategy {
	case StrategySlidingWindowLog:
		return c.Window
	case StrategyTokenBucket:
		intervals := float64(c.Limit) / c.TokensPerInterval
		horizon := intervals * float64(c.RefillInterval)
		if horizon >= math.MaxInt64 {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(math.Ceil(horizon))
	default:
		return 0
	}
}

func positiveInt(s Strategy, field string, v int) error {
	if v <= 0 {
		return &ConfigError{Strategy: s, Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

func positiveDuration(s Strategy, field string, v time.Duration) error {
	if v <= 0 {
		return &ConfigError{Strategy: s, Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

func positiveFloat(s Strategy, field string, v float64) error {
	if !(v > 0) || math.IsInf(v, 1) {
		return &ConfigError{Strategy: s, Field: field, Value: v, Reason: "must be positive and finite"}
	}
	return nil
}
