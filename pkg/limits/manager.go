package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/turnstile/pkg/limits/ratelimit"
	"mercator-hq/turnstile/pkg/limits/storage"
	"mercator-hq/turnstile/pkg/telemetry/logging"
	"mercator-hq/turnstile/pkg/telemetry/tracing"
)

// DefaultSweepSchedule is the cron expression used when Config.SweepSchedule is empty.
const DefaultSweepSchedule = "@every 1m"

// Tracer starts spans. It is satisfied by trace.Tracer and *tracing.Tracer.
type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// Config contains configuration for the limits manager.
type Config struct {
	// Limiters maps limiter names to their configuration.
	Limiters map[string]ratelimit.Config

	// MaxIdentities bounds tracked identities per limiter.
	// Default: storage.DefaultMaxEntries
	MaxIdentities int

	// Shards is the number of lock partitions per limiter.
	// Default: storage.DefaultShards
	Shards int

	// SweepSchedule is the cron expression for the idle sweep.
	// Default: DefaultSweepSchedule
	SweepSchedule string

	// Clock is the time source shared by every limiter. Default: ratelimit.SystemClock.
	Clock ratelimit.Clock

	// Metrics receives decision and eviction metrics. Optional.
	Metrics *Metrics

	// Recorder receives every decision. Optional.
	Recorder DecisionRecorder

	// Tracer opens a span per check. Default: no-op.
	Tracer Tracer

	// Logger is the component logger. Default: slog.Default().
	Logger *slog.Logger
}

// Manager owns a fixed set of named limiters.
//
// Check is safe for concurrent use. The limiter set never changes after
// NewManager returns, so lookups take no lock.
type Manager struct {
	limiters map[string]*namedLimiter
	names    []string

	clock    ratelimit.Clock
	metrics  *Metrics
	recorder DecisionRecorder
	tracer   Tracer
	logger   *slog.Logger

	sweeper *sweeper
}

type namedLimiter struct {
	name    string
	config  ratelimit.Config
	limiter ratelimit.Limiter
}

// NewManager validates and builds every configured limiter.
//
// All invalid limiters are reported together; the returned error wraps
// ratelimit.ErrInvalidConfiguration for each of them.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Limiters) == 0 {
		return nil, ErrNoLimiters
	}
	if cfg.Clock == nil {
		cfg.Clock = ratelimit.SystemClock{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("turnstile/limits")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}

	m := &Manager{
		limiters: make(map[string]*namedLimiter, len(cfg.Limiters)),
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		recorder: cfg.Recorder,
		tracer:   cfg.Tracer,
		logger:   cfg.Logger.With("component", "limits.manager"),
	}

	names := make([]string, 0, len(cfg.Limiters))
	for name := range cfg.Limiters {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		lc := cfg.Limiters[name]
		limiter, err := ratelimit.New(lc,
			ratelimit.WithClock(cfg.Clock),
			ratelimit.WithMaxIdentities(cfg.MaxIdentities),
			ratelimit.WithShards(cfg.Shards),
			ratelimit.WithEvictionHook(m.evictionHook(name)),
		)
		if err != nil {
			errs = append(errs, &LimitError{Limiter: name, Err: err})
			continue
		}
		m.limiters[name] = &namedLimiter{name: name, config: lc, limiter: limiter}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	m.names = names

	sw, err := newSweeper(cfg.SweepSchedule, m.Sweep, m.logger)
	if err != nil {
		return nil, err
	}
	m.sweeper = sw

	return m, nil
}

func (m *Manager) evictionHook(name string) func(storage.EvictReason, int) {
	return func(reason storage.EvictReason, n int) {
		m.metrics.RecordEvictions(name, reason, n)
		if reason == storage.EvictCapacity {
			m.logger.Debug("identity evicted at capacity", "limiter", name)
		}
	}
}

// Check runs the named limiter for identity.
//
// It returns an error only for an unknown limiter name; the limiter itself
// never fails.
func (m *Manager) Check(ctx context.Context, name, identity string) (*Decision, error) {
	nl, ok := m.limiters[name]
	if !ok {
		return nil, &LimitError{Limiter: name, Err: ErrUnknownLimiter}
	}

	ctx, span := m.tracer.Start(ctx, "limits.check",
		trace.WithAttributes(
			tracing.AttrLimiter.String(name),
			tracing.AttrStrategy.String(string(nl.config.Strategy)),
		),
	)
	defer span.End()

	start := time.Now()
	allowed := nl.limiter.Allow(identity)
	elapsed := time.Since(start)

	decision := &Decision{
		Limiter:   name,
		Strategy:  nl.config.Strategy,
		Identity:  identity,
		Allowed:   allowed,
		Timestamp: m.clock.Now(),
		Duration:  elapsed,
		RequestID: logging.GetRequestID(ctx),
	}

	span.SetAttributes(tracing.AttrAllowed.Bool(allowed))
	if allowed {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, "rate limit exceeded")
	}

	m.metrics.RecordDecision(decision)
	if tr, ok := nl.limiter.(ratelimit.IdentityTracker); ok {
		m.metrics.SetTrackedIdentities(name, tr.Identities())
	}

	if !allowed {
		m.logger.DebugContext(ctx, "request rejected",
			"limiter", name,
			"strategy", nl.config.Strategy,
			"identity", identity,
		)
	}

	if m.recorder != nil {
		m.recorder.RecordDecision(ctx, decision)
	}

	return decision, nil
}

// Allow is Check without the error for callers that already know the name
// is valid. An unknown name rejects.
func (m *Manager) Allow(ctx context.Context, name, identity string) bool {
	d, err := m.Check(ctx, name, identity)
	return err == nil && d.Allowed
}

// Has reports whether a limiter named name exists.
func (m *Manager) Has(name string) bool {
	_, ok := m.limiters[name]
	return ok
}

// Names returns the limiter names in sorted order.
func (m *Manager) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Len returns the number of limiters.
func (m *Manager) Len() int {
	return len(m.names)
}

// Strategy returns the named limiter's algorithm.
func (m *Manager) Strategy(name string) (ratelimit.Strategy, bool) {
	nl, ok := m.limiters[name]
	if !ok {
		return "", false
	}
	return nl.config.Strategy, true
}

// Identities returns how many identities the named limiter tracks.
// It is zero for limiters without per-identity state.
func (m *Manager) Identities(name string) int {
	nl, ok := m.limiters[name]
	if !ok {
		return 0
	}
	if tr, ok := nl.limiter.(ratelimit.IdentityTracker); ok {
		return tr.Identities()
	}
	return 0
}

// Limiter returns the named limiter.
func (m *Manager) Limiter(name string) (ratelimit.Limiter, bool) {
	nl, ok := m.limiters[name]
	if !ok {
		return nil, false
	}
	return nl.limiter, true
}

// Info describes every limiter, sorted by name.
func (m *Manager) Info() []LimiterInfo {
	infos := make([]LimiterInfo, 0, len(m.names))
	for _, name := range m.names {
		nl := m.limiters[name]
		infos = append(infos, LimiterInfo{
			Name:       name,
			Strategy:   nl.config.Strategy,
			Config:     nl.config,
			Identities: m.Identities(name),
		})
	}
	return infos
}

// Sweep drops fully reset identities from every limiter and refreshes the
// tracked identity gauges. Returns the total number removed.
func (m *Manager) Sweep() int {
	total := 0
	for _, name := range m.names {
		tr, ok := m.limiters[name].limiter.(ratelimit.IdentityTracker)
		if !ok {
			continue
		}
		total += tr.Sweep()
		m.metrics.SetTrackedIdentities(name, tr.Identities())
	}

	if total > 0 {
		m.logger.Debug("idle sweep completed", "removed", total)
	}
	return total
}

// StartSweeper schedules Sweep until ctx is cancelled or Close is called.
func (m *Manager) StartSweeper(ctx context.Context) error {
	if err := m.sweeper.start(ctx); err != nil {
		return fmt.Errorf("failed to start idle sweep: %w", err)
	}
	return nil
}

// NextSweep returns the next scheduled sweep, or nil if the sweeper is not running.
func (m *Manager) NextSweep() *time.Time {
	return m.sweeper.nextRun()
}

// Close stops the sweeper and waits for a running sweep to finish.
func (m *Manager) Close() error {
	m.sweeper.stop()
	return nil
}
