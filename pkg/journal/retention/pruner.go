package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/journal"
	"mercator-hq/turnstile/pkg/telemetry/metrics"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// MaxAge is how long records are kept. Zero disables pruning.
	MaxAge time.Duration

	// PruneSchedule is a cron expression for scheduled pruning, e.g.
	// "0 3 * * *" for daily at 3 AM. Empty disables scheduling.
	PruneSchedule string

	// Metrics counts pruned records. Optional.
	Metrics *metrics.ServerMetrics

	// Now is the time source. Default: time.Now.
	Now func() time.Time

	// Logger is the component logger. Default: slog.Default().
	Logger *slog.Logger
}

// ConfigFrom converts the journal's retention section.
func ConfigFrom(cfg *config.RetentionConfig) *Config {
	return &Config{
		MaxAge:        cfg.MaxAge,
		PruneSchedule: cfg.PruneSchedule,
	}
}

// Pruner deletes journal records older than MaxAge, once or on a schedule.
type Pruner struct {
	storage journal.Storage
	config  Config
	logger  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running bool
}

// NewPruner creates a pruner for storage.
func NewPruner(storage journal.Storage, cfg *Config) *Pruner {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  c,
		logger:  logger.With("component", "journal.retention"),
	}
}

// Prune deletes every record older than MaxAge and returns the count.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.MaxAge <= 0 {
		p.logger.Debug("retention disabled, nothing pruned")
		return 0, nil
	}
	return p.PruneBefore(ctx, p.config.Now().Add(-p.config.MaxAge))
}

// PruneBefore deletes every record older than cutoff.
func (p *Pruner) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := p.storage.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune journal before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	p.config.Metrics.RecordPruned(deleted)

	if deleted > 0 {
		p.logger.Info("journal pruned",
			"deleted_count", deleted,
			"cutoff", cutoff,
		)
	} else {
		p.logger.Debug("no journal records pruned", "cutoff", cutoff)
	}
	return deleted, nil
}

// Start schedules Prune on PruneSchedule. It does nothing when the schedule
// is empty or pruning is disabled. The schedule stops when ctx is done or
// Stop is called.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if p.config.PruneSchedule == "" || p.config.MaxAge <= 0 {
		p.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	c := cron.New()
	entry, err := c.AddFunc(p.config.PruneSchedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.PruneSchedule, err)
	}

	c.Start()
	p.cron = c
	p.entry = entry
	p.running = true

	p.logger.Info("retention scheduler started",
		"schedule", p.config.PruneSchedule,
		"max_age", p.config.MaxAge,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("retention scheduler stopped")
}

// Running reports whether the scheduler is active.
func (p *Pruner) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextRun returns the next scheduled prune, or nil when not scheduled.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	next := p.cron.Entry(p.entry).Next
	return &next
}
