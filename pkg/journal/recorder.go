package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/limits"
	"mercator-hq/turnstile/pkg/telemetry/logging"
	"mercator-hq/turnstile/pkg/telemetry/metrics"
)

// Recording modes.
const (
	// ModeRejected journals only rejected decisions.
	ModeRejected = config.JournalModeRejected

	// ModeAll journals every decision.
	ModeAll = config.JournalModeAll
)

// RecorderConfig contains configuration for the journal recorder.
type RecorderConfig struct {
	// Mode is ModeRejected or ModeAll.
	// Default: ModeRejected
	Mode string

	// AsyncBuffer is the size of the write queue. Decisions arriving while
	// it is full are dropped.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// HashIdentities stores identity fingerprints instead of raw identities.
	HashIdentities bool

	// Metrics counts written, dropped and failed records. Optional.
	Metrics *metrics.ServerMetrics

	// Logger is the component logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Mode:           ModeRejected,
		AsyncBuffer:    config.DefaultJournalAsyncBuffer,
		WriteTimeout:   config.DefaultJournalWriteTimeout,
		HashIdentities: config.DefaultJournalHashIdentities,
	}
}

// RecorderConfigFrom builds a recorder configuration from the journal section.
func RecorderConfigFrom(cfg *config.JournalConfig) *RecorderConfig {
	return &RecorderConfig{
		Mode:           cfg.Mode,
		AsyncBuffer:    cfg.Recorder.AsyncBuffer,
		WriteTimeout:   cfg.Recorder.WriteTimeout,
		HashIdentities: cfg.Recorder.HashIdentities,
	}
}

// Recorder journals admission decisions asynchronously. It implements
// limits.DecisionRecorder; RecordDecision never blocks on storage.
type Recorder struct {
	storage Storage
	config  RecorderConfig
	queue   chan *Record
	done    chan struct{}
	logger  *slog.Logger

	// mu is held shared while enqueueing and exclusively while closing.
	mu     sync.RWMutex
	closed atomic.Bool
	wg     sync.WaitGroup
}

var _ limits.DecisionRecorder = (*Recorder)(nil)

// NewRecorder creates a recorder writing to storage and starts its writer.
func NewRecorder(storage Storage, cfg *RecorderConfig) *Recorder {
	if cfg == nil {
		cfg = DefaultRecorderConfig()
	}
	c := *cfg
	if c.Mode == "" {
		c.Mode = ModeRejected
	}
	if c.AsyncBuffer <= 0 {
		c.AsyncBuffer = config.DefaultJournalAsyncBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = config.DefaultJournalWriteTimeout
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage: storage,
		config:  c,
		queue:   make(chan *Record, c.AsyncBuffer),
		done:    make(chan struct{}),
		logger:  logger.With("component", "journal.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("journal recorder initialized",
		"mode", c.Mode,
		"async_buffer", c.AsyncBuffer,
		"write_timeout", c.WriteTimeout,
		"hash_identities", c.HashIdentities,
	)

	return r
}

// RecordDecision enqueues d for writing. Decisions filtered out by the
// mode are ignored; decisions arriving while the queue is full, or after
// Close, are dropped and counted.
func (r *Recorder) RecordDecision(ctx context.Context, d *limits.Decision) {
	if d == nil || !r.accepts(d) {
		return
	}
	record := r.newRecord(d)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed.Load() {
		r.config.Metrics.RecordJournal(metrics.JournalDropped)
		return
	}

	select {
	case r.queue <- record:
	default:
		r.config.Metrics.RecordJournal(metrics.JournalDropped)
		r.logger.WarnContext(ctx, "journal queue full, dropping record",
			"record_id", record.ID,
			"limiter", record.Limiter,
			"queue_capacity", r.config.AsyncBuffer,
		)
	}
}

// Close stops accepting decisions, writes everything already queued and
// waits for the writer to exit. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed.CompareAndSwap(false, true) {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
	r.logger.Info("journal recorder shut down")
	return nil
}

func (r *Recorder) accepts(d *limits.Decision) bool {
	return r.config.Mode == ModeAll || !d.Allowed
}

func (r *Recorder) newRecord(d *limits.Decision) *Record {
	identity := d.Identity
	if r.config.HashIdentities {
		identity = logging.Fingerprint(identity)
	}
	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Record{
		ID:        uuid.NewString(),
		Timestamp: ts,
		RequestID: d.RequestID,
		Limiter:   d.Limiter,
		Strategy:  string(d.Strategy),
		Identity:  identity,
		Allowed:   d.Allowed,
	}
}

// worker drains the queue until Close, then flushes what is left.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.queue:
			r.write(record)

		case <-r.done:
			for {
				select {
				case record := <-r.queue:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.config.Metrics.RecordJournal(metrics.JournalFailed)
		r.logger.Error("failed to store journal record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"error", err,
		)
		return
	}
	r.config.Metrics.RecordJournal(metrics.JournalWritten)

	if d := time.Since(start); d > r.config.WriteTimeout/2 {
		r.logger.Warn("slow journal write",
			"record_id", record.ID,
			"duration_ms", d.Milliseconds(),
		)
	}
}
