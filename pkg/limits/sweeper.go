package limits

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// sweeper runs the idle sweep on a cron schedule.
type sweeper struct {
	schedule string
	sweep    func() int
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	stopCh  chan struct{}
}

func newSweeper(schedule string, sweep func() int, logger *slog.Logger) (*sweeper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &sweeper{
		schedule: schedule,
		sweep:    sweep,
		logger:   logger,
		cron:     cron.New(),
	}, nil
}

func (s *sweeper) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.sweep() }); err != nil {
		return err
	}
	s.cron.Start()
	s.running = true
	s.stopCh = make(chan struct{})

	s.logger.Info("idle sweep scheduled", "schedule", s.schedule)

	go func(stopCh <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.stop()
		case <-stopCh:
		}
	}(s.stopCh)

	return nil
}

func (s *sweeper) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	<-s.cron.Stop().Done()
	s.running = false
	s.cron = cron.New()
	s.logger.Debug("idle sweep stopped")
}

func (s *sweeper) nextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
