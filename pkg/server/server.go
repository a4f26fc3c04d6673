package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/journal"
	"mercator-hq/turnstile/pkg/journal/retention"
	journalstorage "mercator-hq/turnstile/pkg/journal/storage"
	"mercator-hq/turnstile/pkg/limits"
	"mercator-hq/turnstile/pkg/limits/ratelimit"
	"mercator-hq/turnstile/pkg/telemetry/health"
	"mercator-hq/turnstile/pkg/telemetry/metrics"
	"mercator-hq/turnstile/pkg/telemetry/tracing"
)

// Options carries the dependencies of a Server. Every field is optional.
type Options struct {
	// ConfigPath is watched for changes when Watch is set.
	ConfigPath string

	// Watch enables hot reload of the limiter set from ConfigPath.
	Watch bool

	// Version is served on the version endpoint and as build info.
	Version health.VersionInfo

	// Logger is the base logger. Default: slog.Default().
	Logger *slog.Logger

	// Clock is the time source for every limiter. Default: system time.
	Clock ratelimit.Clock

	// Registry receives all metrics. Default: a new registry.
	Registry *prometheus.Registry

	// Tracer overrides the tracer built from the telemetry config.
	Tracer *tracing.Tracer

	// JournalStorage overrides the storage opened from the journal config.
	// It is used only when the journal is enabled.
	JournalStorage journal.Storage
}

// Server is the turnstile HTTP server: the admission API, probes, metrics
// and, when an upstream is configured, the admission gateway.
type Server struct {
	config  *config.Config
	opts    Options
	logger  *slog.Logger
	version health.VersionInfo

	limiters     *limiterSet
	limitMetrics *limits.Metrics
	recorder     limits.DecisionRecorder

	collector *metrics.Collector
	tracer    *tracing.Tracer
	health    *health.Checker

	journal  journal.Storage
	journalR *journal.Recorder
	pruner   *retention.Pruner

	handler    http.Handler
	httpServer *http.Server

	// reloadMu serializes reloads and guards sweepCtx.
	reloadMu sync.Mutex
	sweepCtx context.Context

	mu           sync.Mutex
	running      bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds a server from a validated configuration. Nothing listens
// until Run or Serve is called; Shutdown releases what New acquired.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		opts:    opts,
		logger:  logger,
		version: opts.Version,
		health:  health.New(cfg.Telemetry.Health.CheckTimeout),
	}

	s.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, opts.Registry)
	s.collector.Server().SetBuildInfo(s.version.Version)
	s.limitMetrics = limits.NewMetrics(s.collector.Registry())

	s.tracer = opts.Tracer
	if s.tracer == nil {
		tracer, err := tracing.New(&cfg.Telemetry.Tracing, s.version.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer: %w", err)
		}
		s.tracer = tracer
	}

	if cfg.Journal.Enabled {
		if err := s.setupJournal(); err != nil {
			_ = s.tracer.Shutdown(context.Background())
			return nil, err
		}
	}

	m, err := s.buildManager(cfg)
	if err != nil {
		s.closeJournal()
		_ = s.tracer.Shutdown(context.Background())
		return nil, err
	}
	s.limiters = newLimiterSet(m)
	s.health.RegisterCheck("limiters", health.LimitersCheck(s.limiters.Len))

	handler, err := s.setupRoutes()
	if err != nil {
		_ = m.Close()
		s.closeJournal()
		_ = s.tracer.Shutdown(context.Background())
		return nil, err
	}
	s.handler = handler

	return s, nil
}

func (s *Server) setupJournal() error {
	cfg := &s.config.Journal

	st := s.opts.JournalStorage
	if st == nil {
		var err error
		st, err = journalstorage.Open(cfg, s.logger)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
	}
	s.journal = st

	rc := journal.RecorderConfigFrom(cfg)
	rc.Metrics = s.collector.Server()
	rc.Logger = s.logger
	s.journalR = journal.NewRecorder(st, rc)
	s.recorder = s.journalR

	pc := retention.ConfigFrom(&cfg.Retention)
	pc.Metrics = s.collector.Server()
	pc.Logger = s.logger
	s.pruner = retention.NewPruner(st, pc)

	s.health.RegisterCheck("journal", health.PingCheck(st))
	return nil
}

func (s *Server) buildManager(cfg *config.Config) (*limits.Manager, error) {
	m, err := limits.NewManager(limits.Config{
		Limiters:      cfg.RateLimits(),
		MaxIdentities: cfg.State.MaxIdentities,
		Shards:        cfg.State.Shards,
		SweepSchedule: cfg.State.SweepSchedule,
		Clock:         s.opts.Clock,
		Metrics:       s.limitMetrics,
		Recorder:      s.recorder,
		Tracer:        s.tracer,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build limiters: %w", err)
	}
	return m, nil
}

// Handler returns the server's HTTP handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Manager returns the limits manager currently serving requests.
func (s *Server) Manager() *limits.Manager {
	return s.limiters.manager()
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. It also runs the idle sweep, journal retention and, if
// enabled, the config watcher.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.mu.Unlock()

	if err := s.startBackground(ctx); err != nil {
		_ = ln.Close()
		_ = s.Shutdown(context.Background())
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"address", ln.Addr().String(),
			"limiters", s.limiters.Len(),
			"journal", s.journal != nil,
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		shutdownErr := s.Shutdown(context.Background())
		if ok {
			return err
		}
		return shutdownErr
	}
}

func (s *Server) startBackground(ctx context.Context) error {
	s.reloadMu.Lock()
	s.sweepCtx = ctx
	err := s.limiters.manager().StartSweeper(ctx)
	s.reloadMu.Unlock()
	if err != nil {
		return err
	}

	if s.pruner != nil {
		if err := s.pruner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start journal retention: %w", err)
		}
	}

	if s.opts.Watch && s.opts.ConfigPath != "" {
		watcher, err := config.NewWatcher(s.opts.ConfigPath, s.logger)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Watch(ctx, func(cfg *config.Config) { _ = s.Reload(cfg) }); err != nil {
				s.logger.Error("config watcher failed", "error", err)
			}
			_ = watcher.Stop()
		}()
	}
	return nil
}

// Shutdown stops accepting requests, waits up to the configured shutdown
// timeout for in-flight ones, then stops background work and flushes the
// journal and spans. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		var errs []error

		s.mu.Lock()
		srv := s.httpServer
		s.running = false
		s.mu.Unlock()

		if srv != nil {
			s.logger.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

			shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
			cancel()
		}

		s.reloadMu.Lock()
		_ = s.limiters.manager().Close()
		s.reloadMu.Unlock()

		s.closeJournal()

		if err := s.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
		}

		s.shutdownErr = errors.Join(errs...)
		s.logger.Info("server stopped")
	})

	return s.shutdownErr
}

// closeJournal stops retention, drains the recorder and closes storage.
func (s *Server) closeJournal() {
	if s.pruner != nil {
		s.pruner.Stop()
	}
	if s.journalR != nil {
		s.journalR.Close()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Error("failed to close journal", "error", err)
		}
	}
}

// IsRunning returns true if the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reload replaces the limiter set with one built from cfg. Identity state
// starts fresh. Server, gateway and journal settings are read only at
// startup; changes to them are logged and take effect on restart.
func (s *Server) Reload(cfg *config.Config) error {
	err := s.reload(cfg)
	s.collector.Server().RecordReload(err, time.Now())
	if err != nil {
		s.logger.Error("config reload rejected", "error", err)
	}
	return err
}

func (s *Server) reload(cfg *config.Config) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if gw := s.config.Gateway; gw.Upstream != "" {
		if _, ok := cfg.Limiters[gw.DefaultLimiter]; !ok {
			return fmt.Errorf("gateway limiter %q missing from new configuration", gw.DefaultLimiter)
		}
	}

	m, err := s.buildManager(cfg)
	if err != nil {
		return err
	}
	if s.sweepCtx != nil {
		if err := m.StartSweeper(s.sweepCtx); err != nil {
			_ = m.Close()
			return err
		}
	}

	old := s.limiters.swap(m)
	_ = old.Close()

	for _, name := range old.Names() {
		if !m.Has(name) {
			s.limitMetrics.Forget(name)
		}
	}

	if cfg.Server != s.config.Server || cfg.Gateway != s.config.Gateway || cfg.Journal != s.config.Journal {
		s.logger.Warn("server, gateway and journal changes take effect on restart")
	}

	s.logger.Info("limiters reloaded", "limiters", m.Names())
	return nil
}
