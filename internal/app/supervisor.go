package app

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"mcpscout/internal/app/discovery"
	"mcpscout/internal/infra/telemetry"
)

// Initializer builds an Application for one configuration load.
type Initializer func(ctx context.Context, cfg RunConfig, logging LoggingConfig) (*Application, error)

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	Config  RunConfig
	Logging LoggingConfig
	Request discovery.Request
	// Initialize defaults to InitializeApplication.
	Initialize Initializer
	// OnResult observes every finished run.
	OnResult func(discovery.Result, error)
}

// Supervisor re-runs discovery whenever the config file changes. Each
// reload builds a fresh Application from the new file.
type Supervisor struct {
	cfg        RunConfig
	logging    LoggingConfig
	request    discovery.Request
	initialize Initializer
	onResult   func(discovery.Result, error)
	logger     *zap.Logger

	mu      sync.RWMutex
	current *Application
}

func NewSupervisor(opts SupervisorOptions) *Supervisor {
	logger := opts.Logging.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	initialize := opts.Initialize
	if initialize == nil {
		initialize = InitializeApplication
	}
	return &Supervisor{
		cfg:        opts.Config,
		logging:    opts.Logging,
		request:    opts.Request,
		initialize: initialize,
		onResult:   opts.OnResult,
		logger:     logger.Named("supervisor"),
	}
}

// Run performs an initial discovery, then one per config change, until
// ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.reload(ctx); err != nil {
		return err
	}
	defer s.closeCurrent()

	watcher := NewConfigWatcher(s.cfg.ConfigPath, s.logging.Logger)
	return watcher.Run(ctx, func(ctx context.Context) {
		if err := s.reload(ctx); err != nil {
			s.logger.Warn("reload failed", zap.Error(err))
		}
	})
}

// Report implements telemetry.HealthReporter over the active application.
func (s *Supervisor) Report() telemetry.HealthReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return telemetry.HealthReport{Status: telemetry.HealthStatusPending}
	}
	return s.current.Health().Report()
}

// Gatherer exposes the metrics of the active application.
func (s *Supervisor) Gatherer() prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.current == nil {
			return nil, nil
		}
		return s.current.Registry().Gather()
	})
}

func (s *Supervisor) reload(ctx context.Context) error {
	// The history store holds a file lock, so the previous application is
	// closed before the next one opens it.
	s.closeCurrent()

	next, err := s.initialize(ctx, s.cfg, s.logging)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	result, runErr := next.Prepare(ctx, s.request)
	if s.onResult != nil {
		s.onResult(result, runErr)
	}
	return nil
}

func (s *Supervisor) closeCurrent() {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()
	if current == nil {
		return
	}
	if err := current.Close(); err != nil {
		s.logger.Warn("close application failed", zap.Error(err))
	}
}

var _ telemetry.HealthReporter = (*Supervisor)(nil)
