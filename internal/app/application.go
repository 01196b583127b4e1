package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mcpscout/internal/app/capability"
	"mcpscout/internal/app/discovery"
	"mcpscout/internal/domain"
	"mcpscout/internal/infra/history"
	"mcpscout/internal/infra/telemetry"
	"mcpscout/internal/infra/toolcache"
)

// ErrHistoryUnavailable is returned when the run history store could not be opened.
var ErrHistoryUnavailable = errors.New("run history unavailable")

// Application wires discovery, the tool cache and run history for one
// loaded configuration.
type Application struct {
	logger       *zap.Logger
	catalog      Catalog
	settings     domain.DiscoverySettings
	orchestrator *discovery.Orchestrator
	store        *toolcache.FileStore
	history      *history.Store
	registry     *prometheus.Registry
	health       *telemetry.HealthTracker
}

// ApplicationOptions captures dependencies for Application.
type ApplicationOptions struct {
	Logger       *zap.Logger
	Catalog      Catalog
	Settings     domain.DiscoverySettings
	Orchestrator *discovery.Orchestrator
	Store        *toolcache.FileStore
	History      *history.Store
	Registry     *prometheus.Registry
	Health       *telemetry.HealthTracker
}

func NewApplication(opts ApplicationOptions) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Application{
		logger:       logger,
		catalog:      opts.Catalog,
		settings:     opts.Settings,
		orchestrator: opts.Orchestrator,
		store:        opts.Store,
		history:      opts.History,
		registry:     opts.Registry,
		health:       opts.Health,
	}
}

// Prepare runs one discovery and returns its outcome.
func (a *Application) Prepare(ctx context.Context, req discovery.Request) (discovery.Result, error) {
	return a.orchestrator.Run(ctx, req)
}

// Capabilities reads the persisted cache, falling back to the built-in set.
func (a *Application) Capabilities() capability.Set {
	return capability.Load(a.store, a.logger)
}

// Schedule computes the selection and order a run would use without
// connecting to anything.
func (a *Application) Schedule(req discovery.Request) discovery.Selection {
	return discovery.Select(a.catalog.Providers, a.settings, req, a.logger)
}

// History lists recorded runs, newest first.
func (a *Application) History(ctx context.Context, limit int) ([]domain.RunReport, error) {
	if a.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return a.history.List(ctx, limit)
}

// Run returns one recorded run.
func (a *Application) Run(ctx context.Context, id string) (domain.RunReport, error) {
	if a.history == nil {
		return domain.RunReport{}, ErrHistoryUnavailable
	}
	return a.history.Get(ctx, id)
}

func (a *Application) Catalog() Catalog {
	return a.catalog
}

func (a *Application) Settings() domain.DiscoverySettings {
	return a.settings
}

func (a *Application) CachePath() string {
	return a.store.Path()
}

func (a *Application) Registry() *prometheus.Registry {
	return a.registry
}

func (a *Application) Health() *telemetry.HealthTracker {
	return a.health
}

// Close releases the history store.
func (a *Application) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}
