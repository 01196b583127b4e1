package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mcpscout/internal/app/discovery"
	"mcpscout/internal/domain"
	"mcpscout/internal/infra/catalog"
	"mcpscout/internal/infra/history"
	"mcpscout/internal/infra/isolation"
	"mcpscout/internal/infra/telemetry"
	"mcpscout/internal/infra/toolcache"
	"mcpscout/internal/infra/transport"
)

// Catalog is the loaded provider configuration.
type Catalog struct {
	Path      string
	Providers domain.ProviderSet
	Issues    []catalog.Issue
	// LoadErr is the recovered configuration error, if any. The provider
	// set is empty when it is set.
	LoadErr error
}

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewHealthTracker() *telemetry.HealthTracker {
	return telemetry.NewHealthTracker()
}

// NewCatalog loads the provider map. An unusable file is logged and
// treated as an empty configuration.
func NewCatalog(ctx context.Context, cfg RunConfig, logger *zap.Logger) Catalog {
	result, err := catalog.NewLoader(logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		logger.Warn("provider config unusable; continuing with no providers",
			zap.String("path", result.Path),
			zap.Error(err),
		)
	}
	return Catalog{
		Path:      result.Path,
		Providers: result.Providers,
		Issues:    result.Issues,
		LoadErr:   err,
	}
}

// NewSettings loads discovery settings and applies command-line overrides.
func NewSettings(ctx context.Context, cfg RunConfig, logger *zap.Logger) (domain.DiscoverySettings, error) {
	settings, err := catalog.NewSettingsLoader(logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		var cfgErr *domain.ConfigError
		if !errors.As(err, &cfgErr) {
			return domain.DiscoverySettings{}, err
		}
		logger.Warn("discovery settings unreadable; using defaults", zap.Error(err))
		settings = domain.DefaultDiscoverySettings()
	}
	if cfg.Overrides != nil {
		cfg.Overrides(&settings)
	}
	if err := catalog.ValidateSettings(settings); err != nil {
		return domain.DiscoverySettings{}, err
	}
	return settings, nil
}

func NewCommandLauncher(logger *zap.Logger) *transport.CommandLauncher {
	return transport.NewCommandLauncher(transport.CommandLauncherOptions{Logger: logger})
}

// NewConnector picks the attempt runner for the configured strategy.
func NewConnector(cfg RunConfig, settings domain.DiscoverySettings, launcher *transport.CommandLauncher, logger *zap.Logger) (domain.Connector, error) {
	switch settings.Strategy {
	case domain.StrategyIsolated:
		connector, err := isolation.NewWorkerConnector(isolation.WorkerConnectorOptions{
			Executable:   cfg.WorkerExecutable,
			Env:          cfg.WorkerEnv,
			Grace:        settings.IsolationGrace,
			PollInterval: settings.IsolationPoll,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return connector, nil
	case domain.StrategyInProcess, "":
		return transport.NewMCPConnector(transport.MCPConnectorOptions{
			Logger:   logger,
			Launcher: launcher,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidSettings, settings.Strategy)
	}
}

func NewConnectStrategy(connector domain.Connector, settings domain.DiscoverySettings, metrics domain.Metrics, logger *zap.Logger) domain.ConnectStrategy {
	return transport.NewPooledStrategy(connector, transport.PooledStrategyOptions{
		Timeout:     settings.ConnectTimeout,
		Concurrency: settings.Concurrency,
		Logger:      logger,
		Metrics:     metrics,
	})
}

func NewCacheStore(settings domain.DiscoverySettings, logger *zap.Logger) *toolcache.FileStore {
	return toolcache.NewFileStore(settings.CachePath, logger)
}

// NewRunHistory opens the history store. History is optional: a store that
// cannot be opened is logged and skipped.
func NewRunHistory(settings domain.DiscoverySettings, logger *zap.Logger) *history.Store {
	path := settings.HistoryPath
	if path == "" {
		return nil
	}
	store, err := history.OpenStore(path)
	if err != nil {
		logger.Warn("run history unavailable", zap.String("path", path), zap.Error(err))
		return nil
	}
	return store
}

func NewOrchestrator(
	cat Catalog,
	settings domain.DiscoverySettings,
	strategy domain.ConnectStrategy,
	store *toolcache.FileStore,
	runs *history.Store,
	metrics domain.Metrics,
	health *telemetry.HealthTracker,
	logger *zap.Logger,
) *discovery.Orchestrator {
	opts := discovery.Options{
		Providers: cat.Providers,
		Settings:  settings,
		Strategy:  strategy,
		Store:     store,
		Metrics:   metrics,
		Health:    health,
		Logger:    logger,
	}
	if runs != nil {
		opts.History = runs
	}
	return discovery.NewOrchestrator(opts)
}
