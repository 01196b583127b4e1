//go:build wireinject
// +build wireinject

package app

import "github.com/google/wire"

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	NewMetricsRegistry,
	NewMetrics,
	NewHealthTracker,
	NewCommandLauncher,
)

var DiscoverySet = wire.NewSet(
	NewCatalog,
	NewSettings,
	NewConnector,
	NewConnectStrategy,
	NewCacheStore,
	NewRunHistory,
	NewOrchestrator,
)

var AppSet = wire.NewSet(
	CoreInfraSet,
	DiscoverySet,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
