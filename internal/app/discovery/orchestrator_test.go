package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpscout/internal/app/capability"
	"mcpscout/internal/domain"
	"mcpscout/internal/infra/history"
	"mcpscout/internal/infra/telemetry"
	"mcpscout/internal/infra/toolcache"
	"mcpscout/internal/infra/transport"
)

type behavior func(ctx context.Context) ([]domain.ToolSchema, error)

func tools(names ...string) behavior {
	return func(context.Context) ([]domain.ToolSchema, error) {
		out := make([]domain.ToolSchema, 0, len(names))
		for _, name := range names {
			out = append(out, domain.ToolSchema{Name: name, Parameters: map[string]any{"type": "object"}})
		}
		return out, nil
	}
}

func refuse(name string) behavior {
	return func(context.Context) ([]domain.ToolSchema, error) {
		return nil, domain.NewConnectError(name, domain.FailureRefused, domain.ErrExecutableNotFound)
	}
}

func hang(ctx context.Context) ([]domain.ToolSchema, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeConnector applies the attempt deadline the way MCPConnector does.
type fakeConnector struct {
	mu        sync.Mutex
	behaviors map[string][]behavior
	calls     map[string]int
}

func newFakeConnector(behaviors map[string][]behavior) *fakeConnector {
	return &fakeConnector{behaviors: behaviors, calls: map[string]int{}}
}

func (f *fakeConnector) Connect(ctx context.Context, spec domain.ProviderSpec, timeout time.Duration) ([]domain.ToolSchema, error) {
	f.mu.Lock()
	call := f.calls[spec.Name]
	f.calls[spec.Name]++
	script := f.behaviors[spec.Name]
	f.mu.Unlock()

	if len(script) == 0 {
		return nil, domain.NewConnectError(spec.Name, domain.FailureRefused, errors.New("no script"))
	}
	step := script[len(script)-1]
	if call < len(script) {
		step = script[call]
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := step(attemptCtx)
	if err != nil && attemptCtx.Err() != nil {
		return nil, domain.NewConnectError(spec.Name, domain.FailureTimeout, err)
	}
	return out, err
}

func (f *fakeConnector) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func providerSet(t *testing.T, names ...string) domain.ProviderSet {
	t.Helper()
	specs := make([]domain.ProviderSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, domain.ProviderSpec{Name: name, Command: "npx", Args: []string{"-y", name}})
	}
	set, err := domain.NewProviderSet(specs)
	require.NoError(t, err)
	return set
}

type harness struct {
	orchestrator *Orchestrator
	connector    *fakeConnector
	store        *toolcache.FileStore
	history      *history.Store
	health       *telemetry.HealthTracker
	registry     *prometheus.Registry
	sleeps       []time.Duration
}

func newHarness(t *testing.T, providers domain.ProviderSet, connector *fakeConnector, tweak func(*domain.DiscoverySettings)) *harness {
	t.Helper()
	settings := domain.DefaultDiscoverySettings()
	settings.ConnectTimeout = 300 * time.Millisecond
	if tweak != nil {
		tweak(&settings)
	}
	dir := t.TempDir()
	store := toolcache.NewFileStore(filepath.Join(dir, "mcp_tools_cache.json"), nil)
	runs, err := history.OpenStore(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	h := &harness{
		connector: connector,
		store:     store,
		history:   runs,
		health:    telemetry.NewHealthTracker(),
		registry:  prometheus.NewRegistry(),
	}
	metrics := telemetry.NewPrometheusMetrics(h.registry)
	h.orchestrator = NewOrchestrator(Options{
		Providers: providers,
		Settings:  settings,
		Strategy: transport.NewPooledStrategy(connector, transport.PooledStrategyOptions{
			Timeout:     settings.ConnectTimeout,
			Concurrency: settings.Concurrency,
			Metrics:     metrics,
		}),
		Store:   store,
		History: runs,
		Metrics: metrics,
		Health:  h.health,
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return ctx.Err()
		},
	})
	return h
}

func toolNames(list []domain.ToolSchema) []string {
	names := make([]string, 0, len(list))
	for _, tool := range list {
		names = append(names, tool.Name)
	}
	return names
}

func TestRun_HangingProviderDoesNotBlockSuccess(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{
		"filesystem":    {tools("read_file", "write_file")},
		"server-memory": {tools("create_entities")},
		"slowtool":      {hang},
	})
	h := newHarness(t, providerSet(t, "slowtool", "server-memory", "filesystem"), connector, nil)

	started := time.Now()
	result, err := h.orchestrator.Run(context.Background(), Request{})
	require.NoError(t, err)
	require.Less(t, time.Since(started), 3*time.Second)

	require.Equal(t, domain.RunSuccess, result.State)
	require.Equal(t, []string{"filesystem", "server-memory", "slowtool"}, result.Selection.Names())
	require.Equal(t, []string{"filesystem", "server-memory"}, result.Cache.Providers())
	require.Equal(t, []string{"read_file", "write_file", "create_entities"}, toolNames(result.Capabilities.Tools))
	require.False(t, result.Capabilities.Degraded)
	require.Empty(t, h.sleeps)

	require.Len(t, result.Report.Attempts, 3)
	require.Equal(t, domain.AttemptTimedOut, result.Report.Attempts[2].State)
	require.Equal(t, domain.FailureTimeout, result.Report.Attempts[2].FailureKind)

	persisted, err := h.store.Load()
	require.NoError(t, err)
	require.Equal(t, result.Cache.Entries(), persisted.Entries())
	require.NotEmpty(t, result.Report.Fingerprint)
}

func TestRun_EmptyConfigDegradesImmediately(t *testing.T) {
	connector := newFakeConnector(nil)
	h := newHarness(t, domain.ProviderSet{}, connector, nil)

	result, err := h.orchestrator.Run(context.Background(), Request{})
	require.NoError(t, err)

	require.Equal(t, domain.RunDegraded, result.State)
	require.Equal(t, domain.DegradedEmptyConfig, result.Reason)
	require.Equal(t, capability.FallbackTools(), result.Capabilities.Tools)
	require.Zero(t, connector.total())
	require.Empty(t, h.sleeps)

	persisted, err := h.store.Load()
	require.NoError(t, err)
	require.True(t, persisted.IsEmpty())
}

func TestRun_RetriesThenDegradesAndClearsStaleCache(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{
		"filesystem":    {refuse("filesystem")},
		"server-memory": {refuse("server-memory")},
	})
	h := newHarness(t, providerSet(t, "filesystem", "server-memory"), connector, nil)

	stale := domain.NewToolCache()
	stale.Set("filesystem", []domain.ToolSchema{{Name: "read_file"}})
	require.NoError(t, h.store.Persist(stale))

	result, err := h.orchestrator.Run(context.Background(), Request{})
	require.NoError(t, err)

	require.Equal(t, domain.RunDegraded, result.State)
	require.Equal(t, domain.DegradedNoProviders, result.Reason)
	require.Equal(t, 3, result.Report.Passes)
	require.Equal(t, 6, connector.total())
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, h.sleeps)
	require.Equal(t, capability.FallbackTools(), result.Capabilities.Tools)

	persisted, err := h.store.Load()
	require.NoError(t, err)
	require.True(t, persisted.IsEmpty())
	retries, err := testutil.GatherAndCount(h.registry, "mcpscout_retries_total")
	require.NoError(t, err)
	require.Equal(t, 2, retries)
}

func TestRun_RecoversOnLaterPass(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{
		"filesystem": {refuse("filesystem"), tools("read_file")},
	})
	h := newHarness(t, providerSet(t, "filesystem"), connector, nil)

	result, err := h.orchestrator.Run(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, result.State)
	require.Equal(t, 2, result.Report.Passes)
	require.Equal(t, []time.Duration{2 * time.Second}, h.sleeps)
}

func TestRun_FailFastReturnsLastError(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{
		"filesystem": {refuse("filesystem")},
	})
	h := newHarness(t, providerSet(t, "filesystem"), connector, func(s *domain.DiscoverySettings) {
		s.MaxRetries = 1
	})
	stale := domain.NewToolCache()
	stale.Set("filesystem", []domain.ToolSchema{{Name: "read_file"}})
	require.NoError(t, h.store.Persist(stale))

	result, err := h.orchestrator.Run(context.Background(), Request{FailFast: true})
	require.ErrorIs(t, err, domain.ErrRunExhausted)
	require.ErrorIs(t, err, domain.ErrRefused)
	require.ErrorIs(t, err, domain.ErrExecutableNotFound)

	var exhausted *domain.RunExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 2, exhausted.Passes)
	require.Equal(t, domain.RunFailed, result.State)

	persisted, loadErr := h.store.Load()
	require.NoError(t, loadErr)
	require.Equal(t, []string{"filesystem"}, persisted.Providers())
}

func TestRun_FallbackOnlySkipsDiscovery(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{"filesystem": {tools("read_file")}})
	h := newHarness(t, providerSet(t, "filesystem"), connector, nil)

	result, err := h.orchestrator.Run(context.Background(), Request{FallbackOnly: true})
	require.NoError(t, err)
	require.Equal(t, domain.RunDegraded, result.State)
	require.Equal(t, domain.DegradedFallbackOnly, result.Reason)
	require.Zero(t, connector.total())

	_, err = h.store.Load()
	require.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestRun_UnknownProvidersDropped(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{"filesystem": {tools("read_file")}})
	h := newHarness(t, providerSet(t, "filesystem", "server-github"), connector, nil)

	result, err := h.orchestrator.Run(context.Background(), Request{Providers: []string{"filesystem", "nope"}})
	require.NoError(t, err)
	require.Equal(t, []string{"nope"}, result.Report.Unknown)
	require.Equal(t, []string{"filesystem"}, result.Report.Scheduled)
	require.Equal(t, 1, connector.total())
}

func TestRun_OnlyUnknownProvidersDegrades(t *testing.T) {
	connector := newFakeConnector(nil)
	h := newHarness(t, providerSet(t, "filesystem"), connector, nil)

	result, err := h.orchestrator.Run(context.Background(), Request{Providers: []string{"nope"}})
	require.NoError(t, err)
	require.Equal(t, domain.DegradedNothingScheduled, result.Reason)
	require.Zero(t, connector.total())
	require.Empty(t, h.sleeps)
}

func TestRun_LaterScheduledProviderWinsCollision(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{
		"mcp-server-firecrawl": {func(context.Context) ([]domain.ToolSchema, error) {
			return []domain.ToolSchema{{Name: "search", Description: "firecrawl"}, {Name: "firecrawl_scrape"}}, nil
		}},
		"duckduckgo-mcp-server": {func(context.Context) ([]domain.ToolSchema, error) {
			return []domain.ToolSchema{{Name: "search", Description: "duckduckgo"}, {Name: "fetch_content"}}, nil
		}},
	})
	h := newHarness(t, providerSet(t, "duckduckgo-mcp-server", "mcp-server-firecrawl"), connector, nil)

	result, err := h.orchestrator.Run(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, []string{"mcp-server-firecrawl", "duckduckgo-mcp-server"}, result.Selection.Names())
	require.Equal(t, []string{"firecrawl_scrape", "search", "fetch_content"}, toolNames(result.Capabilities.Tools))
	require.Equal(t, "duckduckgo", result.Capabilities.Tools[1].Description)
	require.Equal(t, []domain.ToolCollision{{
		Tool:     "search",
		Winner:   "duckduckgo-mcp-server",
		Shadowed: []string{"mcp-server-firecrawl"},
	}}, result.Capabilities.Collisions)
}

func TestRun_PersistFailureStillSucceeds(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{"filesystem": {tools("read_file")}})
	h := newHarness(t, providerSet(t, "filesystem"), connector, nil)

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	h.orchestrator.store = toolcache.NewFileStore(filepath.Join(blocker, "cache.json"), nil)

	result, err := h.orchestrator.Run(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, result.State)
	require.ErrorIs(t, result.PersistErr, domain.ErrAggregation)
	require.NotEmpty(t, result.Report.PersistError)
}

func TestRun_CancelledDuringBackoff(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{"filesystem": {refuse("filesystem")}})
	h := newHarness(t, providerSet(t, "filesystem"), connector, nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.orchestrator.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := h.orchestrator.Run(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, connector.total())
}

func TestRun_RecordsHistoryAndHealth(t *testing.T) {
	connector := newFakeConnector(map[string][]behavior{"filesystem": {tools("read_file")}})
	h := newHarness(t, providerSet(t, "filesystem"), connector, nil)
	require.Equal(t, telemetry.HealthStatusPending, h.health.Report().Status)

	result, err := h.orchestrator.Run(context.Background(), Request{})
	require.NoError(t, err)

	runs, err := h.history.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.Report.ID, runs[0].ID)
	assert.Equal(t, domain.RunSuccess, runs[0].State)
	assert.Equal(t, 1, runs[0].ToolCount)

	report := h.health.Report()
	assert.Equal(t, telemetry.HealthStatusOK, report.Status)
	assert.Equal(t, result.Report.ID, report.RunID)

	count, err := testutil.GatherAndCount(h.registry, "mcpscout_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
