package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mcpscout/internal/app/discovery"
	"mcpscout/internal/domain"
	"mcpscout/internal/infra/isolation"
	"mcpscout/internal/infra/telemetry"
	"mcpscout/internal/infra/transport"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "mcp_config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runConfig(dir, configPath string) RunConfig {
	return RunConfig{
		ConfigPath: configPath,
		Overrides: func(settings *domain.DiscoverySettings) {
			settings.CachePath = filepath.Join(dir, "tool_cache.json")
			settings.HistoryPath = filepath.Join(dir, "history.db")
			settings.MaxRetries = 0
		},
	}
}

func TestInitializeApplication_EmptyConfigDegrades(t *testing.T) {
	dir := t.TempDir()
	cfg := runConfig(dir, writeConfig(t, dir, `{"mcpServers": {}}`))

	application, err := InitializeApplication(context.Background(), cfg, LoggingConfig{Logger: zap.NewNop()})
	require.NoError(t, err)
	defer application.Close()

	result, err := application.Prepare(context.Background(), discovery.Request{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunDegraded, result.State)
	assert.Equal(t, domain.DegradedEmptyConfig, result.Reason)
	assert.NoError(t, application.Catalog().LoadErr)

	set := application.Capabilities()
	assert.True(t, set.Degraded)
	assert.Len(t, set.Tools, 6)

	runs, err := application.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.Report.ID, runs[0].ID)

	stored, err := application.Run(context.Background(), result.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunDegraded, stored.State)

	assert.Equal(t, telemetry.HealthStatusDegraded, application.Health().Report().Status)
}

func TestInitializeApplication_MissingConfigIsRecovered(t *testing.T) {
	dir := t.TempDir()
	cfg := runConfig(dir, filepath.Join(dir, "absent.json"))

	application, err := InitializeApplication(context.Background(), cfg, LoggingConfig{})
	require.NoError(t, err)
	defer application.Close()

	var cfgErr *domain.ConfigError
	require.ErrorAs(t, application.Catalog().LoadErr, &cfgErr)
	assert.Equal(t, 0, application.Catalog().Providers.Len())

	result, err := application.Prepare(context.Background(), discovery.Request{})
	require.NoError(t, err)
	assert.Equal(t, domain.DegradedEmptyConfig, result.Reason)
}

func TestInitializeApplication_InvalidOverrideFails(t *testing.T) {
	dir := t.TempDir()
	cfg := runConfig(dir, writeConfig(t, dir, `{"mcpServers": {}}`))
	base := cfg.Overrides
	cfg.Overrides = func(settings *domain.DiscoverySettings) {
		base(settings)
		settings.Concurrency = 0
	}

	_, err := InitializeApplication(context.Background(), cfg, LoggingConfig{})
	require.ErrorIs(t, err, domain.ErrInvalidSettings)
}

func TestApplication_ScheduleDoesNotConnect(t *testing.T) {
	dir := t.TempDir()
	cfg := runConfig(dir, writeConfig(t, dir, `{"mcpServers": {
  "duckduckgo": {"command": "definitely-not-installed", "args": []},
  "filesystem": {"command": "definitely-not-installed", "args": []}
}}`))

	application, err := InitializeApplication(context.Background(), cfg, LoggingConfig{})
	require.NoError(t, err)
	defer application.Close()

	selection := application.Schedule(discovery.Request{Providers: []string{"filesystem", "ghost"}})
	assert.Equal(t, []string{"filesystem"}, selection.Names())
	assert.Equal(t, []string{"ghost"}, selection.Unknown)

	runs, err := application.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewConnector_SelectsStrategy(t *testing.T) {
	settings := domain.DefaultDiscoverySettings()
	launcher := NewCommandLauncher(zap.NewNop())

	connector, err := NewConnector(RunConfig{}, settings, launcher, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &transport.MCPConnector{}, connector)

	settings.Strategy = domain.StrategyIsolated
	connector, err = NewConnector(RunConfig{WorkerExecutable: "/bin/true"}, settings, launcher, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &isolation.WorkerConnector{}, connector)

	settings.Strategy = "threads"
	_, err = NewConnector(RunConfig{}, settings, launcher, zap.NewNop())
	require.ErrorIs(t, err, domain.ErrInvalidSettings)
}

func TestNewSettings_OverridesApplyAfterFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"mcpServers": {}, "discovery": {"retries": 5, "concurrency": 2}}`)

	settings, err := NewSettings(context.Background(), RunConfig{
		ConfigPath: path,
		Overrides: func(settings *domain.DiscoverySettings) {
			settings.MaxRetries = 1
		},
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, settings.MaxRetries)
	assert.Equal(t, 2, settings.Concurrency)
}

func TestConfigWatcher_ReportsEdits(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"mcpServers": {}}`)
	watcher := NewConfigWatcher(path, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watcher.Run(ctx, func(context.Context) { changes.Add(1) })
	}()

	require.Eventually(t, func() bool {
		assert.NoError(t, os.WriteFile(path, []byte(`{"mcpServers": {"a": {"command": "x", "args": []}}}`), 0o600))
		return changes.Load() > 0
	}, 5*time.Second, 300*time.Millisecond)

	time.Sleep(3 * defaultReloadDebounce)
	before := changes.Load()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600))
	time.Sleep(3 * defaultReloadDebounce)
	assert.Equal(t, before, changes.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestSupervisor_ReloadsOnConfigChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"mcpServers": {}}`)

	var mu sync.Mutex
	var results []discovery.Result
	supervisor := NewSupervisor(SupervisorOptions{
		Config:  runConfig(dir, path),
		Logging: LoggingConfig{Logger: zap.NewNop()},
		OnResult: func(result discovery.Result, err error) {
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		},
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(results)
	}

	assert.Equal(t, telemetry.HealthStatusPending, supervisor.Report().Status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()

	require.Eventually(t, func() bool { return count() == 1 }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return supervisor.Report().State == domain.RunDegraded
	}, 5*time.Second, 20*time.Millisecond)

	families, err := supervisor.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	require.Eventually(t, func() bool {
		assert.NoError(t, os.WriteFile(path, []byte(`{"mcpServers": {"filesystem": {"command": "definitely-not-installed", "args": []}}}`), 0o600))
		return count() >= 2
	}, 10*time.Second, 300*time.Millisecond)

	mu.Lock()
	last := results[len(results)-1]
	mu.Unlock()
	assert.Equal(t, domain.DegradedNoProviders, last.Reason)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
