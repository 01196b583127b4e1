//go:build linux || darwin

package isolation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/telemetry"
	"mcpscout/internal/infra/transport"
	"mcpscout/internal/infra/transport/providertest"
)

func newFakeWorkerConnector(t *testing.T, mode string, logger *zap.Logger) (*WorkerConnector, string) {
	t.Helper()
	return newFakeWorkerConnectorWithGrace(t, mode, 200*time.Millisecond, logger)
}

func newFakeWorkerConnectorWithGrace(t *testing.T, mode string, stopGrace time.Duration, logger *zap.Logger) (*WorkerConnector, string) {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	pidFile := filepath.Join(t.TempDir(), "worker.pid")
	connector, err := NewWorkerConnector(WorkerConnectorOptions{
		Executable:   exe,
		Env:          []string{fakeWorkerEnv + "=" + mode, fakePIDFileEnv + "=" + pidFile},
		Grace:        200 * time.Millisecond,
		StopGrace:    stopGrace,
		PollInterval: 20 * time.Millisecond,
		Logger:       logger,
	})
	require.NoError(t, err)
	return connector, pidFile
}

func workerGone(pidFile string) func() bool {
	return func() bool { return providertest.Gone(pidFile) }
}

func attemptDirs(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "mcpscout-attempt-*"))
	require.NoError(t, err)
	return matches
}

func TestWorkerConnector_ReturnsWorkerTools(t *testing.T) {
	connector, pidFile := newFakeWorkerConnector(t, "ok", nil)
	before := len(attemptDirs(t))

	tools, err := connector.Connect(context.Background(), domain.ProviderSpec{Name: "filesystem", Command: "npx"}, time.Second)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	require.Equal(t, "read_file", tools[0].Name)
	require.Equal(t, "list_directory", tools[1].Name)

	require.Eventually(t, workerGone(pidFile), 5*time.Second, 20*time.Millisecond)
	require.LessOrEqual(t, len(attemptDirs(t)), before)
}

func TestWorkerConnector_PropagatesFailureKind(t *testing.T) {
	connector, _ := newFakeWorkerConnector(t, "refused", nil)

	_, err := connector.Connect(context.Background(), domain.ProviderSpec{Name: "github", Command: "npx"}, time.Second)
	require.ErrorIs(t, err, domain.ErrRefused)
	require.Contains(t, err.Error(), "spawn npx: not found")
}

func TestWorkerConnector_KillsWorkerPastDeadline(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	connector, pidFile := newFakeWorkerConnector(t, "hang", zap.New(core))

	started := time.Now()
	_, err := connector.Connect(context.Background(), domain.ProviderSpec{Name: "slowtool", Command: "npx"}, 200*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrTimeout)
	require.Less(t, time.Since(started), 3*time.Second)

	require.Eventually(t, workerGone(pidFile), 5*time.Second, 20*time.Millisecond)
	require.Equal(t, 1, logs.FilterField(telemetry.EventField(telemetry.EventWorkerKilled)).Len())
}

func TestWorkerConnector_ExitWithoutResultIsRefused(t *testing.T) {
	connector, _ := newFakeWorkerConnector(t, "exit", nil)

	_, err := connector.Connect(context.Background(), domain.ProviderSpec{Name: "broken", Command: "npx"}, time.Second)
	require.ErrorIs(t, err, domain.ErrRefused)
	require.Contains(t, err.Error(), "without a result")
}

func TestWorkerConnector_UnreadableResultIsProtocol(t *testing.T) {
	connector, _ := newFakeWorkerConnector(t, "garbage", nil)

	_, err := connector.Connect(context.Background(), domain.ProviderSpec{Name: "noisy", Command: "npx"}, time.Second)
	require.ErrorIs(t, err, domain.ErrProtocol)
}

func TestWorkerConnector_CancelledRunKillsWorker(t *testing.T) {
	connector, pidFile := newFakeWorkerConnector(t, "hang", nil)
	registry := transport.NewSessionRegistry(nil)
	ctx, cancel := context.WithCancel(transport.WithRegistry(context.Background(), registry))

	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	_, err := connector.Connect(ctx, domain.ProviderSpec{Name: "slowtool", Command: "npx"}, 10*time.Second)
	require.ErrorIs(t, err, domain.ErrCancelled)
	require.NotErrorIs(t, err, domain.ErrTimeout)
	require.Zero(t, registry.Open())
	require.Eventually(t, workerGone(pidFile), 5*time.Second, 20*time.Millisecond)
}

func TestWorkerConnector_StopsWorkerIgnoringSigterm(t *testing.T) {
	stopGrace := 300 * time.Millisecond
	connector, pidFile := newFakeWorkerConnectorWithGrace(t, "stubborn", stopGrace, nil)

	started := time.Now()
	_, err := connector.Connect(context.Background(), domain.ProviderSpec{Name: "slowtool", Command: "npx"}, 200*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrTimeout)
	require.GreaterOrEqual(t, time.Since(started), 400*time.Millisecond+stopGrace)
	require.Less(t, time.Since(started), 5*time.Second)
	require.Eventually(t, workerGone(pidFile), 5*time.Second, 20*time.Millisecond)
}

func TestWorkerConnector_RealWorkerListsProviderTools(t *testing.T) {
	connector, workerPID := newFakeWorkerConnector(t, "mcp", nil)
	spec, providerPID := providertest.Spec(t, "filesystem", providertest.ModeOK)

	tools, err := connector.Connect(context.Background(), spec, 10*time.Second)
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, providertest.ToolNames, names)

	require.Eventually(t, workerGone(workerPID), 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, workerGone(providerPID), 5*time.Second, 20*time.Millisecond)
}

func TestWorkerConnector_RealWorkerHangingProviderTimesOut(t *testing.T) {
	connector, workerPID := newFakeWorkerConnector(t, "mcp", nil)
	spec, providerPID := providertest.Spec(t, "slowtool", providertest.ModeHang)

	started := time.Now()
	_, err := connector.Connect(context.Background(), spec, 500*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrTimeout)
	require.Less(t, time.Since(started), 5*time.Second)

	require.Eventually(t, workerGone(workerPID), 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, workerGone(providerPID), 5*time.Second, 20*time.Millisecond)
}

func TestWorkerConnector_CancelledRunStopsWorkerAndProvider(t *testing.T) {
	connector, workerPID := newFakeWorkerConnectorWithGrace(t, "mcp", 2*time.Second, nil)
	spec, providerPID := providertest.Spec(t, "slowtool", providertest.ModeHang)
	registry := transport.NewSessionRegistry(nil)
	ctx, cancel := context.WithCancel(transport.WithRegistry(context.Background(), registry))
	defer cancel()

	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if _, err := os.Stat(providerPID); err == nil {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		cancel()
	}()

	_, err := connector.Connect(ctx, spec, 30*time.Second)
	require.ErrorIs(t, err, domain.ErrCancelled)
	require.Zero(t, registry.Open())

	require.True(t, providertest.Gone(workerPID), "worker still running after Connect returned")
	require.Eventually(t, workerGone(providerPID), 5*time.Second, 20*time.Millisecond)
}
