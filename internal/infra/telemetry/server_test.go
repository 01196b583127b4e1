package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mcpscout/internal/domain"
)

func serveStatus(t *testing.T, opts StatusServerOptions) string {
	t.Helper()
	opts.Addr = "127.0.0.1:0"
	server, err := ListenStatusServer(opts, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("status server did not stop")
		}
	})
	return "http://" + server.Addr()
}

func getHealth(t *testing.T, url string) (int, HealthReport) {
	t.Helper()
	resp, err := http.Get(url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var report HealthReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	return resp.StatusCode, report
}

func TestStatusServer_ServesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewPrometheusMetrics(registry).SetDiscoveredTools(4)
	url := serveStatus(t, StatusServerOptions{Metrics: registry})

	resp, err := http.Get(url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mcpscout_discovered_tools 4")

	health, err := http.Get(url + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusNotFound, health.StatusCode)
}

func TestStatusServer_HealthFollowsLatestRun(t *testing.T) {
	tracker := NewHealthTracker()
	url := serveStatus(t, StatusServerOptions{Health: tracker})

	code, report := getHealth(t, url)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, HealthStatusPending, report.Status)

	tracker.Observe(domain.RunReport{ID: "run-1", State: domain.RunSuccess, ToolCount: 3, FinishedAt: time.Now()})
	code, report = getHealth(t, url)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 3, report.ToolCount)

	tracker.Observe(domain.RunReport{
		ID:             "run-2",
		State:          domain.RunDegraded,
		DegradedReason: domain.DegradedNoProviders,
		FinishedAt:     time.Now(),
	})
	code, report = getHealth(t, url)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, HealthStatusDegraded, report.Status)
	assert.Equal(t, domain.DegradedNoProviders, report.DegradedReason)
}

func TestStatusServer_RejectsWrites(t *testing.T) {
	url := serveStatus(t, StatusServerOptions{Health: NewHealthTracker()})

	resp, err := http.Post(url+"/healthz", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestListenStatusServer_NothingEnabled(t *testing.T) {
	server, err := ListenStatusServer(StatusServerOptions{}, nil)
	require.NoError(t, err)
	require.Nil(t, server)
}

func TestListenStatusServer_AddressInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	_, err = ListenStatusServer(StatusServerOptions{Addr: busy.Addr().String(), Health: NewHealthTracker()}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), busy.Addr().String())
}
