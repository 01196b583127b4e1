package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/telemetry"
)

type scriptedConnector struct {
	delay    time.Duration
	failures map[string]error

	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (c *scriptedConnector) Connect(ctx context.Context, spec domain.ProviderSpec, _ time.Duration) ([]domain.ToolSchema, error) {
	current := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if current <= peak || c.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	c.mu.Lock()
	c.seen = append(c.seen, spec.Name)
	c.mu.Unlock()

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := c.failures[spec.Name]; ok {
		return nil, err
	}
	return []domain.ToolSchema{{Name: spec.Name + "_tool", Parameters: map[string]any{}}}, nil
}

func specsNamed(names ...string) []domain.ProviderSpec {
	out := make([]domain.ProviderSpec, 0, len(names))
	for _, name := range names {
		out = append(out, domain.ProviderSpec{Name: name, Command: "npx"})
	}
	return out
}

func TestPooledStrategy_SequentialKeepsScheduledOrder(t *testing.T) {
	connector := &scriptedConnector{}
	strategy := NewPooledStrategy(connector, PooledStrategyOptions{Concurrency: 1})

	results := strategy.ConnectAll(context.Background(), specsNamed("filesystem", "server-memory", "mcp-server-firecrawl"), 0)

	require.Equal(t, []string{"filesystem", "server-memory", "mcp-server-firecrawl"}, connector.seen)
	require.Len(t, results, 3)
	for i, name := range []string{"filesystem", "server-memory", "mcp-server-firecrawl"} {
		require.Equal(t, name, results[i].Provider)
		require.True(t, results[i].Outcome.Succeeded())
		require.Equal(t, 1, results[i].Outcome.ToolCount)
	}
	require.EqualValues(t, 1, connector.peak.Load())
}

func TestPooledStrategy_ConcurrentResultsIndexedBySpec(t *testing.T) {
	connector := &scriptedConnector{delay: 100 * time.Millisecond}
	strategy := NewPooledStrategy(connector, PooledStrategyOptions{Concurrency: 3})

	names := []string{"a", "b", "c", "d", "e", "f"}
	results := strategy.ConnectAll(context.Background(), specsNamed(names...), 1)

	require.Len(t, results, len(names))
	for i, name := range names {
		require.Equal(t, name, results[i].Provider)
		require.Equal(t, 1, results[i].Outcome.Pass)
	}
	require.Greater(t, connector.peak.Load(), int32(1))
	require.LessOrEqual(t, connector.peak.Load(), int32(3))
}

func TestPooledStrategy_ClassifiesFailures(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)
	connector := &scriptedConnector{failures: map[string]error{
		"slowtool": domain.NewConnectError("slowtool", domain.FailureTimeout, context.DeadlineExceeded),
		"weird":    errors.New("unexpected frame"),
		"stopped":  domain.NewConnectError("stopped", domain.FailureCancelled, context.Canceled),
	}}
	strategy := NewPooledStrategy(connector, PooledStrategyOptions{Metrics: metrics})

	results := strategy.ConnectAll(context.Background(), specsNamed("slowtool", "weird", "filesystem", "stopped"), 0)

	require.Equal(t, domain.AttemptTimedOut, results[0].Outcome.State)
	require.Equal(t, domain.FailureTimeout, results[0].Outcome.FailureKind)
	require.ErrorIs(t, results[0].Err, domain.ErrTimeout)

	require.Equal(t, domain.AttemptFailed, results[1].Outcome.State)
	require.Equal(t, domain.FailureProtocol, results[1].Outcome.FailureKind)
	require.ErrorIs(t, results[1].Err, domain.ErrProtocol)

	require.NoError(t, results[2].Err)
	require.Equal(t, domain.AttemptConnected, results[2].Outcome.State)
	require.Equal(t, domain.CategoryFilesystem, results[2].Outcome.Category)

	require.Equal(t, domain.AttemptFailed, results[3].Outcome.State)
	require.Equal(t, domain.FailureCancelled, results[3].Outcome.FailureKind)
	require.NotErrorIs(t, results[3].Err, domain.ErrTimeout)

	count, err := testutil.GatherAndCount(registry, "mcpscout_connect_attempts_total")
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestPooledStrategy_RecordsConnectSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	strategy := NewPooledStrategy(&scriptedConnector{}, PooledStrategyOptions{})
	strategy.ConnectAll(context.Background(), specsNamed("filesystem", "server-github"), 0)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	for _, span := range spans {
		require.Equal(t, telemetry.SpanConnect, span.Name)
	}
}
