package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mcpscout/internal/domain"
)

type PrometheusMetrics struct {
	attempts            *prometheus.CounterVec
	attemptDuration     *prometheus.HistogramVec
	runs                *prometheus.CounterVec
	runDuration         prometheus.Histogram
	retries             *prometheus.CounterVec
	discoveredTools     prometheus.Gauge
	discoveredProviders prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpscout_connect_attempts_total",
				Help: "Total number of provider connection attempts",
			},
			[]string{"provider", "category", "result"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcpscout_connect_duration_seconds",
				Help:    "Duration of provider connect and list sequences in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "result"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpscout_runs_total",
				Help: "Total number of discovery runs by terminal state",
			},
			[]string{"state", "reason"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mcpscout_run_duration_seconds",
				Help:    "Duration of discovery runs in seconds",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpscout_retries_total",
				Help: "Total number of whole-run retries",
			},
			[]string{"pass"},
		),
		discoveredTools: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mcpscout_discovered_tools",
				Help: "Number of tools in the most recent aggregated cache",
			},
		),
		discoveredProviders: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mcpscout_discovered_providers",
				Help: "Number of providers in the most recent aggregated cache",
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveAttempt(provider string, category domain.ProviderCategory, duration time.Duration, kind domain.FailureKind) {
	result := "success"
	if kind != "" {
		result = string(kind)
	}
	p.attempts.WithLabelValues(provider, string(category), result).Inc()
	p.attemptDuration.WithLabelValues(provider, result).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveRun(state domain.RunState, reason domain.DegradedReason, duration time.Duration) {
	p.runs.WithLabelValues(string(state), string(reason)).Inc()
	p.runDuration.Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveRetry(pass int) {
	p.retries.WithLabelValues(strconv.Itoa(pass)).Inc()
}

func (p *PrometheusMetrics) SetDiscoveredTools(count int) {
	p.discoveredTools.Set(float64(count))
}

func (p *PrometheusMetrics) SetDiscoveredProviders(count int) {
	p.discoveredProviders.Set(float64(count))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
