package telemetry

import (
	"time"

	"mcpscout/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveAttempt(_ string, _ domain.ProviderCategory, _ time.Duration, _ domain.FailureKind) {
}

func (n *NoopMetrics) ObserveRun(_ domain.RunState, _ domain.DegradedReason, _ time.Duration) {}

func (n *NoopMetrics) ObserveRetry(_ int) {}

func (n *NoopMetrics) SetDiscoveredTools(_ int) {}

func (n *NoopMetrics) SetDiscoveredProviders(_ int) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
