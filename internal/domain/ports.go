package domain

import (
	"context"
	"time"
)

// Connector performs one bounded connect, list, disconnect sequence.
type Connector interface {
	Connect(ctx context.Context, spec ProviderSpec, timeout time.Duration) ([]ToolSchema, error)
}

// ConnectStrategy runs one pass of attempts. Results are indexed by the
// position of each spec in the input slice.
type ConnectStrategy interface {
	ConnectAll(ctx context.Context, specs []ProviderSpec, pass int) []ProviderResult
}

// CacheStore persists the aggregated tool cache.
type CacheStore interface {
	Persist(cache *ToolCache) error
	Load() (*ToolCache, error)
	Path() string
}

// RunHistory records finished discovery runs.
type RunHistory interface {
	Record(ctx context.Context, report RunReport) error
	List(ctx context.Context, limit int) ([]RunReport, error)
}

// Metrics observes discovery activity.
type Metrics interface {
	ObserveAttempt(provider string, category ProviderCategory, duration time.Duration, kind FailureKind)
	ObserveRun(state RunState, reason DegradedReason, duration time.Duration)
	ObserveRetry(pass int)
	SetDiscoveredTools(count int)
	SetDiscoveredProviders(count int)
}
