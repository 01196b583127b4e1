package capability

import (
	"errors"

	"go.uber.org/zap"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/hashutil"
	"mcpscout/internal/infra/telemetry"
)

// Set is what a consumer receives: the tools to expose and a description
// of what they enable.
type Set struct {
	Tools    []domain.ToolSchema `json:"tools"`
	Summary  string              `json:"summary"`
	Degraded bool                `json:"degraded"`
	// Collisions lists tool names shadowed by a later provider.
	Collisions []domain.ToolCollision `json:"collisions,omitempty"`
	// Fingerprint identifies the exposed tool list across runs.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Fallback returns the built-in set.
func Fallback() Set {
	tools := FallbackTools()
	return Set{
		Tools:       tools,
		Summary:     Summary(toolNames(tools)),
		Degraded:    true,
		Fingerprint: hashutil.ToolSetFingerprint(nil, tools),
	}
}

// FromCache flattens a discovered cache. An empty cache yields the fallback set.
func FromCache(cache *domain.ToolCache) Set {
	if cache == nil || cache.IsEmpty() {
		return Fallback()
	}
	tools := cache.Flatten()
	return Set{
		Tools:       tools,
		Summary:     Summary(toolNames(tools)),
		Collisions:  cache.Collisions(),
		Fingerprint: hashutil.ToolSetFingerprint(nil, tools),
	}
}

// Load reads the persisted cache for a consumer. It never fails: a missing
// or unreadable cache is logged and answered with the fallback set.
func Load(store domain.CacheStore, logger *zap.Logger) Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := store.Load()
	if err != nil {
		level := logger.Warn
		if errors.Is(err, domain.ErrCacheUnavailable) {
			level = logger.Info
		}
		level("tool cache unavailable; using built-in tools",
			telemetry.EventField(telemetry.EventFallbackEngaged),
			zap.String("path", store.Path()),
			zap.Error(err),
		)
		return Fallback()
	}
	if cache.IsEmpty() {
		logger.Info("tool cache is empty; using built-in tools",
			telemetry.EventField(telemetry.EventFallbackEngaged),
			zap.String("path", store.Path()),
		)
	}
	return FromCache(cache)
}

func toolNames(tools []domain.ToolSchema) []string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}
