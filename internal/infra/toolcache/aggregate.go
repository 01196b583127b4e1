package toolcache

import "mcpscout/internal/domain"

// Aggregate builds a cache from one pass of results in scheduled order.
// Failed providers and providers that listed no tools are omitted.
func Aggregate(results []domain.ProviderResult) *domain.ToolCache {
	cache := domain.NewToolCache()
	for _, result := range results {
		if result.Err != nil || len(result.Tools) == 0 {
			continue
		}
		cache.Set(result.Provider, result.Tools)
	}
	return cache
}
