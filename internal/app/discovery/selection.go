package discovery

import (
	"go.uber.org/zap"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/scheduler"
)

// Selection is the outcome of Init→Scheduling: which configured providers a
// run will attempt and in what order.
type Selection struct {
	Requested []string `json:"requested,omitempty"`
	Unknown   []string `json:"unknown,omitempty"`
	// SafeDefaults is set when safe mode found no safe name in the request
	// and substituted the safe list.
	SafeDefaults bool                  `json:"safeDefaults,omitempty"`
	Plan         []scheduler.Placement `json:"plan"`
}

// Names returns the scheduled provider names.
func (s Selection) Names() []string {
	names := make([]string, 0, len(s.Plan))
	for _, placement := range s.Plan {
		names = append(names, placement.Name)
	}
	return names
}

// Select intersects the request with the configured providers, applies safe
// mode and schedules the survivors.
func Select(providers domain.ProviderSet, settings domain.DiscoverySettings, req Request, logger *zap.Logger) Selection {
	if logger == nil {
		logger = zap.NewNop()
	}
	sel := Selection{Requested: append([]string(nil), req.Providers...)}

	candidates := providers.Names()
	if len(req.Providers) > 0 {
		candidates = candidates[:0:0]
		for _, name := range dedupe(req.Providers) {
			if _, ok := providers.Get(name); !ok {
				sel.Unknown = append(sel.Unknown, name)
				logger.Warn("requested provider is not configured; skipping", zap.String("provider", name))
				continue
			}
			candidates = append(candidates, name)
		}
	}

	if req.SafeMode {
		safe := make(map[string]struct{}, len(settings.SafeProviders))
		for _, name := range settings.SafeProviders {
			safe[name] = struct{}{}
		}
		filtered := make([]string, 0, len(candidates))
		for _, name := range candidates {
			if _, ok := safe[name]; ok {
				filtered = append(filtered, name)
			}
		}
		if len(filtered) == 0 {
			sel.SafeDefaults = true
			for _, name := range settings.SafeProviders {
				if _, ok := providers.Get(name); ok {
					filtered = append(filtered, name)
				}
			}
			logger.Info("no requested provider is safe; using safe defaults", zap.Strings("providers", filtered))
		}
		candidates = filtered
	}

	sel.Plan = scheduler.New(settings.Priority).Plan(candidates)
	return sel
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
