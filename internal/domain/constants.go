package domain

const (
	DefaultConfigPath              = "mcp_config.json"
	DefaultCachePath               = "mcp_tools_cache.json"
	DefaultConnectTimeoutSeconds   = 30
	DefaultMaxRetries              = 2
	DefaultBackoffBase             = 2
	DefaultBackoffUnitMillis       = 1000
	DefaultStrategy                = StrategyInProcess
	DefaultConcurrency             = 1
	DefaultIsolationGraceSeconds   = 5
	DefaultIsolationPollMillis     = 250
	DefaultUnknownCategoryPriority = 100
	DefaultHistoryLimit            = 20
	ClientName                     = "mcpscout"
	EnvConfigPath                  = "MCPSCOUT_CONFIG"
	EnvPrefix                      = "MCPSCOUT"
)

// DefaultSafeProviders returns the provider names allowed in safe mode.
func DefaultSafeProviders() []string {
	return []string{"filesystem", "server-memory"}
}

// DefaultPriorityTable returns the default scheduling table.
func DefaultPriorityTable() PriorityTable {
	return PriorityTable{
		High:   []string{"filesystem", "server-memory"},
		Medium: []string{"mcp-server-firecrawl", "duckduckgo-mcp-server", "server-github"},
		Categories: map[ProviderCategory]int{
			CategoryFilesystem:  1,
			CategoryMemory:      2,
			CategorySearch:      3,
			CategoryCodeHosting: 4,
			CategoryBrowser:     5,
			CategoryEmail:       6,
			CategoryCalendar:    7,
			CategoryTravel:      8,
			CategoryVoice:       9,
			CategoryOther:       10,
		},
		UnknownPriority: DefaultUnknownCategoryPriority,
	}
}
