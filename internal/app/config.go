package app

import "mcpscout/internal/domain"

// RunConfig selects the config file and any command-line overrides layered
// over the file and environment settings.
type RunConfig struct {
	ConfigPath string
	Overrides  func(*domain.DiscoverySettings)
	// WorkerExecutable runs isolated attempts. Empty means the running binary.
	WorkerExecutable string
	// WorkerEnv is appended to the environment of isolated workers.
	WorkerEnv []string
}
