package main

import (
	"github.com/spf13/cobra"

	"mcpscout/internal/domain"
)

func newShowCmd(opts *cliOptions) *cobra.Command {
	var cachePath string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the tools an agent would receive from the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := opts.initialize(cmd.Context(), cacheOverride(cmd, cachePath))
			if err != nil {
				return err
			}
			defer application.Close()
			return printCapabilities(cmd.OutOrStdout(), application.Capabilities(), opts.jsonOutput)
		},
	}
	cmd.Flags().StringVar(&cachePath, "cache", "", "tool cache path (overrides config)")
	return cmd
}

func cacheOverride(cmd *cobra.Command, cachePath string) func(*domain.DiscoverySettings) {
	return func(settings *domain.DiscoverySettings) {
		if cmd.Flags().Changed("cache") {
			settings.CachePath = cachePath
		}
	}
}
