package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mcpscout/internal/infra/toolcache"
)

func newVerifyCmd(opts *cliOptions) *cobra.Command {
	var cachePath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the tool cache exists and holds at least one tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := opts.initialize(cmd.Context(), cacheOverride(cmd, cachePath))
			if err != nil {
				return err
			}
			defer application.Close()

			path := application.CachePath()
			cache, err := toolcache.NewFileStore(path, opts.logger).Load()
			if err != nil {
				return exitWithMessage(exitNoCache, err.Error())
			}
			if cache.ToolCount() == 0 {
				return exitWithMessage(exitNoCache, fmt.Sprintf("tool cache %s holds no tools", path))
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, map[string]any{
					"path":      path,
					"providers": cache.Providers(),
					"tools":     cache.ToolCount(),
				})
			}
			fmt.Fprintf(out, "%s %s providers=%d tools=%d\n",
				color.GreenString("ok"),
				path,
				len(cache.Providers()),
				cache.ToolCount(),
			)
			for _, provider := range cache.Providers() {
				tools, _ := cache.Tools(provider)
				fmt.Fprintf(out, "  %-24s %d\n", provider, len(tools))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cachePath, "cache", "", "tool cache path (overrides config)")
	return cmd
}
