package main

import (
	"time"

	"github.com/spf13/cobra"

	"mcpscout/internal/infra/isolation"
	"mcpscout/internal/infra/transport"
)

func newWorkerCmd(opts *cliOptions) *cobra.Command {
	var (
		specFile   string
		resultFile string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:    isolation.WorkerCommand,
		Short:  "Run one isolated connection attempt",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			connector := transport.NewMCPConnector(transport.MCPConnectorOptions{Logger: opts.logger})
			return isolation.RunWorker(ctx, isolation.WorkerOptions{
				SpecFile:   specFile,
				ResultFile: resultFile,
				Timeout:    timeout,
				Connector:  connector,
				Logger:     opts.logger,
			})
		},
	}
	cmd.Flags().StringVar(&specFile, "spec-file", "", "provider spec to attempt")
	cmd.Flags().StringVar(&resultFile, "result-file", "", "where to commit the outcome")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "attempt deadline")
	return cmd
}
