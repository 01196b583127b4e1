package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcpscout/internal/app"
	"mcpscout/internal/app/discovery"
	"mcpscout/internal/infra/telemetry"
)

type watchFlags struct {
	discoveryFlags
	listenAddr    string
	enableMetrics bool
	enableHealthz bool
}

func newWatchCmd(opts *cliOptions) *cobra.Command {
	flags := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "watch [providers...]",
		Short: "Re-run prepare whenever the provider config changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			supervisor := app.NewSupervisor(app.SupervisorOptions{
				Config:  opts.runConfig(flags.overrides(cmd.Flags())),
				Logging: app.LoggingConfig{Logger: opts.logger},
				Request: flags.request(args),
				OnResult: func(result discovery.Result, err error) {
					if err != nil {
						opts.logger.Warn("discovery run failed", zap.Error(err))
						return
					}
					_ = printPrepareResult(out, result, opts.jsonOutput)
				},
			})

			statusOpts := telemetry.StatusServerOptions{Addr: flags.listenAddr}
			if flags.enableMetrics {
				statusOpts.Metrics = supervisor.Gatherer()
			}
			if flags.enableHealthz {
				statusOpts.Health = supervisor
			}
			status, err := telemetry.ListenStatusServer(statusOpts, opts.logger)
			if err != nil {
				return exitWithMessage(exitUsage, err.Error())
			}
			serverErr := make(chan error, 1)
			if status == nil {
				serverErr <- nil
			} else {
				go func() {
					serverErr <- status.Serve(ctx)
				}()
			}

			runErr := supervisor.Run(ctx)
			cancel()
			err = errors.Join(runErr, <-serverErr)
			if err != nil && !errors.Is(err, context.Canceled) {
				return exitWithMessage(exitUsage, err.Error())
			}
			return nil
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().StringVar(&flags.listenAddr, "listen", telemetry.DefaultStatusAddr, "address for /metrics and /healthz")
	cmd.Flags().BoolVar(&flags.enableMetrics, "metrics", false, "serve Prometheus metrics")
	cmd.Flags().BoolVar(&flags.enableHealthz, "healthz", false, "serve the latest run outcome on /healthz")
	return cmd
}
