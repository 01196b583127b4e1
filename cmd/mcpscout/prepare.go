package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcpscout/internal/app/discovery"
	"mcpscout/internal/domain"
	"mcpscout/internal/infra/fsutil"
	"mcpscout/internal/infra/telemetry"
)

type prepareFlags struct {
	discoveryFlags
	summaryOut string
	metricsOut string
}

func newPrepareCmd(opts *cliOptions) *cobra.Command {
	flags := &prepareFlags{}
	cmd := &cobra.Command{
		Use:   "prepare [providers...]",
		Short: "Connect to providers, list their tools and write the tool cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application, err := opts.initialize(ctx, flags.overrides(cmd.Flags()))
			if err != nil {
				return err
			}
			defer application.Close()

			result, runErr := application.Prepare(ctx, flags.request(args))
			if err := flags.writeArtifacts(result, application.Registry()); err != nil {
				opts.logger.Warn("artifact write failed", zap.Error(err))
			}
			if runErr != nil {
				switch {
				case errors.Is(runErr, domain.ErrRunExhausted):
					return exitWithMessage(exitExhausted, runErr.Error())
				case errors.Is(runErr, context.Canceled):
					return exitWithMessage(exitInterrupted, runErr.Error())
				}
				return exitWithMessage(exitUsage, runErr.Error())
			}
			return printPrepareResult(cmd.OutOrStdout(), result, opts.jsonOutput)
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().StringVar(&flags.summaryOut, "summary-out", "", "write the capability summary to this file")
	cmd.Flags().StringVar(&flags.metricsOut, "metrics-out", "", "write run metrics in Prometheus text format to this file")
	return cmd
}

func (f *prepareFlags) writeArtifacts(result discovery.Result, registry prometheus.Gatherer) error {
	var errs []error
	if f.summaryOut != "" && result.Capabilities.Summary != "" {
		if err := fsutil.WriteFileAtomic(f.summaryOut, []byte(result.Capabilities.Summary+"\n"), 0o644); err != nil {
			errs = append(errs, err)
		}
	}
	if f.metricsOut != "" {
		if err := telemetry.WriteMetricsFile(f.metricsOut, registry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
