package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"mcpscout/internal/app"
	"mcpscout/internal/domain"
	"mcpscout/internal/infra/telemetry"
)

type cliOptions struct {
	configPath   string
	logLevel     string
	logFormat    string
	jsonOutput   bool
	otlpEndpoint string
	otlpInsecure bool
	logger       *zap.Logger
	shutdown     func(context.Context) error
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		logLevel:  "info",
		logFormat: "console",
		logger:    zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           domain.ClientName,
		Short:         "Discover MCP provider tools ahead of time and cache them for agents",
		Version:       app.Version + " (" + app.Build + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			applyRootFlagBindings(cmd, &opts)
			return opts.setup(cmd.Context())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			opts.teardown()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to provider config file (default $MCPSCOUT_CONFIG or mcp_config.json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", opts.logFormat, "log format (console, json)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")
	root.PersistentFlags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP collector host:port for run traces (optional)")
	root.PersistentFlags().BoolVar(&opts.otlpInsecure, "otlp-insecure", false, "export traces without TLS")

	root.AddCommand(
		newPrepareCmd(&opts),
		newShowCmd(&opts),
		newVerifyCmd(&opts),
		newScheduleCmd(&opts),
		newHistoryCmd(&opts),
		newWatchCmd(&opts),
		newWorkerCmd(&opts),
	)

	return root
}

func applyRootFlagBindings(cmd *cobra.Command, opts *cliOptions) {
	flags := cmd.Flags()
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "config":
			opts.configPath, _ = flags.GetString("config")
		case "log-level":
			opts.logLevel, _ = flags.GetString("log-level")
		case "log-format":
			opts.logFormat, _ = flags.GetString("log-format")
		case "json":
			opts.jsonOutput, _ = flags.GetBool("json")
		case "otlp-endpoint":
			opts.otlpEndpoint, _ = flags.GetString("otlp-endpoint")
		case "otlp-insecure":
			opts.otlpInsecure, _ = flags.GetBool("otlp-insecure")
		}
	})
}

func (o *cliOptions) setup(ctx context.Context) error {
	logger, err := telemetry.NewLogger(telemetry.LoggerOptions{Level: o.logLevel, Format: o.logFormat})
	if err != nil {
		return exitWithMessage(exitUsage, err.Error())
	}
	o.logger = logger

	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.SetupTracing(ctx, telemetry.TracingOptions{
		Endpoint: o.otlpEndpoint,
		Insecure: o.otlpInsecure,
	})
	if err != nil {
		return exitWithMessage(exitUsage, err.Error())
	}
	o.shutdown = shutdown
	return nil
}

func (o *cliOptions) teardown() {
	if o.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.shutdown(ctx); err != nil {
			o.logger.Warn("trace flush failed", zap.Error(err))
		}
		cancel()
	}
	_ = o.logger.Sync()
}

func (o *cliOptions) runConfig(overrides func(*domain.DiscoverySettings)) app.RunConfig {
	return app.RunConfig{
		ConfigPath: o.configPath,
		Overrides:  overrides,
	}
}

func (o *cliOptions) initialize(ctx context.Context, overrides func(*domain.DiscoverySettings)) (*app.Application, error) {
	application, err := app.InitializeApplication(ctx, o.runConfig(overrides), app.LoggingConfig{Logger: o.logger})
	if err != nil {
		return nil, exitWithMessage(exitUsage, err.Error())
	}
	return application, nil
}
