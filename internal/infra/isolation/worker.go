package isolation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/telemetry"
)

type WorkerOptions struct {
	SpecFile   string
	ResultFile string
	Timeout    time.Duration
	Connector  domain.Connector
	Logger     *zap.Logger
}

// RunWorker performs one attempt and commits its outcome to the result file.
// Connection failures are part of the result; only I/O problems are returned.
func RunWorker(ctx context.Context, opts WorkerOptions) error {
	if opts.SpecFile == "" || opts.ResultFile == "" {
		return errors.New("spec file and result file are required")
	}
	if opts.Connector == nil {
		return errors.New("connector is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	spec, err := readSpecFile(opts.SpecFile)
	if err != nil {
		return err
	}
	logger = logger.With(telemetry.ProviderField(spec.Name))

	started := time.Now()
	tools, connectErr := opts.Connector.Connect(ctx, spec, opts.Timeout)
	result := newWorkerResult(spec.Name, tools, connectErr)
	if connectErr != nil {
		logger.Debug("worker attempt failed", telemetry.DurationField(time.Since(started)), zap.Error(connectErr))
	} else {
		logger.Debug("worker attempt succeeded", telemetry.DurationField(time.Since(started)), zap.Int("tools", len(tools)))
	}

	if err := writeJSONFile(opts.ResultFile, result); err != nil {
		return fmt.Errorf("commit worker result: %w", err)
	}
	return nil
}
