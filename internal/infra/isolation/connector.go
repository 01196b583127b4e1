package isolation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/process"
	"mcpscout/internal/infra/telemetry"
	"mcpscout/internal/infra/transport"
)

const (
	defaultGrace        = time.Duration(domain.DefaultIsolationGraceSeconds) * time.Second
	defaultPollInterval = time.Duration(domain.DefaultIsolationPollMillis) * time.Millisecond
	defaultStopGrace    = 2 * time.Second
)

type WorkerConnectorOptions struct {
	// Executable defaults to the running binary.
	Executable string
	Env        []string
	Grace      time.Duration
	// StopGrace is how long a worker asked to stop may take before its
	// process group is killed.
	StopGrace    time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger
}

// WorkerConnector runs each attempt in a separate worker process with a hard
// wall-clock deadline of timeout plus grace.
type WorkerConnector struct {
	executable   string
	env          []string
	grace        time.Duration
	stopGrace    time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewWorkerConnector(opts WorkerConnectorOptions) (*WorkerConnector, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	executable := opts.Executable
	if executable == "" {
		resolved, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve worker executable: %w", err)
		}
		executable = resolved
	}
	grace := opts.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	stopGrace := opts.StopGrace
	if stopGrace <= 0 {
		stopGrace = defaultStopGrace
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &WorkerConnector{
		executable:   executable,
		env:          opts.Env,
		grace:        grace,
		stopGrace:    stopGrace,
		pollInterval: poll,
		logger:       logger.Named("isolation"),
	}, nil
}

func (w *WorkerConnector) Connect(ctx context.Context, spec domain.ProviderSpec, timeout time.Duration) ([]domain.ToolSchema, error) {
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultConnectTimeoutSeconds) * time.Second
	}
	logger := w.logger.With(telemetry.ProviderField(spec.Name))
	logger = logger.With(telemetry.RunFields(ctx)...)

	dir, err := os.MkdirTemp("", "mcpscout-attempt-*")
	if err != nil {
		return nil, domain.NewConnectError(spec.Name, domain.FailureRefused, fmt.Errorf("create attempt directory: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Debug("attempt directory cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}()

	specPath := filepath.Join(dir, specFileName)
	resultPath := filepath.Join(dir, resultFileName)
	if err := writeJSONFile(specPath, spec); err != nil {
		return nil, domain.NewConnectError(spec.Name, domain.FailureRefused, err)
	}

	cmd := exec.CommandContext(ctx, w.executable,
		WorkerCommand,
		"--spec-file", specPath,
		"--result-file", resultPath,
		"--timeout", timeout.String(),
	)
	cmd.Env = append(os.Environ(), w.env...)
	stderr := &zapio.Writer{
		Log:   logger.With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceWorker)),
		Level: zap.DebugLevel,
	}
	cmd.Stderr = stderr
	killGroup := process.Setup(cmd)
	// The worker tears its provider down on SIGTERM; its provider runs in a
	// separate group that a kill of the worker group would not reach.
	cmd.Cancel = func() error {
		return process.Interrupt(cmd)
	}
	cmd.WaitDelay = w.stopGrace

	if err := cmd.Start(); err != nil {
		killGroup()
		_ = stderr.Close()
		return nil, domain.NewConnectError(spec.Name, domain.FailureRefused, fmt.Errorf("start worker: %w", err))
	}

	exited := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		_ = stderr.Close()
		close(exited)
	}()
	handle := transport.RegistryFromContext(ctx).Track(spec.Name, func(bool) error {
		process.Terminate(cmd, exited, w.stopGrace)
		return nil
	})
	defer func() {
		_ = handle.Close()
		select {
		case <-exited:
		case <-time.After(w.stopGrace):
			logger.Warn("worker did not exit after kill")
		}
	}()

	exitErr := func() error {
		<-exited
		return waitErr
	}
	return w.await(ctx, spec, timeout, resultPath, exited, exitErr, logger)
}

func (w *WorkerConnector) await(ctx context.Context, spec domain.ProviderSpec, timeout time.Duration, resultPath string, exited <-chan struct{}, exitErr func() error, logger *zap.Logger) ([]domain.ToolSchema, error) {
	deadline := time.NewTimer(timeout + w.grace)
	defer deadline.Stop()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	collect := func() ([]domain.ToolSchema, bool, error) {
		result, ok, err := readResultFile(resultPath)
		if err != nil {
			return nil, true, domain.NewConnectError(spec.Name, domain.FailureProtocol, err)
		}
		if !ok {
			return nil, false, nil
		}
		tools, err := result.outcome(spec.Name)
		return tools, true, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, domain.NewConnectError(spec.Name, domain.ContextFailureKind(ctx.Err()), ctx.Err())
		case <-exited:
			if tools, done, err := collect(); done {
				return tools, err
			}
			return nil, domain.NewConnectError(spec.Name, domain.FailureRefused, fmt.Errorf("worker exited without a result: %w", exitCause(exitErr())))
		case <-ticker.C:
			if tools, done, err := collect(); done {
				return tools, err
			}
		case <-deadline.C:
			logger.Warn("worker exceeded deadline; stopping it",
				telemetry.EventField(telemetry.EventWorkerKilled),
				telemetry.DurationField(timeout+w.grace),
			)
			return nil, domain.NewConnectError(spec.Name, domain.FailureTimeout,
				fmt.Errorf("worker exceeded %s: %w", timeout+w.grace, context.DeadlineExceeded))
		}
	}
}

func exitCause(err error) error {
	if err == nil {
		return errors.New("exit status 0")
	}
	return err
}

var _ domain.Connector = (*WorkerConnector)(nil)
