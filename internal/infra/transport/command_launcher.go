package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/process"
	"mcpscout/internal/infra/telemetry"
)

const defaultWaitDelay = 2 * time.Second

type CommandLauncher struct {
	logger    *zap.Logger
	waitDelay time.Duration
}

type CommandLauncherOptions struct {
	Logger    *zap.Logger
	WaitDelay time.Duration
}

func NewCommandLauncher(opts CommandLauncherOptions) *CommandLauncher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	waitDelay := opts.WaitDelay
	if waitDelay <= 0 {
		waitDelay = defaultWaitDelay
	}
	return &CommandLauncher{
		logger:    logger,
		waitDelay: waitDelay,
	}
}

// Prepare builds an unstarted command for spec in its own process group.
// Cancelling ctx kills the group. The returned cleanup kills the group and
// stops stderr mirroring; it is safe to call more than once.
func (l *CommandLauncher) Prepare(ctx context.Context, spec domain.ProviderSpec) (*exec.Cmd, process.Cleanup, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, nil, fmt.Errorf("%w: command is required for provider %s", domain.ErrInvalidCommand, spec.Name)
	}

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Env = append(os.Environ(), formatEnv(spec.Env)...)
	cmd.WaitDelay = l.waitDelay
	groupCleanup := process.Setup(cmd)

	downstreamLogger := l.logger.With(
		zap.String(telemetry.FieldLogSource, telemetry.LogSourceDownstream),
		telemetry.ProviderField(spec.Name),
		zap.String(telemetry.FieldLogStream, "stderr"),
	)
	stderrReader, stderrWriter := io.Pipe()
	cmd.Stderr = stderrWriter
	go mirrorStderr(stderrReader, downstreamLogger)

	l.logger.Debug("provider command prepared",
		telemetry.ProviderField(spec.Name),
		zap.String("executable", spec.Command),
		zap.Int("argCount", len(spec.Args)),
		zap.Strings("envKeys", sortedKeys(spec.Env)),
	)

	cleanup := func() {
		groupCleanup()
		_ = stderrWriter.Close()
	}
	return cmd, cleanup, nil
}

const maxStderrLineLength = 32 * 1024 // 32KB per line

func mirrorStderr(reader io.Reader, logger *zap.Logger) {
	buf := bufio.NewReaderSize(reader, 8192)
	for {
		line, isPrefix, err := buf.ReadLine()
		if len(line) > 0 {
			trimmed := strings.TrimRight(string(line), "\r\n")
			if trimmed != "" {
				if len(trimmed) > maxStderrLineLength {
					trimmed = trimmed[:maxStderrLineLength] + "... [truncated]"
				}
				logger.Debug(trimmed)
			}
			// Discard the rest of an oversized line.
			for isPrefix && err == nil {
				_, isPrefix, err = buf.ReadLine()
			}
		}
		if err != nil {
			return
		}
	}
}

func formatEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := sortedKeys(env)
	out := make([]string, 0, len(env))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}

func sortedKeys(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func classifyStartError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrExecutableNotFound, err.Error())
	}
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, err.Error())
	}
	return err
}
