package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/process"
	"mcpscout/internal/infra/telemetry"
)

const (
	defaultTerminateDuration = time.Second
	clientVersion            = "1.0.0"
)

// TransportFactory opens the transport for one attempt. The cleanup must
// release anything the transport started, even if Connect was never called.
type TransportFactory func(ctx context.Context, spec domain.ProviderSpec) (mcp.Transport, process.Cleanup, error)

type MCPConnectorOptions struct {
	Logger            *zap.Logger
	Launcher          *CommandLauncher
	TerminateDuration time.Duration
	ClientVersion     string
	// Transports overrides the stdio command transport.
	Transports TransportFactory
}

// MCPConnector runs connect, initialize, tools/list and disconnect against
// one provider within a deadline.
type MCPConnector struct {
	logger            *zap.Logger
	launcher          *CommandLauncher
	terminateDuration time.Duration
	clientVersion     string
	transports        TransportFactory
}

func NewMCPConnector(opts MCPConnectorOptions) *MCPConnector {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	launcher := opts.Launcher
	if launcher == nil {
		launcher = NewCommandLauncher(CommandLauncherOptions{Logger: logger})
	}
	terminate := opts.TerminateDuration
	if terminate <= 0 {
		terminate = defaultTerminateDuration
	}
	version := opts.ClientVersion
	if version == "" {
		version = clientVersion
	}
	c := &MCPConnector{
		logger:            logger.Named("connector"),
		launcher:          launcher,
		terminateDuration: terminate,
		clientVersion:     version,
		transports:        opts.Transports,
	}
	if c.transports == nil {
		c.transports = c.commandTransport
	}
	return c
}

func (c *MCPConnector) commandTransport(ctx context.Context, spec domain.ProviderSpec) (mcp.Transport, process.Cleanup, error) {
	cmd, cleanup, err := c.launcher.Prepare(ctx, spec)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CommandTransport{
		Command:           cmd,
		TerminateDuration: c.terminateDuration,
	}, cleanup, nil
}

// Connect returns the provider's tools. On every path the session is closed
// and the process group is gone before Connect returns.
func (c *MCPConnector) Connect(ctx context.Context, spec domain.ProviderSpec, timeout time.Duration) ([]domain.ToolSchema, error) {
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultConnectTimeoutSeconds) * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := c.logger.With(telemetry.ProviderField(spec.Name))
	logger = logger.With(telemetry.RunFields(ctx)...)

	transport, cleanup, err := c.transports(attemptCtx, spec)
	if err != nil {
		return nil, domain.NewConnectError(spec.Name, domain.FailureRefused, err)
	}
	if cleanup == nil {
		cleanup = func() {}
	}
	tracked := &trackedTransport{inner: transport}

	client := mcp.NewClient(&mcp.Implementation{Name: domain.ClientName, Version: c.clientVersion}, nil)
	session, err := client.Connect(attemptCtx, tracked, nil)
	if err != nil {
		cleanup()
		connectErr := classifyConnectError(attemptCtx, spec.Name, tracked, err, false)
		logger.Debug("provider handshake failed",
			telemetry.FailureKindField(connectErr.Kind),
			zap.Error(err),
		)
		return nil, connectErr
	}
	logger.Debug("provider session established", telemetry.StateField(string(domain.AttemptConnected)))

	handle := RegistryFromContext(ctx).Track(spec.Name, func(force bool) error {
		if force {
			cleanup()
		}
		closeErr := session.Close()
		cleanup()
		return closeErr
	})

	tools, skipped, err := listAllTools(attemptCtx, session, logger)
	if err != nil {
		_ = handle.Abort()
		connectErr := classifyConnectError(attemptCtx, spec.Name, tracked, err, true)
		logger.Debug("tool listing failed",
			telemetry.FailureKindField(connectErr.Kind),
			zap.Error(err),
		)
		return nil, connectErr
	}
	if closeErr := handle.Close(); closeErr != nil {
		logger.Debug("provider session close reported error", zap.Error(closeErr))
	}
	if skipped > 0 {
		logger.Warn("skipped malformed tool entries", zap.Int("skipped", skipped))
	}
	return tools, nil
}

// trackedTransport records whether the underlying transport got as far as
// starting the provider.
type trackedTransport struct {
	inner mcp.Transport

	mu       sync.Mutex
	started  bool
	startErr error
}

func (t *trackedTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.inner.Connect(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.startErr = err
		return nil, err
	}
	t.started = true
	return conn, nil
}

func (t *trackedTransport) state() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started, t.startErr
}

func classifyConnectError(attemptCtx context.Context, provider string, tracked *trackedTransport, err error, handshakeDone bool) *domain.ConnectError {
	if ctxErr := attemptCtx.Err(); ctxErr != nil {
		return domain.NewConnectError(provider, domain.ContextFailureKind(ctxErr), ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewConnectError(provider, domain.FailureTimeout, err)
	}
	started, startErr := tracked.state()
	if !started {
		cause := err
		if startErr != nil {
			cause = classifyStartError(startErr)
		}
		return domain.NewConnectError(provider, domain.FailureRefused, cause)
	}
	if !handshakeDone && isClosedConnection(err) {
		return domain.NewConnectError(provider, domain.FailureRefused, fmt.Errorf("provider exited before handshake: %w", err))
	}
	return domain.NewConnectError(provider, domain.FailureProtocol, err)
}

func isClosedConnection(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, mcp.ErrConnectionClosed)
}

func listAllTools(ctx context.Context, session *mcp.ClientSession, logger *zap.Logger) ([]domain.ToolSchema, int, error) {
	var (
		out     []domain.ToolSchema
		skipped int
		cursor  string
		seen    = make(map[string]struct{})
	)
	for {
		res, err := session.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, skipped, fmt.Errorf("list tools: %w", err)
		}
		tools, dropped := convertTools(res.Tools, logger)
		out = append(out, tools...)
		skipped += dropped
		if res.NextCursor == "" {
			return out, skipped, nil
		}
		if _, repeated := seen[res.NextCursor]; repeated {
			return nil, skipped, fmt.Errorf("list tools: cursor %q repeated", res.NextCursor)
		}
		seen[res.NextCursor] = struct{}{}
		cursor = res.NextCursor
	}
}

// convertTools drops entries without a usable name or schema individually.
func convertTools(tools []*mcp.Tool, logger *zap.Logger) ([]domain.ToolSchema, int) {
	out := make([]domain.ToolSchema, 0, len(tools))
	skipped := 0
	for idx, tool := range tools {
		if tool == nil || strings.TrimSpace(tool.Name) == "" {
			skipped++
			logger.Warn("tool entry without a name",
				telemetry.EventField(telemetry.EventToolSkipped),
				zap.Int("index", idx),
			)
			continue
		}
		params, err := schemaToMap(tool.InputSchema)
		if err != nil {
			skipped++
			logger.Warn("tool entry with malformed input schema",
				telemetry.EventField(telemetry.EventToolSkipped),
				zap.String("tool", tool.Name),
				zap.Error(err),
			)
			continue
		}
		out = append(out, domain.ToolSchema{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		})
	}
	return out, skipped
}

func schemaToMap(schema any) (map[string]any, error) {
	switch v := schema.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	if string(raw) == "null" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("input schema must be an object: %w", err)
	}
	return out, nil
}

var _ domain.Connector = (*MCPConnector)(nil)
