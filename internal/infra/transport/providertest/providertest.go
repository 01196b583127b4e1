// Package providertest turns a test binary into a stdio MCP provider so
// tests can launch real provider processes.
package providertest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mcpscout/internal/domain"
)

const (
	ModeEnv    = "MCPSCOUT_FAKE_PROVIDER"
	PIDFileEnv = "MCPSCOUT_FAKE_PID_FILE"
)

// Modes understood by Run.
const (
	ModeOK    = "ok"
	ModeHang  = "hang"
	ModeCrash = "crash"
)

// ToolNames are the tools served in ModeOK.
var ToolNames = []string{"read_file", "write_file"}

// Main runs the provider selected by ModeEnv. It reports false when the
// binary was not started as a provider. Call it first thing in TestMain.
func Main() (int, bool) {
	mode := os.Getenv(ModeEnv)
	if mode == "" {
		return 0, false
	}
	return Run(mode), true
}

// Run serves one provider mode over stdio and returns the exit code.
func Run(mode string) int {
	if path := os.Getenv(PIDFileEnv); path != "" {
		_ = os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
	}
	switch mode {
	case ModeOK:
		server := mcp.NewServer(&mcp.Implementation{Name: "fake", Version: "0.0.1"}, nil)
		for _, name := range ToolNames {
			server.AddTool(&mcp.Tool{
				Name:        name,
				Description: name + " description",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path": map[string]any{"type": "string"},
					},
				},
			}, func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return &mcp.CallToolResult{}, nil
			})
		}
		if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
			return 1
		}
		return 0
	case ModeHang:
		time.Sleep(time.Hour)
		return 0
	case ModeCrash:
		reader := bufio.NewReader(os.Stdin)
		_, _ = reader.ReadString('\n')
		fmt.Fprintln(os.Stderr, "fatal: provider misconfigured")
		return 1
	default:
		return 2
	}
}

// Spec returns a provider that re-executes the running test binary in mode,
// and the file where the provider records its pid.
func Spec(t testing.TB, name, mode string) (domain.ProviderSpec, string) {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test binary: %v", err)
	}
	pidFile := filepath.Join(t.TempDir(), name+".pid")
	return domain.ProviderSpec{
		Name:    name,
		Command: exe,
		Args:    []string{"-test.run=^$"},
		Env: map[string]string{
			ModeEnv:    mode,
			PIDFileEnv: pidFile,
		},
	}, pidFile
}
