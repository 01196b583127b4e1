//go:build darwin

package process

import (
	"os/exec"
	"syscall"
)

// Setup starts cmd in its own process group. The command must come from
// exec.CommandContext; cancelling that context kills the group.
func Setup(cmd *exec.Cmd) Cleanup {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process)
	}
	return func() {
		_ = killProcessGroup(cmd.Process)
	}
}
