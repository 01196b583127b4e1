//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// Setup starts cmd in its own process group that dies with the parent.
// The command must come from exec.CommandContext; cancelling that context
// kills the group.
func Setup(cmd *exec.Cmd) Cleanup {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process)
	}
	return func() {
		_ = killProcessGroup(cmd.Process)
	}
}
