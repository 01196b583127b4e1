//go:build !linux && !darwin

package process

import (
	"errors"
	"os"
	"os/exec"
)

var errNoProcessGroups = errors.New("process groups are not supported")

// Setup kills only the direct child on platforms without process groups.
func Setup(cmd *exec.Cmd) Cleanup {
	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process)
	}
	return func() {
		_ = killProcessGroup(cmd.Process)
	}
}

func interruptProcessGroup(*os.Process) error {
	return errNoProcessGroups
}

func killProcessGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
