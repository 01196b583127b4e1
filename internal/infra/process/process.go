package process

import (
	"os/exec"
	"time"
)

// Cleanup kills whatever is left of a started process tree.
type Cleanup func()

// Interrupt asks the process group of a started cmd to exit. Where groups
// cannot be signalled it kills the process instead.
func Interrupt(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := interruptProcessGroup(cmd.Process); err != nil {
		return killProcessGroup(cmd.Process)
	}
	return nil
}

// Terminate asks the process group of a started cmd to exit and kills the
// group once grace has passed. exited must be closed after cmd.Wait returns.
func Terminate(cmd *exec.Cmd, exited <-chan struct{}, grace time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	select {
	case <-exited:
	default:
		if err := interruptProcessGroup(cmd.Process); err == nil && grace > 0 {
			timer := time.NewTimer(grace)
			select {
			case <-exited:
			case <-timer.C:
			}
			timer.Stop()
		}
	}
	_ = killProcessGroup(cmd.Process)
}
