//go:build linux || darwin

package process

import (
	"os"
	"syscall"
)

func interruptProcessGroup(proc *os.Process) error {
	return signalProcessGroup(proc, syscall.SIGTERM)
}

func killProcessGroup(proc *os.Process) error {
	return signalProcessGroup(proc, syscall.SIGKILL)
}

func signalProcessGroup(proc *os.Process, sig syscall.Signal) error {
	if proc == nil {
		return nil
	}
	if err := syscall.Kill(-proc.Pid, sig); err != nil && err != syscall.ESRCH {
		return err
	}
	return nil
}
