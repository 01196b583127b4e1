//go:build linux || darwin

package providertest

import (
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Gone reports whether the process that wrote pidFile has exited and been
// reaped. A missing pid file means the process has not started yet.
func Gone(pidFile string) bool {
	raw, err := os.ReadFile(pidFile)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return false
	}
	return syscall.Kill(pid, 0) == syscall.ESRCH
}
