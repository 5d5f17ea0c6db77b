//go:build !windows

package encoder

import (
	"os"
	"os/exec"
	"syscall"
)

// hideWindow is a no-op on platforms without process windows.
func hideWindow(*exec.Cmd) {}

// terminate asks the process to exit gracefully.
func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
