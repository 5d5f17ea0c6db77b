//go:build windows

package encoder

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// hideWindow prevents a console window from being shown for the process.
func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}

// terminate terminates the process. Windows has no termination signal which
// can be delivered to a windowless console process.
func terminate(p *os.Process) error {
	return p.Kill()
}
