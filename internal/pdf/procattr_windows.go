//go:build windows

package pdf

import (
	"os/exec"
	"syscall"
)

// detachConsole keeps pdftoppm from flashing a console window.
func detachConsole(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
