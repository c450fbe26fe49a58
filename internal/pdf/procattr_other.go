//go:build !windows

package pdf

import "os/exec"

// detachConsole is a no-op outside Windows.
func detachConsole(*exec.Cmd) {}
