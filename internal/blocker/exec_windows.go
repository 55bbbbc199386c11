//go:build windows

package blocker

import (
	"os/exec"
	"syscall"
)

// hideConsole keeps ipconfig from flashing a console window when monkmode
// runs without one (elevated relaunch).
func hideConsole(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
