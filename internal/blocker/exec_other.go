//go:build !windows

package blocker

import "os/exec"

func hideConsole(*exec.Cmd) {}
