//go:build windows

package cmd

import (
	"os"

	"github.com/Lattixe/MonkMode-windows/internal/blocker"
	"github.com/Lattixe/MonkMode-windows/internal/config"
	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
	"github.com/Lattixe/MonkMode-windows/internal/focus"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/process"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

// ensureElevated checks for admin privileges and relaunches if needed
func ensureElevated(log logger.LoggerInterface) error {
	return ensureElevatedWithDeps(log, windows.IsElevated, windows.RelaunchAsAdmin, os.Exit)
}

func isElevated() bool {
	return windows.IsElevated()
}

func newRunner(log logger.LoggerInterface, app *config.Config, confirmer focus.Confirmer) (*focus.Runner, error) {
	return focus.NewRunner(log, app.Block.HostsPath, app.Log.Dir, confirmer), nil
}

func newEnumerator(log logger.LoggerInterface) (*enumerator.Enumerator, error) {
	return enumerator.New(log, windows.NewClient(log), process.NewManager()), nil
}

// newRecoveryBlocker builds a blocker for emergency cleanup only; it is never
// started, so it needs no scheduler.
func newRecoveryBlocker(log logger.LoggerInterface, app *config.Config) (*blocker.Blocker, error) {
	path := app.Block.HostsPath
	if path == "" {
		path = blocker.DefaultHostsPath()
	}

	return blocker.New(log, blocker.Dependencies{
		Hosts:         blocker.NewHostsFile(path, app.Log.Dir),
		Processes:     process.NewManager(),
		Notifications: windows.NewNotificationSettings(),
		Taskbar:       windows.NewTaskbar(log),
		Commands:      blocker.ExecRunner{},
		SelfPid:       uint32(os.Getpid()),
	}), nil
}

// installConsoleHandler routes console control events to handle.
func installConsoleHandler(handle func(ctrlType uint32) bool) error {
	return windows.SetConsoleCtrlHandler(func(ctrlType uint32) uintptr {
		if handle(ctrlType) {
			return 1
		}
		return 0
	})
}
