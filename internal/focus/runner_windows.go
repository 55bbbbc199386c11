//go:build windows

package focus

import (
	"github.com/Lattixe/MonkMode-windows/internal/blocker"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/process"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

// NewRunner creates a Runner wired to the live desktop. hostsPath empty means
// the system hosts file; backups that cannot sit next to it go to backupDir.
func NewRunner(log logger.LoggerInterface, hostsPath, backupDir string, confirmer Confirmer) *Runner {
	if hostsPath == "" {
		hostsPath = blocker.DefaultHostsPath()
	}

	return NewRunnerWithDeps(log, &RunnerDependencies{
		Windows:       windows.NewClient(log),
		Processes:     process.NewManager(),
		Hosts:         blocker.NewHostsFile(hostsPath, backupDir),
		Notifications: windows.NewNotificationSettings(),
		Taskbar:       windows.NewTaskbar(log),
		Commands:      blocker.ExecRunner{},
		Hotkeys:       windows.NewHotkeyBinder(log),
		Confirmer:     confirmer,
		WatchHosts:    true,
	})
}
