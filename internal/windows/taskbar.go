//go:build windows

package windows

import (
	"errors"
	"log/slog"
	"syscall"
	"unsafe"

	"github.com/Lattixe/MonkMode-windows/internal/logger"
)

// ErrTaskbarNotFound is returned when no taskbar window exists (e.g. explorer is not running).
var ErrTaskbarNotFound = errors.New("taskbar window not found")

// taskbarClasses are the primary and per-monitor taskbar window classes.
var taskbarClasses = []string{"Shell_TrayWnd", "Shell_SecondaryTrayWnd"}

// Taskbar implements interfaces.Taskbar by hiding every taskbar window.
type Taskbar struct {
	log logger.LoggerInterface
}

// NewTaskbar creates a taskbar controller
func NewTaskbar(log logger.LoggerInterface) *Taskbar {
	return &Taskbar{log: log}
}

// Hide hides the taskbar on every monitor
func (t *Taskbar) Hide() error {
	return t.showAll(SW_HIDE)
}

// Show shows the taskbar on every monitor
func (t *Taskbar) Show() error {
	return t.showAll(SW_SHOW)
}

func (t *Taskbar) showAll(cmd uintptr) error {
	handles := findTaskbars()
	if len(handles) == 0 {
		return ErrTaskbarNotFound
	}

	for _, hwnd := range handles {
		_, _, _ = procShowWindow.Call(hwnd, cmd)
	}

	t.log.Debug("Taskbar visibility changed", slog.Int("windows", len(handles)), slog.Bool("visible", cmd != SW_HIDE))
	return nil
}

func findTaskbars() []uintptr {
	var handles []uintptr

	for _, class := range taskbarClasses {
		classPtr, err := syscall.UTF16PtrFromString(class)
		if err != nil {
			continue
		}

		var after uintptr
		for {
			hwnd, _, _ := procFindWindowExW.Call(0, after, uintptr(unsafe.Pointer(classPtr)), 0)
			if hwnd == 0 {
				break
			}

			handles = append(handles, hwnd)
			after = hwnd
		}
	}

	return handles
}
