// Package interfaces defines core interfaces for dependency injection and testing.
package interfaces

import (
	"context"

	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

// WindowManager reads and manipulates top-level windows.
// Handles may die between calls; every method tolerates a stale handle.
type WindowManager interface {
	ForegroundWindow() uintptr
	ShellWindow() uintptr
	DesktopWindow() uintptr
	// HostWindow returns the window owned by this process (the console), or 0.
	HostWindow() uintptr

	IsWindow(hwnd uintptr) bool
	IsVisible(hwnd uintptr) bool
	IsMinimized(hwnd uintptr) bool
	WindowRect(hwnd uintptr) (windows.Rect, bool)
	ClassName(hwnd uintptr) string
	ProcessID(hwnd uintptr) uint32

	// TopLevelWindows returns every top-level window in z-order.
	TopLevelWindows() []windows.WindowInfo

	Minimize(hwnd uintptr) error
	Restore(hwnd uintptr) error
	// RestoreInactive un-minimizes and shows hwnd without activating it.
	RestoreInactive(hwnd uintptr) error
	Show(hwnd uintptr) error
	RaiseToTop(hwnd uintptr) error
	SendToBottom(hwnd uintptr) error
	ClearTopmost(hwnd uintptr) error
	SetForeground(hwnd uintptr) bool
}

// ProcessInfo is a running process as seen by a scan.
type ProcessInfo struct {
	Pid  uint32
	Name string
}

// ProcessManager lists and terminates processes.
type ProcessManager interface {
	Processes() ([]ProcessInfo, error)
	ProcessName(pid uint32) (string, error)
	Kill(pid uint32) error
}

// HostsFile reads and writes the system hosts file.
type HostsFile interface {
	Path() string
	Read() (string, error)
	Write(content string) error
	Backup(content string) error
}

// NotificationLevel is the do-not-disturb (Focus Assist) mode.
type NotificationLevel int

const (
	NotificationsOff NotificationLevel = iota
	NotificationsPriorityOnly
	NotificationsAlarmsOnly
)

func (l NotificationLevel) String() string {
	switch l {
	case NotificationsOff:
		return "off"
	case NotificationsPriorityOnly:
		return "priority-only"
	case NotificationsAlarmsOnly:
		return "alarms-only"
	default:
		return "unknown"
	}
}

// NotificationSettings reads and writes the Focus Assist level.
type NotificationSettings interface {
	Level() (NotificationLevel, error)
	SetLevel(level NotificationLevel) error
}

// Taskbar hides and shows the shell taskbar.
type Taskbar interface {
	Hide() error
	Show() error
}

// CommandRunner runs an external command to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// HotkeyBinder registers global hotkeys with the OS and reports triggers by id.
type HotkeyBinder interface {
	Bind(id int, hk windows.Hotkey) error
	Unbind(id int) error
	Triggers() <-chan int
	Close() error
}
