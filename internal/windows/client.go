//go:build windows

package windows

import (
	"github.com/Lattixe/MonkMode-windows/internal/logger"
)

// Client implements interfaces.WindowManager on top of user32.
// It composes the read side (queries) and the mutating window manager.
type Client struct {
	log logger.LoggerInterface
	*windowManager
}

// NewClient creates a new Windows API client
func NewClient(log logger.LoggerInterface) *Client {
	return &Client{
		log:           log,
		windowManager: newWindowManager(log),
	}
}

func (c *Client) ForegroundWindow() uintptr {
	ret, _, _ := procGetForegroundWindow.Call()
	return ret
}

func (c *Client) ShellWindow() uintptr {
	ret, _, _ := procGetShellWindow.Call()
	return ret
}

func (c *Client) DesktopWindow() uintptr {
	ret, _, _ := procGetDesktopWindow.Call()
	return ret
}

// HostWindow returns the console window of this process, or 0 when detached.
func (c *Client) HostWindow() uintptr {
	return GetConsoleWindow()
}

func (c *Client) IsWindow(hwnd uintptr) bool    { return IsWindow(hwnd) }
func (c *Client) IsVisible(hwnd uintptr) bool   { return IsWindowVisible(hwnd) }
func (c *Client) IsMinimized(hwnd uintptr) bool { return IsIconic(hwnd) }
func (c *Client) ClassName(hwnd uintptr) string { return GetClassName(hwnd) }
func (c *Client) ProcessID(hwnd uintptr) uint32 { return GetWindowPid(hwnd) }
func (c *Client) TopLevelWindows() []WindowInfo { return EnumerateWindows() }

func (c *Client) WindowRect(hwnd uintptr) (Rect, bool) {
	if !IsWindow(hwnd) {
		return Rect{}, false
	}

	return GetWindowRect(hwnd)
}
