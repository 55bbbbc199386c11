//go:build windows

package windows

import (
	"sync"
	"syscall"
	"unsafe"
)

// GetWindowText retrieves the title of a window
func GetWindowText(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if n == 0 {
		return ""
	}

	buf := make([]uint16, n+1)

	ret, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if ret == 0 {
		return ""
	}

	return syscall.UTF16ToString(buf)
}

// GetClassName retrieves the class name of a window
func GetClassName(hwnd uintptr) string {
	buf := make([]uint16, 256)

	ret, _, _ := procGetClassNameW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if ret == 0 {
		return ""
	}

	return syscall.UTF16ToString(buf)
}

// IsWindow checks if a window handle is valid
func IsWindow(hwnd uintptr) bool {
	if hwnd == 0 {
		return false
	}

	ret, _, _ := procIsWindow.Call(hwnd)
	return ret != 0
}

// IsWindowVisible checks if a window is visible
func IsWindowVisible(hwnd uintptr) bool {
	ret, _, _ := procIsWindowVisible.Call(hwnd)
	return ret != 0
}

// IsIconic checks if a window is minimized
func IsIconic(hwnd uintptr) bool {
	ret, _, _ := procIsIconic.Call(hwnd)
	return ret != 0
}

// GetWindowPid retrieves the process ID of a window
func GetWindowPid(hwnd uintptr) uint32 {
	var pid uint32

	ret, _, _ := procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if ret == 0 {
		return 0
	}

	return pid
}

// GetWindowThreadID retrieves the id of the thread that created a window
func GetWindowThreadID(hwnd uintptr) uintptr {
	tid, _, _ := procGetWindowThreadProcessId.Call(hwnd, 0)
	return tid
}

// GetExStyle retrieves the extended window style bits
func GetExStyle(hwnd uintptr) uint32 {
	ret, _, _ := procGetWindowLongW.Call(hwnd, GWL_EXSTYLE)
	return uint32(ret)
}

// GetOwner retrieves the owner window, or 0
func GetOwner(hwnd uintptr) uintptr {
	ret, _, _ := procGetWindow.Call(hwnd, GW_OWNER)
	return ret
}

// GetWindowRect retrieves the screen rectangle of a window
func GetWindowRect(hwnd uintptr) (Rect, bool) {
	var r Rect

	ret, _, _ := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r)))
	return r, ret != 0
}

// DescribeWindow collects the attributes the enumerator and claim pass need
func DescribeWindow(hwnd uintptr) WindowInfo {
	ex := GetExStyle(hwnd)

	return WindowInfo{
		Hwnd:       hwnd,
		Title:      GetWindowText(hwnd),
		Pid:        GetWindowPid(hwnd),
		Class:      GetClassName(hwnd),
		Owner:      GetOwner(hwnd),
		Visible:    IsWindowVisible(hwnd),
		ToolWindow: ex&WS_EX_TOOLWINDOW != 0,
		AppWindow:  ex&WS_EX_APPWINDOW != 0,
	}
}

var (
	foundHandles []uintptr
	windowsMu    sync.Mutex

	// Callbacks are a finite resource; create one for the process lifetime
	enumCallback = syscall.NewCallback(enumWindowsCallback)
)

func enumWindowsCallback(hwnd uintptr, _ uintptr) uintptr {
	foundHandles = append(foundHandles, hwnd)
	return 1 // Continue enumeration
}

// EnumerateWindows returns every top-level window in z-order, topmost first
func EnumerateWindows() []WindowInfo {
	windowsMu.Lock()
	foundHandles = nil
	ret, _, _ := procEnumWindows.Call(enumCallback, 0)
	handles := foundHandles
	foundHandles = nil
	windowsMu.Unlock()

	if ret == 0 {
		return nil
	}

	windows := make([]WindowInfo, 0, len(handles))
	for _, hwnd := range handles {
		windows = append(windows, DescribeWindow(hwnd))
	}

	return windows
}
