//go:build windows

package windows

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lattixe/MonkMode-windows/internal/logger"
)

// ErrInvalidWindow is returned for handles that no longer refer to a window.
var ErrInvalidWindow = errors.New("invalid window handle")

// windowManager performs the mutating window calls of a session
type windowManager struct {
	log logger.LoggerInterface
}

// newWindowManager creates a new window manager
func newWindowManager(log logger.LoggerInterface) *windowManager {
	return &windowManager{log: log}
}

func (w *windowManager) show(hwnd uintptr, cmd uintptr, op string) error {
	if !IsWindow(hwnd) {
		return fmt.Errorf("%s %#x: %w", op, hwnd, ErrInvalidWindow)
	}

	// ShowWindow returns the previous visibility, not success
	_, _, _ = procShowWindow.Call(hwnd, cmd)
	return nil
}

func (w *windowManager) setPos(hwnd, after uintptr, op string) error {
	if !IsWindow(hwnd) {
		return fmt.Errorf("%s %#x: %w", op, hwnd, ErrInvalidWindow)
	}

	ret, _, err := procSetWindowPos.Call(hwnd, after, 0, 0, 0, 0, SWP_NOMOVE|SWP_NOSIZE|SWP_NOACTIVATE)
	if ret == 0 {
		return fmt.Errorf("%s %#x: %w", op, hwnd, err)
	}

	return nil
}

// Minimize minimizes a window without activating the next one
func (w *windowManager) Minimize(hwnd uintptr) error {
	return w.show(hwnd, SW_SHOWMINNOACTIVE, "minimize")
}

// Restore un-minimizes a window
func (w *windowManager) Restore(hwnd uintptr) error {
	return w.show(hwnd, SW_RESTORE, "restore")
}

// RestoreInactive un-minimizes a window and leaves the foreground alone
func (w *windowManager) RestoreInactive(hwnd uintptr) error {
	return w.show(hwnd, SW_SHOWNOACTIVATE, "restore inactive")
}

// Show makes a hidden window visible without activating it
func (w *windowManager) Show(hwnd uintptr) error {
	return w.show(hwnd, SW_SHOWNOACTIVATE, "show")
}

// RaiseToTop moves a window to the top of the non-topmost z-order
func (w *windowManager) RaiseToTop(hwnd uintptr) error {
	return w.setPos(hwnd, HWND_TOP, "raise")
}

// SendToBottom moves a window to the bottom of the z-order
func (w *windowManager) SendToBottom(hwnd uintptr) error {
	return w.setPos(hwnd, HWND_BOTTOM, "lower")
}

// ClearTopmost drops the always-on-top flag of a window
func (w *windowManager) ClearTopmost(hwnd uintptr) error {
	if GetExStyle(hwnd)&WS_EX_TOPMOST == 0 {
		return nil
	}

	return w.setPos(hwnd, HWND_NOTOPMOST, "clear topmost")
}

// SetForeground brings a window to the foreground using AttachThreadInput technique
func (w *windowManager) SetForeground(hwnd uintptr) bool {
	if !IsWindow(hwnd) {
		return false
	}

	if IsIconic(hwnd) {
		_, _, _ = procShowWindow.Call(hwnd, SW_RESTORE)
	}

	// Try standard SetForegroundWindow first
	ret, _, _ := procSetForegroundWindow.Call(hwnd)
	if ret != 0 {
		return w.verifyForeground(hwnd)
	}

	w.log.Debug("Standard SetForegroundWindow failed, trying AttachThreadInput technique")

	fgHwnd, _, _ := procGetForegroundWindow.Call()
	if fgHwnd == 0 || fgHwnd == hwnd {
		return fgHwnd == hwnd
	}

	fgThreadID := GetWindowThreadID(fgHwnd)
	targetThreadID := GetWindowThreadID(hwnd)

	if fgThreadID == 0 || targetThreadID == 0 {
		w.log.Debug("Could not get thread IDs",
			slog.Uint64("fgThreadID", uint64(fgThreadID)),
			slog.Uint64("targetThreadID", uint64(targetThreadID)))
		return false
	}

	ret, _, _ = procAttachThreadInput.Call(targetThreadID, fgThreadID, 1)
	if ret == 0 {
		w.log.Debug("AttachThreadInput failed")
		return false
	}

	ret, _, _ = procSetForegroundWindow.Call(hwnd)
	success := ret != 0

	if ret, _, _ := procAttachThreadInput.Call(targetThreadID, fgThreadID, 0); ret == 0 {
		w.log.Debug("Failed to detach threads")
	}

	if success {
		return w.verifyForeground(hwnd)
	}

	w.log.Debug("SetForegroundWindow still failed after AttachThreadInput")
	return false
}

// verifyForeground checks if the window is now in foreground
func (w *windowManager) verifyForeground(hwnd uintptr) bool {
	fgHwnd, _, _ := procGetForegroundWindow.Call()
	if fgHwnd == hwnd {
		return true
	}

	w.log.Debug("Different window in foreground",
		slog.Uint64("expected", uint64(hwnd)),
		slog.Uint64("got", uint64(fgHwnd)))

	return false
}
