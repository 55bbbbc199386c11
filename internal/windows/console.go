//go:build windows

package windows

import (
	"sync"
	"syscall"
)

// ConsoleCtrlHandler is a callback function for console control events.
// Returning 1 marks the event handled.
type ConsoleCtrlHandler func(ctrlType uint32) uintptr

var (
	handlerMu     sync.RWMutex
	globalHandler ConsoleCtrlHandler
	handlerOnce   sync.Once
	handlerErr    error
)

// SetConsoleCtrlHandler sets up a Windows console control handler
// This catches Ctrl+C, window close, logoff, and shutdown events
func SetConsoleCtrlHandler(handler ConsoleCtrlHandler) error {
	handlerMu.Lock()
	globalHandler = handler
	handlerMu.Unlock()

	handlerOnce.Do(func() {
		ret, _, err := procSetConsoleCtrlHandler.Call(
			syscall.NewCallback(consoleCtrlHandlerCallback),
			1, // TRUE - add handler
		)
		if ret == 0 {
			handlerErr = err
		}
	})

	return handlerErr
}

// consoleCtrlHandlerCallback is the actual callback that Windows calls
// on a thread of its own.
func consoleCtrlHandlerCallback(ctrlType uint32) uintptr {
	handlerMu.RLock()
	h := globalHandler
	handlerMu.RUnlock()

	if h != nil {
		return h(ctrlType)
	}

	return 0 // FALSE - let default handler process it
}

// GetConsoleWindow returns the console window of this process, or 0.
func GetConsoleWindow() uintptr {
	ret, _, _ := procGetConsoleWindow.Call()
	return ret
}
