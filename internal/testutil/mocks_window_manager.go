package testutil

import (
	"errors"
	"slices"
	"sync"

	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

// ErrNoWindow is returned by MockWindowManager for operations on destroyed handles.
var ErrNoWindow = errors.New("invalid window handle")

// FakeWindow is a simulated top-level window.
type FakeWindow struct {
	Hwnd       uintptr
	Title      string
	Pid        uint32
	Class      string
	Owner      uintptr
	Rect       windows.Rect
	Visible    bool
	Minimized  bool
	ToolWindow bool
	AppWindow  bool
	Topmost    bool
}

// MockWindowManager is an in-memory desktop implementing interfaces.WindowManager.
// It records every mutating call for verification.
type MockWindowManager struct {
	mu sync.Mutex

	windows    map[uintptr]*FakeWindow
	order      []uintptr // z-order, topmost first
	foreground uintptr
	shell      uintptr
	desktop    uintptr
	host       uintptr

	SetForegroundResult bool
	Errors              map[uintptr]error // Returned by mutating calls for that handle

	MinimizeCalls        []uintptr
	RestoreCalls         []uintptr
	RestoreInactiveCalls []uintptr
	ShowCalls            []uintptr
	RaiseCalls           []uintptr
	BottomCalls          []uintptr
	ClearTopmostCalls    []uintptr
	SetForegroundCalls   []uintptr
	HostWindowCalls      int
}

func NewMockWindowManager() *MockWindowManager {
	return &MockWindowManager{
		windows:             make(map[uintptr]*FakeWindow),
		order:               []uintptr{},
		SetForegroundResult: true,
		Errors:              make(map[uintptr]error),
	}
}

// Helper methods for fluent configuration
func (m *MockWindowManager) WithWindow(w FakeWindow) *MockWindowManager {
	m.mu.Lock()
	defer m.mu.Unlock()

	win := w
	m.windows[w.Hwnd] = &win
	m.order = append(m.order, w.Hwnd)
	return m
}

// WithAppWindow adds a visible, restored application window.
func (m *MockWindowManager) WithAppWindow(hwnd uintptr, title string, pid uint32) *MockWindowManager {
	return m.WithWindow(FakeWindow{
		Hwnd:    hwnd,
		Title:   title,
		Pid:     pid,
		Class:   "AppWindowClass",
		Visible: true,
		Rect:    windows.Rect{Left: 0, Top: 0, Right: 800, Bottom: 600},
	})
}

func (m *MockWindowManager) WithForeground(hwnd uintptr) *MockWindowManager {
	m.SetForegroundWindow(hwnd)
	return m
}

func (m *MockWindowManager) WithHost(hwnd uintptr) *MockWindowManager {
	m.host = hwnd
	return m
}

func (m *MockWindowManager) WithShell(hwnd uintptr) *MockWindowManager {
	m.shell = hwnd
	return m
}

func (m *MockWindowManager) WithDesktop(hwnd uintptr) *MockWindowManager {
	m.desktop = hwnd
	return m
}

func (m *MockWindowManager) WithError(hwnd uintptr, err error) *MockWindowManager {
	m.Errors[hwnd] = err
	return m
}

func (m *MockWindowManager) WithSetForegroundResult(result bool) *MockWindowManager {
	m.SetForegroundResult = result
	return m
}

// SetForegroundWindow simulates the user activating hwnd.
func (m *MockWindowManager) SetForegroundWindow(hwnd uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foreground = hwnd
}

// SetHost changes the host window handle returned by HostWindow.
func (m *MockWindowManager) SetHost(hwnd uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.host = hwnd
}

// Destroy removes a window, leaving its handle stale.
func (m *MockWindowManager) Destroy(hwnd uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.windows, hwnd)
	m.order = slices.DeleteFunc(m.order, func(h uintptr) bool { return h == hwnd })
}

// Update applies fn to the window, if it exists.
func (m *MockWindowManager) Update(hwnd uintptr, fn func(w *FakeWindow)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.windows[hwnd]; ok {
		fn(w)
	}
}

// Window returns a copy of the simulated window state.
func (m *MockWindowManager) Window(hwnd uintptr) (FakeWindow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[hwnd]
	if !ok {
		return FakeWindow{}, false
	}
	return *w, true
}

// ZOrder returns the live handles, topmost first.
func (m *MockWindowManager) ZOrder() []uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

func (m *MockWindowManager) ForegroundWindow() uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.foreground
}

func (m *MockWindowManager) ShellWindow() uintptr   { return m.shell }
func (m *MockWindowManager) DesktopWindow() uintptr { return m.desktop }

func (m *MockWindowManager) HostWindow() uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HostWindowCalls++
	return m.host
}

func (m *MockWindowManager) IsWindow(hwnd uintptr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.windows[hwnd]
	return ok
}

func (m *MockWindowManager) IsVisible(hwnd uintptr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[hwnd]
	return ok && w.Visible
}

func (m *MockWindowManager) IsMinimized(hwnd uintptr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[hwnd]
	return ok && w.Minimized
}

func (m *MockWindowManager) WindowRect(hwnd uintptr) (windows.Rect, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[hwnd]
	if !ok {
		return windows.Rect{}, false
	}
	return w.Rect, true
}

func (m *MockWindowManager) ClassName(hwnd uintptr) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[hwnd]; ok {
		return w.Class
	}
	return ""
}

func (m *MockWindowManager) ProcessID(hwnd uintptr) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[hwnd]; ok {
		return w.Pid
	}
	return 0
}

func (m *MockWindowManager) TopLevelWindows() []windows.WindowInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]windows.WindowInfo, 0, len(m.order))
	for _, h := range m.order {
		w := m.windows[h]
		infos = append(infos, windows.WindowInfo{
			Hwnd:       w.Hwnd,
			Title:      w.Title,
			Pid:        w.Pid,
			Class:      w.Class,
			Owner:      w.Owner,
			Visible:    w.Visible,
			ToolWindow: w.ToolWindow,
			AppWindow:  w.AppWindow,
		})
	}

	return infos
}

func (m *MockWindowManager) mutate(hwnd uintptr, calls *[]uintptr, fn func(w *FakeWindow)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	*calls = append(*calls, hwnd)

	if err := m.Errors[hwnd]; err != nil {
		return err
	}

	w, ok := m.windows[hwnd]
	if !ok {
		return ErrNoWindow
	}

	fn(w)
	return nil
}

func (m *MockWindowManager) Minimize(hwnd uintptr) error {
	return m.mutate(hwnd, &m.MinimizeCalls, func(w *FakeWindow) { w.Minimized = true })
}

func (m *MockWindowManager) Restore(hwnd uintptr) error {
	return m.mutate(hwnd, &m.RestoreCalls, func(w *FakeWindow) { w.Minimized = false })
}

func (m *MockWindowManager) RestoreInactive(hwnd uintptr) error {
	return m.mutate(hwnd, &m.RestoreInactiveCalls, func(w *FakeWindow) {
		w.Minimized = false
		w.Visible = true
	})
}

func (m *MockWindowManager) Show(hwnd uintptr) error {
	return m.mutate(hwnd, &m.ShowCalls, func(w *FakeWindow) { w.Visible = true })
}

func (m *MockWindowManager) ClearTopmost(hwnd uintptr) error {
	return m.mutate(hwnd, &m.ClearTopmostCalls, func(w *FakeWindow) { w.Topmost = false })
}

func (m *MockWindowManager) RaiseToTop(hwnd uintptr) error {
	return m.mutate(hwnd, &m.RaiseCalls, func(w *FakeWindow) {
		m.order = slices.DeleteFunc(m.order, func(h uintptr) bool { return h == hwnd })
		m.order = append([]uintptr{hwnd}, m.order...)
	})
}

func (m *MockWindowManager) SendToBottom(hwnd uintptr) error {
	return m.mutate(hwnd, &m.BottomCalls, func(w *FakeWindow) {
		m.order = slices.DeleteFunc(m.order, func(h uintptr) bool { return h == hwnd })
		m.order = append(m.order, hwnd)
	})
}

func (m *MockWindowManager) SetForeground(hwnd uintptr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetForegroundCalls = append(m.SetForegroundCalls, hwnd)

	if _, ok := m.windows[hwnd]; !ok || !m.SetForegroundResult {
		return false
	}

	m.foreground = hwnd
	return true
}
