// Package tracker follows the bounds of the foreground application window so an
// overlay can stay aligned with it.
package tracker

import (
	"log/slog"
	"time"

	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/loop"
	"github.com/Lattixe/MonkMode-windows/internal/process"
	"github.com/Lattixe/MonkMode-windows/internal/timeouts"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

// Kind distinguishes tracker events.
type Kind string

const (
	BoundsChanged Kind = "bounds-changed"
	NoValidWindow Kind = "no-valid-window"
)

// Event reports the foreground window geometry.
type Event struct {
	Kind  Kind         `json:"kind"`
	Hwnd  uintptr      `json:"hwnd,omitempty"`
	Rect  windows.Rect `json:"rect"`
	Class string       `json:"class,omitempty"`
	Pid   uint32       `json:"pid,omitempty"`
	// ProcessName is normalized like enumerator descriptors ("code", not "Code.exe").
	ProcessName string `json:"process_name,omitempty"`
}

// Scheduler runs repeating callbacks; *loop.Loop implements it.
type Scheduler interface {
	Every(name string, interval time.Duration, fn func()) *loop.Timer
}

// Tracker polls the foreground window and emits at most one event per tick.
type Tracker struct {
	log   logger.LoggerInterface
	win   interfaces.WindowManager
	procs interfaces.ProcessManager
	sched Scheduler
	emit  func(Event)

	timer    *loop.Timer
	own      uintptr
	lastHwnd uintptr
	lastRect windows.Rect
	invalid  bool
}

// New creates an idle tracker. procs resolves the process name of each
// window; it may be nil.
func New(log logger.LoggerInterface, win interfaces.WindowManager, procs interfaces.ProcessManager, sched Scheduler, emit func(Event)) *Tracker {
	return &Tracker{log: log, win: win, procs: procs, sched: sched, emit: emit}
}

// Start begins polling. ownWindow is ignored when it has focus.
// Calling Start while tracking only updates ownWindow.
func (t *Tracker) Start(ownWindow uintptr) {
	t.own = ownWindow

	if t.Tracking() {
		return
	}

	t.lastHwnd = 0
	t.lastRect = windows.Rect{}
	t.invalid = false
	t.timer = t.sched.Every("geometry", timeouts.GeometryPollInterval, t.Tick)

	t.log.Debug("Geometry tracker started", slog.Uint64("own", uint64(ownWindow)))
}

// Stop ends polling. No event is emitted after Stop returns.
func (t *Tracker) Stop() {
	if !t.Tracking() {
		return
	}

	t.timer.Stop()
	t.timer = nil
	t.log.Debug("Geometry tracker stopped")
}

// Tracking reports whether the tracker is polling.
func (t *Tracker) Tracking() bool {
	return t.timer != nil && !t.timer.Stopped()
}

// IsValidApplicationWindow reports whether hwnd is a visible, restored,
// non-shell application window.
func IsValidApplicationWindow(win interfaces.WindowManager, hwnd uintptr) bool {
	if hwnd == 0 || !win.IsWindow(hwnd) || !win.IsVisible(hwnd) || win.IsMinimized(hwnd) {
		return false
	}

	if hwnd == win.ShellWindow() || hwnd == win.DesktopWindow() {
		return false
	}

	return !enumerator.IsSystemClass(win.ClassName(hwnd))
}

// Tick samples the foreground window once.
func (t *Tracker) Tick() {
	fg := t.win.ForegroundWindow()
	if fg == 0 || fg == t.own {
		return
	}

	if !IsValidApplicationWindow(t.win, fg) {
		t.lose()
		return
	}

	rect, ok := t.win.WindowRect(fg)
	if !ok {
		t.lose()
		return
	}

	if !t.invalid && fg == t.lastHwnd && rect == t.lastRect {
		return
	}

	t.lastHwnd = fg
	t.lastRect = rect
	t.invalid = false

	pid := t.win.ProcessID(fg)

	t.emit(Event{
		Kind:        BoundsChanged,
		Hwnd:        fg,
		Rect:        rect,
		Class:       t.win.ClassName(fg),
		Pid:         pid,
		ProcessName: t.processName(pid),
	})
}

func (t *Tracker) processName(pid uint32) string {
	if t.procs == nil || pid == 0 {
		return ""
	}

	name, err := t.procs.ProcessName(pid)
	if err != nil {
		t.log.Trace("Process name unavailable", slog.Uint64("pid", uint64(pid)), slog.Any("error", err))
		return ""
	}

	return process.NormalizeName(name)
}

// lose reports the transition into "no valid window" once and forgets the
// last window so that refocusing it emits its bounds again.
func (t *Tracker) lose() {
	t.lastHwnd = 0
	t.lastRect = windows.Rect{}

	if t.invalid {
		return
	}

	t.invalid = true
	t.emit(Event{Kind: NoValidWindow})
}
