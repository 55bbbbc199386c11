// Package enforcer keeps the desktop confined to the allowed windows of a focus
// session by polling the foreground window and minimizing intruders.
package enforcer

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
	"github.com/Lattixe/MonkMode-windows/internal/events"
	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/loop"
	"github.com/Lattixe/MonkMode-windows/internal/process"
	"github.com/Lattixe/MonkMode-windows/internal/timeouts"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

// ErrAlreadyStarted is returned by Start while the enforcer is running.
var ErrAlreadyStarted = errors.New("enforcer already started")

// Phase is the lifecycle state of the enforcer.
type Phase int

const (
	Stopped Phase = iota
	Claiming
	Enforcing
)

func (p Phase) String() string {
	switch p {
	case Stopped:
		return "stopped"
	case Claiming:
		return "claiming"
	case Enforcing:
		return "enforcing"
	default:
		return "unknown"
	}
}

// StateKind classifies the foreground window on a tick.
type StateKind int

const (
	None StateKind = iota
	Self
	Allowed
	Intruder
	System
)

func (k StateKind) String() string {
	return [...]string{"none", "self", "allowed", "intruder", "system"}[k]
}

// State is the classification of the foreground window at the last tick.
type State struct {
	Kind StateKind
	Hwnd uintptr
}

// Scheduler runs callbacks on the session loop; *loop.Loop implements it.
type Scheduler interface {
	Every(name string, interval time.Duration, fn func()) *loop.Timer
	After(name string, d time.Duration, fn func()) *loop.Timer
	When(name string, ready <-chan struct{}, d time.Duration, fn func()) *loop.Timer
}

// Options tune how the claim pass is scheduled.
type Options struct {
	// Ready, when closed, triggers the claim pass before SettleDelay elapses.
	Ready <-chan struct{}
	// SettleDelay is the fallback delay before the claim pass.
	SettleDelay time.Duration
	// HostRetryDelay is the delay before retrying a missing host window.
	HostRetryDelay time.Duration
}

// Dependencies holds the collaborators of an Enforcer
type Dependencies struct {
	Windows   interfaces.WindowManager
	Processes interfaces.ProcessManager
	Scheduler Scheduler
	Events    events.Publisher
}

// Enforcer runs the claim pass and the periodic foreground classification.
// All methods must be called from the session loop.
type Enforcer struct {
	log  logger.LoggerInterface
	deps Dependencies

	phase     Phase
	allow     *AllowSet
	self      uintptr
	intruder  uintptr
	state     State
	restoring bool

	retryTimer *loop.Timer
	claimTimer *loop.Timer
	tickTimer  *loop.Timer
}

// New creates a stopped enforcer.
func New(log logger.LoggerInterface, deps Dependencies) *Enforcer {
	return &Enforcer{log: log, deps: deps, allow: NewAllowSet()}
}

// Phase returns the current lifecycle phase.
func (e *Enforcer) Phase() Phase { return e.phase }

// State returns the classification computed by the last tick.
func (e *Enforcer) State() State { return e.state }

// TrackedIntruder returns the intruder awaiting suppression, or 0.
func (e *Enforcer) TrackedIntruder() uintptr { return e.intruder }

// SelfWindow returns the host window handle in use.
func (e *Enforcer) SelfWindow() uintptr { return e.self }

// AllowSet returns the live allow-set.
func (e *Enforcer) AllowSet() *AllowSet { return e.allow }

// Start claims the screen for allow and begins enforcing. The claim pass runs
// once opts.Ready is closed or opts.SettleDelay elapses.
func (e *Enforcer) Start(allow *AllowSet, opts Options) error {
	if e.phase != Stopped {
		return ErrAlreadyStarted
	}

	if opts.SettleDelay <= 0 {
		opts.SettleDelay = timeouts.ClaimSettleDelay
	}

	if opts.HostRetryDelay <= 0 {
		opts.HostRetryDelay = timeouts.HostRetryDelay
	}

	if allow == nil {
		allow = NewAllowSet()
	}

	e.allow = allow
	e.intruder = 0
	e.state = State{}
	e.phase = Claiming

	e.log.Info("Starting enforcement", slog.Int("allowed", allow.Len()))

	e.self = e.deps.Windows.HostWindow()
	if e.self != 0 {
		e.scheduleClaim(opts)
		return nil
	}

	e.log.Debug("Host window not ready, retrying", slog.Duration("delay", opts.HostRetryDelay))
	e.retryTimer = e.deps.Scheduler.After("host-retry", opts.HostRetryDelay, func() {
		e.self = e.deps.Windows.HostWindow()
		if e.self == 0 {
			e.log.Warn("Host window still unavailable, continuing without it")
		}

		e.scheduleClaim(opts)
	})

	return nil
}

func (e *Enforcer) scheduleClaim(opts Options) {
	if e.phase != Claiming {
		return
	}

	e.claimTimer = e.deps.Scheduler.When("claim", opts.Ready, opts.SettleDelay, func() {
		if e.phase != Claiming {
			return
		}

		e.Claim()
		e.phase = Enforcing
		e.tickTimer = e.deps.Scheduler.Every("enforce", timeouts.EnforcePollInterval, e.Tick)
	})
}

// Stop cancels all timers. Windows minimized during the session stay minimized.
func (e *Enforcer) Stop() {
	if e.phase == Stopped {
		return
	}

	e.retryTimer.Stop()
	e.claimTimer.Stop()
	e.tickTimer.Stop()
	e.retryTimer, e.claimTimer, e.tickTimer = nil, nil, nil

	e.phase = Stopped
	e.intruder = 0
	e.log.Info("Enforcement stopped")
}

// Claim minimizes every other application window, pushes the host window to
// the bottom and brings the allowed windows forward.
func (e *Enforcer) Claim() {
	win := e.deps.Windows
	minimized := 0

	for _, w := range win.TopLevelWindows() {
		if !e.claimable(w) {
			continue
		}

		if err := win.Minimize(w.Hwnd); err != nil {
			e.log.Debug("Could not minimize window",
				slog.Uint64("hwnd", uint64(w.Hwnd)),
				slog.Any("error", err),
			)
			continue
		}

		minimized++
	}

	if e.self != 0 {
		if err := win.SendToBottom(e.self); err != nil {
			e.log.Debug("Could not lower host window", slog.Any("error", err))
		}
	}

	var first uintptr
	for _, hwnd := range e.allow.Handles() {
		if !win.IsWindow(hwnd) {
			e.log.Debug("Allowed window no longer exists", slog.Uint64("hwnd", uint64(hwnd)))
			continue
		}

		e.bringForward(hwnd, true)

		if first == 0 {
			first = hwnd
		}
	}

	if first != 0 && !win.SetForeground(first) {
		e.log.Debug("Could not focus first allowed window", slog.Uint64("hwnd", uint64(first)))
	}

	e.log.Info("Screen claimed", slog.Int("minimized", minimized))
}

// claimable reports whether the claim pass should minimize w.
func (e *Enforcer) claimable(w windows.WindowInfo) bool {
	if !w.Visible || w.Owner != 0 || (w.ToolWindow && !w.AppWindow) {
		return false
	}

	if w.Hwnd == e.self || e.allow.Contains(w.Hwnd) || enumerator.IsSystemClass(w.Class) {
		return false
	}

	win := e.deps.Windows
	if w.Hwnd == win.ShellWindow() || w.Hwnd == win.DesktopWindow() {
		return false
	}

	return !win.IsMinimized(w.Hwnd)
}

// bringForward restores, shows and raises hwnd. Unless activate is set the
// restore leaves the foreground window where it is.
func (e *Enforcer) bringForward(hwnd uintptr, activate bool) {
	win := e.deps.Windows

	restore := win.RestoreInactive
	if activate {
		restore = win.Restore
	}

	if win.IsMinimized(hwnd) {
		if err := restore(hwnd); err != nil {
			e.log.Debug("Could not restore window", slog.Uint64("hwnd", uint64(hwnd)), slog.Any("error", err))
		}
	}

	if !win.IsVisible(hwnd) {
		if err := win.Show(hwnd); err != nil {
			e.log.Debug("Could not show window", slog.Uint64("hwnd", uint64(hwnd)), slog.Any("error", err))
		}
	}

	if err := win.RaiseToTop(hwnd); err != nil {
		e.log.Debug("Could not raise window", slog.Uint64("hwnd", uint64(hwnd)), slog.Any("error", err))
	}
}

// Tick classifies the foreground window. An intruder is only recorded here and
// minimized on the next tick that finds focus back on an allowed window.
func (e *Enforcer) Tick() {
	win := e.deps.Windows

	fg := win.ForegroundWindow()
	if fg == 0 {
		e.state = State{Kind: None}
		return
	}

	if enumerator.IsSystemClass(win.ClassName(fg)) {
		e.state = State{Kind: System, Hwnd: fg}
		return
	}

	if fg == e.self || e.allow.Contains(fg) {
		kind := Allowed
		if fg == e.self {
			kind = Self
		}

		e.state = State{Kind: kind, Hwnd: fg}
		e.suppressIntruder()
		return
	}

	e.state = State{Kind: Intruder, Hwnd: fg}

	if win.IsVisible(fg) && !win.IsMinimized(fg) {
		if e.intruder != fg {
			e.log.Debug("Intruder focused", slog.Uint64("hwnd", uint64(fg)))
		}

		e.intruder = fg
	}
}

func (e *Enforcer) suppressIntruder() {
	hwnd := e.intruder
	if hwnd == 0 {
		return
	}

	e.intruder = 0

	win := e.deps.Windows
	if !win.IsWindow(hwnd) || !win.IsVisible(hwnd) {
		return
	}

	if err := win.Minimize(hwnd); err != nil {
		e.log.Debug("Could not minimize intruder", slog.Uint64("hwnd", uint64(hwnd)), slog.Any("error", err))
		return
	}

	name := e.processName(win.ProcessID(hwnd))
	e.log.Info("Minimized distracting window", slog.String("process", name))

	if e.deps.Events != nil {
		e.deps.Events.Publish(events.Event{
			Type: events.Intervention,
			Payload: events.InterventionPayload{
				Kind:   events.WindowSuppressed,
				Target: name,
				Pid:    win.ProcessID(hwnd),
			},
		})
	}
}

func (e *Enforcer) processName(pid uint32) string {
	if e.deps.Processes == nil || pid == 0 {
		return "unknown"
	}

	name, err := e.deps.Processes.ProcessName(pid)
	if err != nil {
		return "unknown"
	}

	return process.NormalizeName(name)
}

// RestoreAllowed brings every allowed window back without stealing focus.
// It is a no-op when all of them are already visible and restored, and when
// called re-entrantly.
func (e *Enforcer) RestoreAllowed() {
	if e.restoring {
		return
	}

	e.restoring = true
	defer func() { e.restoring = false }()

	win := e.deps.Windows

	var live []uintptr
	needed := false

	for _, hwnd := range e.allow.Handles() {
		if !win.IsWindow(hwnd) {
			continue
		}

		live = append(live, hwnd)
		if !win.IsVisible(hwnd) || win.IsMinimized(hwnd) {
			needed = true
		}
	}

	if !needed {
		return
	}

	if e.self != 0 {
		if err := win.ClearTopmost(e.self); err != nil {
			e.log.Debug("Could not demote host window", slog.Any("error", err))
		}
	}

	for _, hwnd := range live {
		e.bringForward(hwnd, false)
	}

	e.log.Debug("Restored allowed windows", slog.Int("count", len(live)))
}

// AddAllowed extends the allow-set mid-session and brings the window forward.
func (e *Enforcer) AddAllowed(d enumerator.Descriptor) bool {
	if !e.allow.Add(d) {
		return false
	}

	if e.intruder == d.Hwnd {
		e.intruder = 0
	}

	e.log.Info("Window allowed", slog.String("title", d.Title), slog.String("process", d.ProcessName))
	e.RestoreAllowed()
	return true
}
