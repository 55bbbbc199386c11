// Package focus runs a focus session: it starts the enforcement loop, the
// system blocker, the geometry tracker and the session timer on one
// cooperative loop and reverts everything when the session ends.
package focus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lattixe/MonkMode-windows/internal/blocker"
	"github.com/Lattixe/MonkMode-windows/internal/enforcer"
	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
	"github.com/Lattixe/MonkMode-windows/internal/events"
	"github.com/Lattixe/MonkMode-windows/internal/hotkey"
	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/loop"
	"github.com/Lattixe/MonkMode-windows/internal/session"
	"github.com/Lattixe/MonkMode-windows/internal/timeouts"
	"github.com/Lattixe/MonkMode-windows/internal/tracker"
)

var (
	// ErrAlreadyStarted is returned by a second call to Run; a Runner runs one session.
	ErrAlreadyStarted = errors.New("focus session already started")
	// ErrNoSession is returned by session operations before Run.
	ErrNoSession = errors.New("no focus session running")
	// ErrWindowNotSelectable is returned by Allow for windows that cannot be allowed.
	ErrWindowNotSelectable = errors.New("window cannot be allowed")
)

// Confirmer asks the user to type phrase and returns what they typed.
// It runs off the session loop and may block.
type Confirmer interface {
	Confirm(ctx context.Context, phrase string) (string, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, phrase string) (string, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, phrase string) (string, error) {
	return f(ctx, phrase)
}

// Options describe one session.
type Options struct {
	Task     string
	Duration time.Duration
	// Phrase is the early-exit confirmation phrase; empty uses the default.
	Phrase      string
	Allowed     []enumerator.Descriptor
	Processes   []string
	Domains     []string
	HideTaskbar bool

	// EndHotkey and ExtendHotkey are parsed with hotkey.Parse; empty disables them.
	EndHotkey    string
	ExtendHotkey string

	// Ready, when closed, starts the claim pass before SettleDelay.
	Ready          <-chan struct{}
	SettleDelay    time.Duration
	HostRetryDelay time.Duration
}

// RunnerDependencies holds every external collaborator of a Runner.
type RunnerDependencies struct {
	Windows       interfaces.WindowManager
	Processes     interfaces.ProcessManager
	Hosts         interfaces.HostsFile
	Notifications interfaces.NotificationSettings
	Taskbar       interfaces.Taskbar
	Commands      interfaces.CommandRunner
	// Hotkeys is optional; without it no global hotkeys are registered.
	Hotkeys   interfaces.HotkeyBinder
	Confirmer Confirmer
	Clock     session.Clock
	SelfPid   uint32

	// WatchHosts enables the hosts file tamper watcher.
	WatchHosts bool
	// TickInterval overrides timeouts.SessionTickInterval.
	TickInterval time.Duration
}

// Status is a snapshot of the running session.
type Status struct {
	Session      session.Status          `json:"session"`
	Phase        string                  `json:"phase"`
	Allowed      []enumerator.Descriptor `json:"allowed"`
	Blocked      blocker.Config          `json:"blocked"`
	HostsApplied bool                    `json:"hosts_applied"`
}

// Runner owns a single focus session.
type Runner struct {
	log  logger.LoggerInterface
	deps RunnerDependencies

	loop     *loop.Loop
	bus      *events.Bus
	blocker  *blocker.Blocker
	enforcer *enforcer.Enforcer
	tracker  *tracker.Tracker
	enum     *enumerator.Enumerator
	hotkeys  *hotkey.Registry

	started atomic.Bool
	running atomic.Bool

	// Loop-owned session state
	sess       *session.Session
	tickTimer  *loop.Timer
	watcher    *blocker.HostsWatcher
	hotkeyIDs  []int
	confirming bool
	ctx        context.Context

	mu     sync.Mutex
	ended  chan struct{}
	result session.Result
}

// NewRunnerWithDeps creates a Runner with explicit dependencies.
func NewRunnerWithDeps(log logger.LoggerInterface, deps *RunnerDependencies) *Runner {
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}

	if deps.SelfPid == 0 {
		deps.SelfPid = uint32(os.Getpid())
	}

	if deps.TickInterval <= 0 {
		deps.TickInterval = timeouts.SessionTickInterval
	}

	r := &Runner{
		log:  log,
		deps: *deps,
		loop: loop.New(log),
		bus:  events.NewBus(log),
	}

	r.blocker = blocker.New(log, blocker.Dependencies{
		Hosts:         deps.Hosts,
		Processes:     deps.Processes,
		Notifications: deps.Notifications,
		Taskbar:       deps.Taskbar,
		Commands:      deps.Commands,
		Scheduler:     r.loop,
		Events:        r,
		SelfPid:       deps.SelfPid,
	})

	r.enforcer = enforcer.New(log, enforcer.Dependencies{
		Windows:   deps.Windows,
		Processes: deps.Processes,
		Scheduler: r.loop,
		Events:    r,
	})

	r.tracker = tracker.New(log, deps.Windows, deps.Processes, r.loop, r.publishGeometry)

	r.enum = enumerator.NewWithDeps(log, enumerator.Dependencies{
		Windows:   deps.Windows,
		Processes: deps.Processes,
		SelfPid:   deps.SelfPid,
	})

	if deps.Hotkeys != nil {
		r.hotkeys = hotkey.NewRegistry(log, deps.Hotkeys, r.loop)
	}

	return r
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Bus returns the event bus of the runner.
func (r *Runner) Bus() *events.Bus { return r.bus }

// Blocker returns the system blocker, for emergency cleanup.
func (r *Runner) Blocker() *blocker.Blocker { return r.blocker }

// Publish records interventions on the session and forwards e to the bus.
func (r *Runner) Publish(e events.Event) {
	if p, ok := e.Payload.(events.InterventionPayload); ok && e.Type == events.Intervention {
		if p.Kind != events.HostsRegionLost && r.sess != nil {
			r.sess.RecordIntervention()
		}
	}

	r.bus.Publish(e)
}

func (r *Runner) publishGeometry(e tracker.Event) {
	r.bus.Publish(events.Event{Type: events.Geometry, Payload: e})
}

// Windows lists the windows that can be allowed.
func (r *Runner) Windows() []enumerator.Descriptor {
	return r.enum.Enumerate()
}

// EmergencyCleanup reverts every system-level effect. Safe from any goroutine.
func (r *Runner) EmergencyCleanup() {
	r.blocker.EmergencyCleanup()
}

// Run starts a session and blocks until it ends. Canceling ctx ends the
// session as not completed.
func (r *Runner) Run(ctx context.Context, opts Options) (session.Result, error) {
	if !r.started.CompareAndSwap(false, true) {
		return session.Result{}, ErrAlreadyStarted
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer func() {
		stopLoop()
		<-r.loop.Done()
	}()

	go func() {
		if err := r.loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("Session loop exited", slog.Any("error", err))
		}
	}()

	r.mu.Lock()
	r.ended = make(chan struct{})
	ended := r.ended
	r.mu.Unlock()

	var startErr error
	if err := r.loop.Call(context.Background(), "start", func() { startErr = r.start(ctx, opts) }); err != nil {
		return session.Result{}, err
	}

	if startErr != nil {
		return session.Result{}, startErr
	}

	select {
	case <-ended:
	case <-ctx.Done():
		r.log.Info("Session canceled")

		abortCtx, cancel := context.WithTimeout(context.Background(), timeouts.ConsoleCleanupBudget)
		defer cancel()

		err := r.loop.Call(abortCtx, "abort", func() {
			if res, first := r.sess.End(false); first {
				r.finish(res)
			}
		})
		if err != nil {
			r.log.Warn("Graceful stop failed, running emergency cleanup", slog.Any("error", err))
			r.EmergencyCleanup()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.result, ctx.Err()
}

// start runs on the loop.
func (r *Runner) start(ctx context.Context, opts Options) error {
	sess := session.New(session.Options{
		Task:     opts.Task,
		Duration: opts.Duration,
		Phrase:   opts.Phrase,
		Clock:    r.deps.Clock,
	})

	timer, err := sess.Start()
	if err != nil {
		return err
	}

	r.sess = sess
	r.ctx = ctx
	r.confirming = false

	if err := r.blocker.ConfigureProcesses(opts.Processes); err != nil {
		return err
	}

	if err := r.blocker.ConfigureDomains(opts.Domains); err != nil {
		return err
	}

	r.log.Info("Focus session started",
		slog.String("task", opts.Task),
		slog.Duration("duration", opts.Duration),
		slog.Int("allowed", len(opts.Allowed)),
	)

	allow := enforcer.NewAllowSet(opts.Allowed...)
	if err := r.enforcer.Start(allow, enforcer.Options{
		Ready:          opts.Ready,
		SettleDelay:    opts.SettleDelay,
		HostRetryDelay: opts.HostRetryDelay,
	}); err != nil {
		return err
	}

	r.tracker.Start(r.deps.Windows.HostWindow())

	if err := r.blocker.Start(ctx); err != nil {
		r.warn("Some blocking could not be applied", err)
	} else if r.deps.WatchHosts && len(r.blocker.Config().Domains) > 0 {
		r.watchHosts()
	}

	if opts.HideTaskbar {
		if err := r.blocker.HideTaskbar(); err != nil {
			r.warn("Could not hide the taskbar", err)
		}
	}

	r.registerHotkeys(opts)

	r.tickTimer = r.loop.Every("session-tick", r.deps.TickInterval, r.tick)
	r.running.Store(true)

	r.Publish(events.Event{
		Type: events.SessionStarted,
		Payload: SessionStartedPayload{
			ID:       sess.ID(),
			Task:     opts.Task,
			Duration: timer.Planned,
			EndsAt:   timer.End,
			Allowed:  allow.Descriptors(),
		},
	})

	return nil
}

// SessionStartedPayload accompanies events.SessionStarted.
type SessionStartedPayload struct {
	ID       string                  `json:"id"`
	Task     string                  `json:"task"`
	Duration time.Duration           `json:"duration"`
	EndsAt   time.Time               `json:"ends_at"`
	Allowed  []enumerator.Descriptor `json:"allowed"`
}

func (r *Runner) warn(msg string, err error) {
	r.log.Warn(msg, slog.Any("error", err))
	r.bus.Publish(events.Event{
		Type:    events.Warning,
		Payload: events.WarningPayload{Message: msg, Error: err.Error()},
	})
}

func (r *Runner) watchHosts() {
	w, err := blocker.WatchHosts(r.log, r.deps.Hosts, func() {
		r.loop.Post("hosts-lost", func() {
			r.Publish(events.Event{
				Type: events.Intervention,
				Payload: events.InterventionPayload{
					Kind:   events.HostsRegionLost,
					Target: r.deps.Hosts.Path(),
				},
			})
		})
	})
	if err != nil {
		r.log.Debug("Hosts watcher unavailable", slog.Any("error", err))
		return
	}

	r.watcher = w
}

func (r *Runner) registerHotkeys(opts Options) {
	if r.hotkeys == nil {
		return
	}

	bind := func(name, spec string, fn func()) {
		if spec == "" {
			return
		}

		hk, err := hotkey.Parse(spec)
		if err != nil {
			r.log.Warn("Ignoring invalid hotkey", slog.String("name", name), slog.Any("error", err))
			return
		}

		id, err := r.hotkeys.Register(name, hk, fn)
		if err != nil {
			r.log.Warn("Could not register hotkey", slog.String("name", name), slog.Any("error", err))
			return
		}

		r.hotkeyIDs = append(r.hotkeyIDs, id)
	}

	bind("end-session", opts.EndHotkey, r.promptEnd)
	bind("extend-session", opts.ExtendHotkey, func() {
		if _, err := r.extend(); err != nil {
			r.log.Debug("Extend ignored", slog.Any("error", err))
		}
	})
}

func (r *Runner) tick() {
	if res, ended := r.sess.Tick(); ended {
		r.log.Info("Focus session complete")
		r.finish(res)
	}
}

// finish tears the session down. It runs on the loop exactly once per session.
// A panic during teardown falls back to emergency cleanup, and Run still returns.
func (r *Runner) finish(res session.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("PANIC RECOVERED while ending session",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			r.EmergencyCleanup()
		}

		r.bus.Publish(events.Event{Type: events.SessionEnded, Payload: res})

		r.mu.Lock()
		r.result = res
		close(r.ended)
		r.mu.Unlock()

		r.running.Store(false)
	}()

	r.tickTimer.Stop()
	r.tickTimer = nil

	for _, id := range r.hotkeyIDs {
		if err := r.hotkeys.Unregister(id); err != nil {
			r.log.Debug("Could not unregister hotkey", slog.Int("id", id), slog.Any("error", err))
		}
	}
	r.hotkeyIDs = nil

	if err := r.watcher.Close(); err != nil {
		r.log.Debug("Could not close hosts watcher", slog.Any("error", err))
	}
	r.watcher = nil

	r.tracker.Stop()
	r.enforcer.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), timeouts.ConsoleCleanupBudget)
	defer cancel()

	r.blocker.Stop(stopCtx)
	if err := r.blocker.RestoreTaskbar(); err != nil {
		r.log.Warn("Could not restore the taskbar", slog.Any("error", err))
	}

	r.log.Info("Focus session ended",
		slog.Bool("completed", res.Completed),
		slog.Duration("actual", res.Actual),
		slog.Int("interventions", res.Interventions),
	)
}

// promptEnd asks for the confirmation phrase off the loop, unless the session
// has already expired. Runs on the loop.
func (r *Runner) promptEnd() {
	if r.sess == nil || r.sess.State() != session.Running {
		return
	}

	if r.sess.Expired() {
		if res, err := r.sess.RequestEnd(""); err == nil {
			r.finish(res)
		}
		return
	}

	if r.confirming {
		r.log.Debug("Confirmation already in progress")
		return
	}

	if r.deps.Confirmer == nil {
		r.log.Warn("Early exit requires confirmation but no prompt is available")
		return
	}

	r.confirming = true
	ctx, phrase := r.ctx, r.sess.Phrase()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("PANIC RECOVERED in confirmation prompt",
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
				)
				r.loop.Post("confirm-failed", func() { r.confirming = false })
			}
		}()

		typed, err := r.deps.Confirmer.Confirm(ctx, phrase)

		r.loop.Post("confirm-result", func() {
			r.confirming = false

			if err != nil {
				r.log.Debug("Confirmation prompt failed", slog.Any("error", err))
				return
			}

			if _, err := r.endWithPhrase(typed); err != nil {
				r.log.Info("Phrase did not match, staying focused")
			}
		})
	}()
}

func (r *Runner) endWithPhrase(phrase string) (session.Result, error) {
	res, err := r.sess.RequestEnd(phrase)
	if err != nil {
		return res, err
	}

	r.finish(res)
	return res, nil
}

func (r *Runner) extend() (session.Timer, error) {
	timer, err := r.sess.Extend()
	if err != nil {
		return timer, err
	}

	r.log.Info("Session extended", slog.Time("ends_at", timer.End))
	r.bus.Publish(events.Event{Type: events.SessionExtended, Payload: timer})
	return timer, nil
}

// call runs fn on the loop if a session is running.
func (r *Runner) call(ctx context.Context, name string, fn func() error) error {
	if !r.running.Load() {
		return ErrNoSession
	}

	var fnErr error
	if err := r.loop.Call(ctx, name, func() {
		if r.sess == nil || r.sess.State() != session.Running {
			fnErr = ErrNoSession
			return
		}
		fnErr = fn()
	}); err != nil {
		if errors.Is(err, loop.ErrStopped) {
			return ErrNoSession
		}
		return err
	}

	return fnErr
}

// PromptEnd starts the confirmation prompt for an early exit. Safe from any goroutine.
func (r *Runner) PromptEnd() {
	r.loop.Post("prompt-end", r.promptEnd)
}

// RequestEnd ends the session if phrase matches, or unconditionally once it
// has expired. A mismatch returns session.ErrNotConfirmed.
func (r *Runner) RequestEnd(ctx context.Context, phrase string) (session.Result, error) {
	var res session.Result

	err := r.call(ctx, "request-end", func() error {
		var err error
		res, err = r.endWithPhrase(phrase)
		return err
	})

	return res, err
}

// Extend adds session.ExtendIncrement to the running session.
func (r *Runner) Extend(ctx context.Context) (session.Timer, error) {
	var timer session.Timer

	err := r.call(ctx, "extend", func() error {
		var err error
		timer, err = r.extend()
		return err
	})

	return timer, err
}

// Allow adds the window hwnd to the allow-set of the running session.
func (r *Runner) Allow(ctx context.Context, hwnd uintptr) (enumerator.Descriptor, error) {
	var desc enumerator.Descriptor

	err := r.call(ctx, "allow", func() error {
		for _, d := range r.enum.Enumerate() {
			if d.Hwnd != hwnd {
				continue
			}

			desc = d
			r.enforcer.AddAllowed(d)
			return nil
		}

		return fmt.Errorf("%w: %#x", ErrWindowNotSelectable, hwnd)
	})

	return desc, err
}

// RestoreAllowed brings every allowed window back on screen without taking focus.
func (r *Runner) RestoreAllowed(ctx context.Context) error {
	return r.call(ctx, "restore-allowed", func() error {
		r.enforcer.RestoreAllowed()
		return nil
	})
}

// Status returns a snapshot of the running session.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	var st Status

	err := r.call(ctx, "status", func() error {
		st = Status{
			Session:      r.sess.Status(),
			Phase:        r.enforcer.Phase().String(),
			Allowed:      r.enforcer.AllowSet().Descriptors(),
			Blocked:      r.blocker.Config(),
			HostsApplied: r.blocker.HostsApplied(),
		}
		return nil
	})

	return st, err
}

// Close releases the hotkey registry. Call after Run returns.
func (r *Runner) Close() error {
	if r.hotkeys == nil {
		return nil
	}

	return r.hotkeys.Close()
}
