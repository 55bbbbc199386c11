// Package blocker applies and reverts the system-level effects of a focus
// session: domain redirects in the hosts file, termination of blocked
// processes, Focus Assist and the taskbar.
package blocker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/Lattixe/MonkMode-windows/internal/events"
	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/loop"
	"github.com/Lattixe/MonkMode-windows/internal/process"
	"github.com/Lattixe/MonkMode-windows/internal/timeouts"
)

// ErrBlockerActive is returned when the configuration changes while blocking.
var ErrBlockerActive = errors.New("blocker is active")

// emergencyLockWait bounds how long EmergencyCleanup waits for a scan in progress.
const emergencyLockWait = 500 * time.Millisecond

// Config is the normalized block configuration.
type Config struct {
	Processes []string `json:"processes"`
	Domains   []string `json:"domains"`
}

// Scheduler runs repeating callbacks; *loop.Loop implements it.
type Scheduler interface {
	Every(name string, interval time.Duration, fn func()) *loop.Timer
}

// Dependencies holds the collaborators of a Blocker.
type Dependencies struct {
	Hosts         interfaces.HostsFile
	Processes     interfaces.ProcessManager
	Notifications interfaces.NotificationSettings
	Taskbar       interfaces.Taskbar
	Commands      interfaces.CommandRunner
	Scheduler     Scheduler
	Events        events.Publisher
	// SelfPid is never killed, even if its name is blocked.
	SelfPid uint32
}

// Blocker owns every system-level side effect of a session. Start, Stop and
// the scan run on the session loop; EmergencyCleanup may run from any goroutine.
type Blocker struct {
	log  logger.LoggerInterface
	deps Dependencies

	mu        sync.Mutex
	config    Config
	blocked   map[string]struct{}
	started   bool
	scanTimer *loop.Timer

	hostsApplied  bool
	backedUp      bool
	captured      bool
	previous      interfaces.NotificationLevel
	taskbarHidden bool
}

// New creates an idle blocker with an empty configuration.
func New(log logger.LoggerInterface, deps Dependencies) *Blocker {
	return &Blocker{
		log:     log,
		deps:    deps,
		blocked: map[string]struct{}{},
	}
}

// ConfigureProcesses replaces the blocked process names.
func (b *Blocker) ConfigureProcesses(names []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrBlockerActive
	}

	b.config.Processes = process.NormalizeNames(names)
	b.blocked = make(map[string]struct{}, len(b.config.Processes))
	for _, n := range b.config.Processes {
		b.blocked[n] = struct{}{}
	}

	return nil
}

// ConfigureDomains replaces the blocked domains.
func (b *Blocker) ConfigureDomains(domains []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrBlockerActive
	}

	b.config.Domains = NormalizeDomains(domains)
	return nil
}

// Config returns a copy of the current configuration.
func (b *Blocker) Config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Config{
		Processes: slices.Clone(b.config.Processes),
		Domains:   slices.Clone(b.config.Domains),
	}
}

// Active reports whether Start has run without a matching Stop.
func (b *Blocker) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// HostsApplied reports whether the managed region is currently written.
func (b *Blocker) HostsApplied() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hostsApplied
}

// Start enables Focus Assist, begins scanning for blocked processes and writes
// the domain region. A hosts permission failure is returned wrapping
// ErrPrivilegeDenied after the other effects are already active. Calling Start
// again re-applies the effects without re-capturing the notification level.
func (b *Blocker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.log.Info("Starting system blocker",
		slog.Int("processes", len(b.config.Processes)),
		slog.Int("domains", len(b.config.Domains)),
	)

	b.enableFocusAssist()

	if len(b.config.Processes) > 0 {
		b.scanLocked()

		if b.scanTimer.Stopped() {
			b.scanTimer = b.deps.Scheduler.Every("process-scan", timeouts.ProcessScanInterval, b.Scan)
		}
	}

	b.started = true

	if len(b.config.Domains) == 0 {
		return nil
	}

	return b.applyHostsLocked(ctx)
}

func (b *Blocker) enableFocusAssist() {
	notif := b.deps.Notifications

	if !b.captured {
		level, err := notif.Level()
		if err != nil {
			b.log.Debug("Could not read Focus Assist level, assuming off", slog.Any("error", err))
			level = interfaces.NotificationsOff
		}

		b.previous = level
		b.captured = true
	}

	if err := notif.SetLevel(interfaces.NotificationsAlarmsOnly); err != nil {
		b.log.Warn("Could not enable Focus Assist", slog.Any("error", err))
		return
	}

	b.log.Debug("Focus Assist enabled", slog.String("previous", b.previous.String()))
}

func (b *Blocker) applyHostsLocked(ctx context.Context) error {
	hosts := b.deps.Hosts

	current, err := hosts.Read()
	if err != nil {
		return err
	}

	if !b.backedUp {
		if err := hosts.Backup(StripRegion(current)); err != nil {
			b.log.Warn("Could not back up hosts file", slog.Any("error", err))
		}
		b.backedUp = true
	}

	if err := hosts.Write(ApplyRegion(current, b.config.Domains)); err != nil {
		if errors.Is(err, ErrPrivilegeDenied) {
			b.log.Warn("Domain blocking disabled: hosts file requires administrator rights")
		}
		return err
	}

	b.hostsApplied = true
	b.log.Info("Blocked domains", slog.Any("domains", b.config.Domains))

	b.flushDNS(ctx, timeouts.DNSFlushTimeout)
	return nil
}

// Scan kills every running process whose normalized name is blocked.
func (b *Blocker) Scan() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanLocked()
}

func (b *Blocker) scanLocked() {
	if len(b.blocked) == 0 {
		return
	}

	procs, err := b.deps.Processes.Processes()
	if err != nil {
		b.log.Debug("Process scan failed", slog.Any("error", err))
		return
	}

	for _, p := range procs {
		if p.Pid == b.deps.SelfPid {
			continue
		}

		name := process.NormalizeName(p.Name)
		if _, ok := b.blocked[name]; !ok {
			continue
		}

		if err := b.deps.Processes.Kill(p.Pid); err != nil {
			b.log.Debug("Could not terminate blocked process",
				slog.String("process", name),
				slog.Uint64("pid", uint64(p.Pid)),
				slog.Any("error", err),
			)
			continue
		}

		b.log.Info("Terminated blocked process", slog.String("process", name), slog.Uint64("pid", uint64(p.Pid)))

		if b.deps.Events != nil {
			b.deps.Events.Publish(events.Event{
				Type: events.Intervention,
				Payload: events.InterventionPayload{
					Kind:   events.ProcessKilled,
					Target: name,
					Pid:    p.Pid,
				},
			})
		}
	}
}

// Stop reverts every effect that Start applied. It leaves the taskbar alone.
func (b *Blocker) Stop(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.scanTimer.Stop()
	b.scanTimer = nil

	if b.hostsApplied {
		if err := b.removeHostsLocked(ctx, timeouts.DNSFlushTimeout); err != nil {
			b.log.Warn("Could not remove blocked domains", slog.Any("error", err))
		}
	}

	if b.captured {
		if err := b.deps.Notifications.SetLevel(b.previous); err != nil {
			b.log.Warn("Could not restore Focus Assist", slog.Any("error", err))
		}
		b.captured = false
	}

	if b.started {
		b.log.Info("System blocker stopped")
	}
	b.started = false
}

func (b *Blocker) removeHostsLocked(ctx context.Context, flushTimeout time.Duration) error {
	hosts := b.deps.Hosts

	current, err := hosts.Read()
	if err != nil {
		return err
	}

	b.hostsApplied = false

	if !HasRegion(current) {
		return nil
	}

	if err := hosts.Write(StripRegion(current)); err != nil {
		b.hostsApplied = true
		return err
	}

	b.flushDNS(ctx, flushTimeout)
	return nil
}

func (b *Blocker) flushDNS(ctx context.Context, timeout time.Duration) {
	if b.deps.Commands == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if out, err := b.deps.Commands.Run(ctx, "ipconfig", "/flushdns"); err != nil {
		b.log.Debug("DNS flush failed", slog.Any("error", err), slog.String("output", string(out)))
	}
}

// HideTaskbar hides the shell taskbar until RestoreTaskbar or EmergencyCleanup.
func (b *Blocker) HideTaskbar() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.taskbarHidden {
		return nil
	}

	if err := b.deps.Taskbar.Hide(); err != nil {
		return fmt.Errorf("failed to hide taskbar: %w", err)
	}

	b.taskbarHidden = true
	return nil
}

// RestoreTaskbar shows the taskbar if HideTaskbar hid it.
func (b *Blocker) RestoreTaskbar() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.taskbarHidden {
		return nil
	}

	if err := b.deps.Taskbar.Show(); err != nil {
		return fmt.Errorf("failed to show taskbar: %w", err)
	}

	b.taskbarHidden = false
	return nil
}

// EmergencyCleanup reverts every effect regardless of what was applied: it
// shows the taskbar, strips the hosts region and restores the captured
// notification level (or turns Focus Assist off if none was captured). It
// never panics and never returns an error, so it is safe to call on any exit path.
func (b *Blocker) EmergencyCleanup() {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("PANIC RECOVERED in emergency cleanup",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if b.lockWithin(emergencyLockWait) {
		defer b.mu.Unlock()
	} else {
		b.log.Warn("Emergency cleanup proceeding without blocker lock")
	}

	b.log.Info("Running emergency cleanup")

	b.step("stop process scan", func() error {
		b.scanTimer.Stop()
		return nil
	})

	b.step("show taskbar", func() error {
		b.taskbarHidden = false
		return b.deps.Taskbar.Show()
	})

	b.step("remove blocked domains", func() error {
		return b.removeHostsLocked(context.Background(), timeouts.EmergencyFlushTimeout)
	})

	b.step("restore Focus Assist", func() error {
		level := interfaces.NotificationsOff
		if b.captured {
			level = b.previous
		}

		b.captured = false
		return b.deps.Notifications.SetLevel(level)
	})

	b.started = false
}

// step runs one cleanup action, logging and swallowing its error or panic.
func (b *Blocker) step(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Emergency cleanup step panicked", slog.String("step", name), slog.Any("panic", r))
		}
	}()

	if err := fn(); err != nil {
		b.log.Warn("Emergency cleanup step failed", slog.String("step", name), slog.Any("error", err))
	}
}

func (b *Blocker) lockWithin(d time.Duration) bool {
	deadline := time.Now().Add(d)

	for {
		if b.mu.TryLock() {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		time.Sleep(10 * time.Millisecond)
	}
}
