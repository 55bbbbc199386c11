// Package loop runs every timer callback, hotkey dispatch and API mutation of a
// focus session on a single goroutine, so session state never needs locking and
// no two ticks ever overlap.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lattixe/MonkMode-windows/internal/logger"
)

// ErrStopped is returned when work is submitted to a loop that is no longer running.
var ErrStopped = errors.New("loop stopped")

type task struct {
	name string
	fn   func()
}

// Loop is a serial task executor fed by timers and Post.
type Loop struct {
	log logger.LoggerInterface

	mu      sync.Mutex
	queue   []task
	wake    chan struct{}
	done    chan struct{}
	started atomic.Bool
	closed  atomic.Bool
}

// New creates an idle loop. Call Run to start executing tasks.
func New(log logger.LoggerInterface) *Loop {
	return &Loop{
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is canceled. It may only be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("loop already running")
	}

	defer func() {
		l.closed.Store(true)
		close(l.done)
	}()

	l.log.Debug("Loop started")

	for {
		select {
		case <-ctx.Done():
			l.log.Debug("Loop stopped")
			return ctx.Err()
		case <-l.wake:
		}

		for {
			t, ok := l.next()
			if !ok {
				break
			}

			l.exec(t)

			if ctx.Err() != nil {
				l.log.Debug("Loop stopped")
				return ctx.Err()
			}
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() (task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return task{}, false
	}

	t := l.queue[0]
	l.queue[0] = task{}
	l.queue = l.queue[1:]
	return t, true
}

// exec runs one task; a panic is logged and the loop keeps going.
func (l *Loop) exec(t task) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("PANIC RECOVERED in loop task",
				slog.String("task", t.name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	t.fn()
}

// Post queues fn to run on the loop goroutine. It never blocks and is safe to
// call from inside a task. It returns false if the loop has stopped.
func (l *Loop) Post(name string, fn func()) bool {
	if l.closed.Load() {
		return false
	}

	l.mu.Lock()
	l.queue = append(l.queue, task{name: name, fn: fn})
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return true
}

// Call runs fn on the loop and waits for it to finish.
// Must not be called from a loop task.
func (l *Loop) Call(ctx context.Context, name string, fn func()) error {
	finished := make(chan struct{})

	if !l.Post(name, func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Timer is a repeating or one-shot callback scheduled onto a Loop.
type Timer struct {
	stopped atomic.Bool
	pending atomic.Bool
	stop    chan struct{}
	once    sync.Once
}

func newTimer() *Timer {
	return &Timer{stop: make(chan struct{})}
}

// Stop cancels the timer. A tick already queued on the loop is discarded, so
// after Stop returns on the loop goroutine the callback never runs again.
func (t *Timer) Stop() {
	if t == nil {
		return
	}

	t.stopped.Store(true)
	t.once.Do(func() { close(t.stop) })
}

// Stopped reports whether Stop has been called or a one-shot timer has fired.
func (t *Timer) Stopped() bool {
	return t == nil || t.stopped.Load()
}

// Every schedules fn on the loop every interval. Ticks coalesce: if the
// previous tick has not run yet, the next one is dropped.
func (l *Loop) Every(name string, interval time.Duration, fn func()) *Timer {
	t := newTimer()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
			}

			if !t.pending.CompareAndSwap(false, true) {
				continue
			}

			l.Post(name, func() {
				t.pending.Store(false)
				if t.stopped.Load() {
					return
				}
				fn()
			})
		}
	}()

	return t
}

// After schedules fn on the loop once, after d.
func (l *Loop) After(name string, d time.Duration, fn func()) *Timer {
	t := newTimer()

	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-t.stop:
			return
		case <-l.done:
			return
		case <-timer.C:
		}

		l.Post(name, func() {
			if !t.stopped.CompareAndSwap(false, true) {
				return
			}
			fn()
		})
	}()

	return t
}

// When runs fn on the loop as soon as ready is closed or d elapses,
// whichever happens first. A nil ready channel waits for d only.
func (l *Loop) When(name string, ready <-chan struct{}, d time.Duration, fn func()) *Timer {
	t := newTimer()

	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-t.stop:
			return
		case <-l.done:
			return
		case <-ready:
		case <-timer.C:
		}

		l.Post(name, func() {
			if !t.stopped.CompareAndSwap(false, true) {
				return
			}
			fn()
		})
	}()

	return t
}
