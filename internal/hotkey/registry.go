// Package hotkey owns the process-wide set of global hotkeys. Every
// registration goes through one Registry so ids never collide and every
// trigger is dispatched on the session loop.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

var (
	ErrInvalidHotkey     = errors.New("invalid hotkey")
	ErrAlreadyRegistered = errors.New("hotkey already registered")
	ErrNotRegistered     = errors.New("hotkey not registered")
	ErrClosed            = errors.New("hotkey registry closed")
)

// Poster queues work onto the session loop; *loop.Loop implements it.
type Poster interface {
	Post(name string, fn func()) bool
}

type binding struct {
	name string
	hk   windows.Hotkey
	fn   func()
}

// Registry maps hotkey ids to callbacks.
type Registry struct {
	log    logger.LoggerInterface
	binder interfaces.HotkeyBinder
	poster Poster

	mu       sync.Mutex
	bindings map[int]binding
	nextID   int
	closed   bool

	wg sync.WaitGroup
}

// NewRegistry starts dispatching triggers from binder onto poster.
func NewRegistry(log logger.LoggerInterface, binder interfaces.HotkeyBinder, poster Poster) *Registry {
	r := &Registry{
		log:      log,
		binder:   binder,
		poster:   poster,
		bindings: make(map[int]binding),
		nextID:   1,
	}

	r.wg.Add(1)
	go r.dispatch()

	return r
}

// Register binds hk to fn and returns its id. A combination can only be
// registered once.
func (r *Registry) Register(name string, hk windows.Hotkey, fn func()) (int, error) {
	if hk.Key == 0 || fn == nil {
		return 0, ErrInvalidHotkey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	for _, b := range r.bindings {
		if b.hk == hk {
			return 0, fmt.Errorf("%w: %s is used by %s", ErrAlreadyRegistered, Format(hk), b.name)
		}
	}

	id := r.nextID
	if err := r.binder.Bind(id, hk); err != nil {
		return 0, fmt.Errorf("failed to register %s: %w", Format(hk), err)
	}

	r.nextID++
	r.bindings[id] = binding{name: name, hk: hk, fn: fn}

	r.log.Debug("Hotkey registered", slog.String("name", name), slog.String("keys", Format(hk)), slog.Int("id", id))
	return id, nil
}

// Unregister releases id.
func (r *Registry) Unregister(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[id]
	if !ok {
		return ErrNotRegistered
	}

	delete(r.bindings, id)

	if err := r.binder.Unbind(id); err != nil {
		return fmt.Errorf("failed to unregister %s: %w", b.name, err)
	}

	return nil
}

// Len returns the number of active registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

// Close unregisters everything and stops dispatching.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}

	r.closed = true
	for id := range r.bindings {
		if err := r.binder.Unbind(id); err != nil {
			r.log.Debug("Failed to unregister hotkey", slog.Int("id", id), slog.Any("error", err))
		}
	}
	r.bindings = map[int]binding{}
	r.mu.Unlock()

	err := r.binder.Close()
	r.wg.Wait()

	return err
}

func (r *Registry) dispatch() {
	defer r.wg.Done()

	for id := range r.binder.Triggers() {
		r.forward(id)
	}
}

// forward hands one trigger to the loop. A panic is logged and the next
// trigger is still dispatched.
func (r *Registry) forward(id int) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("PANIC RECOVERED in hotkey dispatch",
				slog.Int("id", id),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	r.mu.Lock()
	b, ok := r.bindings[id]
	r.mu.Unlock()

	if !ok {
		return
	}

	r.log.Debug("Hotkey pressed", slog.String("name", b.name))

	if !r.poster.Post("hotkey:"+b.name, b.fn) {
		r.log.Debug("Hotkey ignored, loop stopped", slog.String("name", b.name))
	}
}
