//go:build windows

package windows

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"unsafe"

	xwin "golang.org/x/sys/windows"

	"github.com/Lattixe/MonkMode-windows/internal/logger"
)

// ErrBinderClosed is returned by a HotkeyBinder after Close.
var ErrBinderClosed = errors.New("hotkey binder closed")

type bindRequest struct {
	id     int
	hk     Hotkey
	unbind bool
	reply  chan error
}

// HotkeyBinder implements interfaces.HotkeyBinder. RegisterHotKey delivers
// WM_HOTKEY to the registering thread, so every registration happens on one
// OS-locked goroutine that also pumps its message queue.
type HotkeyBinder struct {
	log logger.LoggerInterface

	threadID uint32
	triggers chan int
	requests chan bindRequest
	done     chan struct{}

	mu        sync.Mutex // serializes requests
	closeOnce sync.Once
}

// NewHotkeyBinder starts the message thread.
func NewHotkeyBinder(log logger.LoggerInterface) *HotkeyBinder {
	b := &HotkeyBinder{
		log:      log,
		triggers: make(chan int, 8),
		requests: make(chan bindRequest, 1),
		done:     make(chan struct{}),
	}

	ready := make(chan struct{})
	go b.run(ready)
	<-ready

	return b
}

func (b *HotkeyBinder) run(ready chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer close(b.done)
	defer close(b.triggers)

	b.threadID = xwin.GetCurrentThreadId()

	// The queue exists only after the first message call
	var msg MSG
	_, _, _ = procPeekMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, WM_USER, WM_USER, PM_NOREMOVE)
	close(ready)

	registered := make(map[int]struct{})
	defer func() {
		for id := range registered {
			_, _, _ = procUnregisterHotKey.Call(0, uintptr(id))
		}
	}()

	for {
		// 0 is WM_QUIT, -1 an error
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			return
		}

		switch msg.Message {
		case WM_HOTKEY:
			select {
			case b.triggers <- int(msg.WParam):
			default:
				b.log.Debug("Hotkey trigger dropped", slog.Int("id", int(msg.WParam)))
			}
		case WM_USER:
			b.serve(registered)
		}
	}
}

func (b *HotkeyBinder) serve(registered map[int]struct{}) {
	for {
		select {
		case req := <-b.requests:
			req.reply <- apply(req, registered)
		default:
			return
		}
	}
}

func apply(req bindRequest, registered map[int]struct{}) (result error) {
	defer func() {
		if p := recover(); p != nil {
			result = fmt.Errorf("hotkey request %d panicked: %v\n%s", req.id, p, debug.Stack())
		}
	}()

	if req.unbind {
		delete(registered, req.id)

		ret, _, err := procUnregisterHotKey.Call(0, uintptr(req.id))
		if ret == 0 {
			return fmt.Errorf("UnregisterHotKey: %w", err)
		}
		return nil
	}

	ret, _, err := procRegisterHotKey.Call(0, uintptr(req.id), uintptr(req.hk.Modifiers), uintptr(req.hk.Key))
	if ret == 0 {
		return fmt.Errorf("RegisterHotKey: %w", err)
	}

	registered[req.id] = struct{}{}
	return nil
}

func (b *HotkeyBinder) do(req bindRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return ErrBinderClosed
	default:
	}

	req.reply = make(chan error, 1)
	b.requests <- req

	ret, _, err := procPostThreadMessageW.Call(uintptr(b.threadID), WM_USER, 0, 0)
	if ret == 0 {
		select {
		case <-b.requests:
		default:
		}
		return fmt.Errorf("PostThreadMessage: %w", err)
	}

	select {
	case err := <-req.reply:
		return err
	case <-b.done:
		return ErrBinderClosed
	}
}

// Bind registers hk under id.
func (b *HotkeyBinder) Bind(id int, hk Hotkey) error {
	return b.do(bindRequest{id: id, hk: hk})
}

// Unbind releases id.
func (b *HotkeyBinder) Unbind(id int) error {
	return b.do(bindRequest{id: id, unbind: true})
}

// Triggers delivers the id of every pressed hotkey. It is closed by Close.
func (b *HotkeyBinder) Triggers() <-chan int { return b.triggers }

// Close stops the message thread, releasing every registration.
func (b *HotkeyBinder) Close() error {
	b.closeOnce.Do(func() {
		ret, _, err := procPostThreadMessageW.Call(uintptr(b.threadID), WM_QUIT, 0, 0)
		if ret == 0 {
			b.log.Debug("Could not stop hotkey thread", slog.Any("error", err))
			return
		}

		<-b.done
	})

	return nil
}
