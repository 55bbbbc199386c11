package testutil

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"

	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

// MockProcessManager implements interfaces.ProcessManager for testing.
// Killed processes disappear from subsequent scans.
type MockProcessManager struct {
	mu sync.Mutex

	procs      []interfaces.ProcessInfo
	ListErr    error
	KillErrors map[uint32]error
	KillCalls  []uint32
	ListCalls  int
}

func NewMockProcessManager() *MockProcessManager {
	return &MockProcessManager{
		procs:      []interfaces.ProcessInfo{},
		KillErrors: make(map[uint32]error),
		KillCalls:  []uint32{},
	}
}

func (m *MockProcessManager) WithProcess(pid uint32, name string) *MockProcessManager {
	m.Spawn(pid, name)
	return m
}

func (m *MockProcessManager) WithKillError(pid uint32, err error) *MockProcessManager {
	m.KillErrors[pid] = err
	return m
}

func (m *MockProcessManager) WithListError(err error) *MockProcessManager {
	m.ListErr = err
	return m
}

// Spawn adds a running process.
func (m *MockProcessManager) Spawn(pid uint32, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs = append(m.procs, interfaces.ProcessInfo{Pid: pid, Name: name})
}

// Running reports whether pid is still alive.
func (m *MockProcessManager) Running(pid uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.ContainsFunc(m.procs, func(p interfaces.ProcessInfo) bool { return p.Pid == pid })
}

func (m *MockProcessManager) Processes() ([]interfaces.ProcessInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	return slices.Clone(m.procs), nil
}

func (m *MockProcessManager) ProcessName(pid uint32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.procs {
		if p.Pid == pid {
			return p.Name, nil
		}
	}

	return "", os.ErrNotExist
}

func (m *MockProcessManager) Kill(pid uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.KillCalls = append(m.KillCalls, pid)
	if err := m.KillErrors[pid]; err != nil {
		return err
	}

	m.procs = slices.DeleteFunc(m.procs, func(p interfaces.ProcessInfo) bool { return p.Pid == pid })
	return nil
}

// MockHostsFile is an in-memory hosts file.
type MockHostsFile struct {
	mu sync.Mutex

	Content  string
	ReadErr  error
	WriteErr error
	Writes   []string
	Backups  []string
}

func NewMockHostsFile() *MockHostsFile {
	return &MockHostsFile{}
}

func (m *MockHostsFile) WithContent(content string) *MockHostsFile {
	m.Content = content
	return m
}

func (m *MockHostsFile) WithWriteError(err error) *MockHostsFile {
	m.WriteErr = err
	return m
}

func (m *MockHostsFile) WithReadError(err error) *MockHostsFile {
	m.ReadErr = err
	return m
}

// Current returns the file contents.
func (m *MockHostsFile) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Content
}

// Edit simulates an external writer replacing the file.
func (m *MockHostsFile) Edit(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Content = content
}

func (m *MockHostsFile) Path() string { return `C:\Windows\System32\drivers\etc\hosts` }

func (m *MockHostsFile) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return m.Content, nil
}

func (m *MockHostsFile) Write(content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return m.WriteErr
	}

	m.Writes = append(m.Writes, content)
	m.Content = content
	return nil
}

func (m *MockHostsFile) Backup(content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Backups = append(m.Backups, content)
	return nil
}

// MockNotificationSettings implements interfaces.NotificationSettings.
type MockNotificationSettings struct {
	mu sync.Mutex

	Current  interfaces.NotificationLevel
	ReadErr  error
	SetErr   error
	SetCalls []interfaces.NotificationLevel
}

func NewMockNotificationSettings() *MockNotificationSettings {
	return &MockNotificationSettings{Current: interfaces.NotificationsOff}
}

func (m *MockNotificationSettings) WithLevel(level interfaces.NotificationLevel) *MockNotificationSettings {
	m.Current = level
	return m
}

func (m *MockNotificationSettings) WithReadError(err error) *MockNotificationSettings {
	m.ReadErr = err
	return m
}

func (m *MockNotificationSettings) WithSetError(err error) *MockNotificationSettings {
	m.SetErr = err
	return m
}

func (m *MockNotificationSettings) Level() (interfaces.NotificationLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return interfaces.NotificationsOff, m.ReadErr
	}
	return m.Current, nil
}

func (m *MockNotificationSettings) SetLevel(level interfaces.NotificationLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls = append(m.SetCalls, level)
	if m.SetErr != nil {
		return m.SetErr
	}

	m.Current = level
	return nil
}

// MockTaskbar implements interfaces.Taskbar.
type MockTaskbar struct {
	Hidden    bool
	HideCalls int
	ShowCalls int
	HideErr   error
}

func NewMockTaskbar() *MockTaskbar {
	return &MockTaskbar{}
}

func (m *MockTaskbar) WithHideError(err error) *MockTaskbar {
	m.HideErr = err
	return m
}

func (m *MockTaskbar) Hide() error {
	m.HideCalls++
	if m.HideErr != nil {
		return m.HideErr
	}
	m.Hidden = true
	return nil
}

func (m *MockTaskbar) Show() error {
	m.ShowCalls++
	m.Hidden = false
	return nil
}

// CommandCall records one MockCommandRunner invocation.
type CommandCall struct {
	Name string
	Args []string
}

// MockCommandRunner implements interfaces.CommandRunner.
type MockCommandRunner struct {
	mu sync.Mutex

	Calls  []CommandCall
	Output []byte
	Err    error
	// PanicValue, when set, makes Run panic with it.
	PanicValue any
}

func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{Calls: []CommandCall{}}
}

func (m *MockCommandRunner) WithError(err error) *MockCommandRunner {
	m.Err = err
	return m
}

// WithPanic makes every later Run panic with v. Safe while a session runs.
func (m *MockCommandRunner) WithPanic(v any) *MockCommandRunner {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PanicValue = v
	return m
}

func (m *MockCommandRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, CommandCall{Name: name, Args: args})
	if m.PanicValue != nil {
		panic(m.PanicValue)
	}

	return m.Output, m.Err
}

// CallCount returns the number of recorded invocations.
func (m *MockCommandRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockHotkeyBinder implements interfaces.HotkeyBinder; Fire simulates a key press.
type MockHotkeyBinder struct {
	mu sync.Mutex

	Bound    map[int]windows.Hotkey
	BindErr  error
	Unbinds  []int
	Closed   bool
	triggers chan int
}

func NewMockHotkeyBinder() *MockHotkeyBinder {
	return &MockHotkeyBinder{
		Bound:    make(map[int]windows.Hotkey),
		triggers: make(chan int, 16),
	}
}

func (m *MockHotkeyBinder) WithBindError(err error) *MockHotkeyBinder {
	m.BindErr = err
	return m
}

func (m *MockHotkeyBinder) Bind(id int, hk windows.Hotkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BindErr != nil {
		return m.BindErr
	}
	if _, ok := m.Bound[id]; ok {
		return errors.New("hotkey id already bound")
	}

	m.Bound[id] = hk
	return nil
}

func (m *MockHotkeyBinder) Unbind(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Unbinds = append(m.Unbinds, id)
	delete(m.Bound, id)
	return nil
}

func (m *MockHotkeyBinder) Triggers() <-chan int { return m.triggers }

func (m *MockHotkeyBinder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Closed {
		m.Closed = true
		close(m.triggers)
	}
	return nil
}

// Fire simulates the OS delivering WM_HOTKEY for id.
func (m *MockHotkeyBinder) Fire(id int) {
	m.triggers <- id
}

// IsBound reports whether id is currently registered.
func (m *MockHotkeyBinder) IsBound(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Bound[id]
	return ok
}
