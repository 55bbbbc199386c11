package enumerator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/testutil"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

const selfPid = 4242

func newEnumerator(win *testutil.MockWindowManager, procs *testutil.MockProcessManager) *enumerator.Enumerator {
	return enumerator.NewWithDeps(logger.NewNoOpLogger(), enumerator.Dependencies{
		Windows:   win,
		Processes: procs,
		SelfPid:   selfPid,
	})
}

func TestEnumerate_FiltersWindows(t *testing.T) {
	t.Parallel()

	win := testutil.NewMockWindowManager().
		WithAppWindow(1, "main.go - Code", 100).
		WithWindow(testutil.FakeWindow{Hwnd: 2, Title: "Hidden", Pid: 100}).
		WithWindow(testutil.FakeWindow{Hwnd: 3, Title: "", Pid: 101, Visible: true}).
		WithAppWindow(4, "MonkMode", selfPid).
		WithWindow(testutil.FakeWindow{Hwnd: 5, Title: "Palette", Pid: 102, Visible: true, ToolWindow: true}).
		WithWindow(testutil.FakeWindow{Hwnd: 6, Title: "Tool App", Pid: 102, Visible: true, ToolWindow: true, AppWindow: true}).
		WithWindow(testutil.FakeWindow{Hwnd: 7, Title: "Find", Pid: 100, Visible: true, Owner: 1}).
		WithAppWindow(8, "File Explorer", 103).
		WithAppWindow(9, "Untitled - Notepad", 104)

	procs := testutil.NewMockProcessManager().
		WithProcess(100, "Code.exe").
		WithProcess(101, "ghost.exe").
		WithProcess(102, "Tools.exe").
		WithProcess(103, "explorer.exe").
		WithProcess(104, "notepad.exe").
		WithProcess(selfPid, "monkmode.exe")

	got := newEnumerator(win, procs).Enumerate()

	require.Len(t, got, 3)
	assert.Equal(t, enumerator.Descriptor{Index: 1, Hwnd: 1, Title: "main.go - Code", ProcessName: "code", Pid: 100}, got[0])
	assert.Equal(t, enumerator.Descriptor{Index: 2, Hwnd: 6, Title: "Tool App", ProcessName: "tools", Pid: 102}, got[1])
	assert.Equal(t, enumerator.Descriptor{Index: 3, Hwnd: 9, Title: "Untitled - Notepad", ProcessName: "notepad", Pid: 104}, got[2])
}

func TestEnumerate_SkipsUnreadableProcess(t *testing.T) {
	t.Parallel()

	win := testutil.NewMockWindowManager().
		WithAppWindow(1, "Gone", 500).
		WithAppWindow(2, "Notepad", 501)
	procs := testutil.NewMockProcessManager().WithProcess(501, "notepad.exe")

	got := newEnumerator(win, procs).Enumerate()

	require.Len(t, got, 1)
	assert.Equal(t, uintptr(2), got[0].Hwnd)
	assert.Equal(t, 1, got[0].Index)
}

func TestEnumerate_Empty(t *testing.T) {
	t.Parallel()

	got := newEnumerator(testutil.NewMockWindowManager(), testutil.NewMockProcessManager()).Enumerate()
	assert.Empty(t, got)
}

func TestSelectable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		win  windows.WindowInfo
		want bool
	}{
		{"plain app", windows.WindowInfo{Title: "App", Visible: true}, true},
		{"invisible", windows.WindowInfo{Title: "App"}, false},
		{"blank title", windows.WindowInfo{Title: "   ", Visible: true}, false},
		{"tool window", windows.WindowInfo{Title: "T", Visible: true, ToolWindow: true}, false},
		{"owned", windows.WindowInfo{Title: "T", Visible: true, Owner: 9}, false},
		{"owned app window", windows.WindowInfo{Title: "T", Visible: true, Owner: 9, AppWindow: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, enumerator.Selectable(tt.win))
		})
	}
}

func TestIsSystemClass(t *testing.T) {
	t.Parallel()

	assert.True(t, enumerator.IsSystemClass("Shell_TrayWnd"))
	assert.True(t, enumerator.IsSystemClass("WorkerW"))
	assert.False(t, enumerator.IsSystemClass("Chrome_WidgetWin_1"))
}

func TestIsShellProcess(t *testing.T) {
	t.Parallel()

	assert.True(t, enumerator.IsShellProcess("Explorer.EXE"))
	assert.False(t, enumerator.IsShellProcess("notepad.exe"))
}

func TestByIndex(t *testing.T) {
	t.Parallel()

	list := []enumerator.Descriptor{{Index: 1, Hwnd: 10}, {Index: 2, Hwnd: 20}, {Index: 3, Hwnd: 30}}

	found, missing := enumerator.ByIndex(list, []int{3, 1, 7, 0})

	assert.Equal(t, []enumerator.Descriptor{{Index: 3, Hwnd: 30}, {Index: 1, Hwnd: 10}}, found)
	assert.Equal(t, []int{7, 0}, missing)
}
