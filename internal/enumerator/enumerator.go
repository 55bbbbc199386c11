// Package enumerator lists the top-level windows a user can pick for a focus session.
package enumerator

import (
	"log/slog"
	"os"
	"strings"

	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/process"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

// Descriptor is one selectable window. Index is 1-based and stable within one scan.
type Descriptor struct {
	Index       int     `json:"index"`
	Hwnd        uintptr `json:"hwnd"`
	Title       string  `json:"title"`
	ProcessName string  `json:"process"`
	Pid         uint32  `json:"pid"`
}

// shellProcesses own windows that are part of the shell rather than user apps.
var shellProcesses = map[string]struct{}{
	"explorer":                {},
	"shellexperiencehost":     {},
	"startmenuexperiencehost": {},
	"searchhost":              {},
	"searchapp":               {},
	"searchui":                {},
	"textinputhost":           {},
	"applicationframehost":    {},
	"systemsettings":          {},
	"lockapp":                 {},
	"dwm":                     {},
	"widgets":                 {},
	"gamebar":                 {},
	"taskhostw":               {},
	"sihost":                  {},
	"ctfmon":                  {},
}

// systemClasses are shell and system window classes that are never an
// intruder and never a trackable application window.
var systemClasses = map[string]struct{}{
	"Shell_TrayWnd":                         {},
	"Shell_SecondaryTrayWnd":                {},
	"Progman":                               {},
	"WorkerW":                               {},
	"NotifyIconOverflowWindow":              {},
	"TopLevelWindowForOverflowXamlIsland":   {},
	"Windows.UI.Core.CoreWindow":            {},
	"TaskListThumbnailWnd":                  {},
	"MultitaskingViewFrame":                 {},
	"XamlExplorerHostIslandWindow":          {},
	"ForegroundStaging":                     {},
	"Shell_InputSwitchTopLevelWindow":       {},
	"#32768":                                {}, // Popup menu
	"#32771":                                {}, // Alt+Tab switcher
	"tooltips_class32":                      {},
	"SysShadow":                             {},
	"ApplicationManager_DesktopShellWindow": {},
}

// IsShellProcess reports whether a process name belongs to the Windows shell.
func IsShellProcess(name string) bool {
	_, ok := shellProcesses[process.NormalizeName(name)]
	return ok
}

// IsSystemClass reports whether a window class belongs to the shell or system.
func IsSystemClass(class string) bool {
	_, ok := systemClasses[class]
	return ok
}

// Selectable reports whether a window passes the style checks of the window list:
// visible, titled, and either an app window or an unowned non-tool window.
func Selectable(w windows.WindowInfo) bool {
	if !w.Visible || strings.TrimSpace(w.Title) == "" {
		return false
	}

	if w.AppWindow {
		return true
	}

	return !w.ToolWindow && w.Owner == 0
}

// Dependencies holds the collaborators of an Enumerator
type Dependencies struct {
	Windows   interfaces.WindowManager
	Processes interfaces.ProcessManager
	SelfPid   uint32
}

// Enumerator scans top-level windows.
type Enumerator struct {
	log  logger.LoggerInterface
	deps Dependencies
}

// New creates an Enumerator that excludes windows of the current process.
func New(log logger.LoggerInterface, win interfaces.WindowManager, procs interfaces.ProcessManager) *Enumerator {
	return NewWithDeps(log, Dependencies{Windows: win, Processes: procs, SelfPid: uint32(os.Getpid())})
}

// NewWithDeps creates an Enumerator with explicit dependencies (for testing)
func NewWithDeps(log logger.LoggerInterface, deps Dependencies) *Enumerator {
	return &Enumerator{log: log, deps: deps}
}

// Enumerate returns the selectable windows in OS enumeration order.
func (e *Enumerator) Enumerate() []Descriptor {
	names := make(map[uint32]string)
	var out []Descriptor

	for _, w := range e.deps.Windows.TopLevelWindows() {
		if !Selectable(w) || w.Pid == e.deps.SelfPid {
			continue
		}

		name, ok := names[w.Pid]
		if !ok {
			n, err := e.deps.Processes.ProcessName(w.Pid)
			if err != nil {
				e.log.Trace("Skipping window with unreadable process",
					slog.Uint64("hwnd", uint64(w.Hwnd)),
					slog.Uint64("pid", uint64(w.Pid)),
					slog.Any("error", err),
				)
				continue
			}

			name = process.NormalizeName(n)
			names[w.Pid] = name
		}

		if IsShellProcess(name) {
			continue
		}

		// Closed between EnumWindows and now
		if !e.deps.Windows.IsWindow(w.Hwnd) {
			continue
		}

		out = append(out, Descriptor{
			Index:       len(out) + 1,
			Hwnd:        w.Hwnd,
			Title:       w.Title,
			ProcessName: name,
			Pid:         w.Pid,
		})
	}

	e.log.Debug("Enumerated windows", slog.Int("count", len(out)))
	return out
}

// ByIndex looks up descriptors by their 1-based indexes.
// Unknown indexes are returned separately.
func ByIndex(list []Descriptor, indexes []int) (found []Descriptor, missing []int) {
	for _, idx := range indexes {
		if idx < 1 || idx > len(list) {
			missing = append(missing, idx)
			continue
		}

		found = append(found, list[idx-1])
	}

	return found, missing
}
