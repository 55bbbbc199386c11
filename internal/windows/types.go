package windows

// Rect mirrors the Win32 RECT layout returned by GetWindowRect.
type Rect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int32 { return r.Right - r.Left }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// WindowInfo describes a top-level window as seen during EnumWindows.
type WindowInfo struct {
	Hwnd  uintptr
	Title string
	Pid   uint32
	Class string
	Owner uintptr

	Visible    bool
	ToolWindow bool // WS_EX_TOOLWINDOW
	AppWindow  bool // WS_EX_APPWINDOW
}

// Hotkey is a parsed RegisterHotKey modifier/virtual-key pair.
type Hotkey struct {
	Modifiers uint32
	Key       uint32
}

// RegisterHotKey modifiers
const (
	MOD_ALT      = 0x0001
	MOD_CONTROL  = 0x0002
	MOD_SHIFT    = 0x0004
	MOD_WIN      = 0x0008
	MOD_NOREPEAT = 0x4000
)

// Virtual-key codes accepted in hotkey strings. Letters and digits use their
// ASCII value; F1 through F24 are consecutive from VK_F1.
const (
	VK_TAB    = 0x09
	VK_RETURN = 0x0D
	VK_PAUSE  = 0x13
	VK_ESCAPE = 0x1B
	VK_SPACE  = 0x20
	VK_PRIOR  = 0x21
	VK_NEXT   = 0x22
	VK_END    = 0x23
	VK_HOME   = 0x24
	VK_LEFT   = 0x25
	VK_UP     = 0x26
	VK_RIGHT  = 0x27
	VK_DOWN   = 0x28
	VK_INSERT = 0x2D
	VK_DELETE = 0x2E
	VK_F1     = 0x70
)

// Console control event types
const (
	CTRL_C_EVENT        = 0
	CTRL_BREAK_EVENT    = 1
	CTRL_CLOSE_EVENT    = 2
	CTRL_LOGOFF_EVENT   = 5
	CTRL_SHUTDOWN_EVENT = 6
)

// GetCtrlTypeName returns a human-readable name for a control event type
func GetCtrlTypeName(ctrlType uint32) string {
	switch ctrlType {
	case CTRL_C_EVENT:
		return "CTRL_C"
	case CTRL_BREAK_EVENT:
		return "CTRL_BREAK"
	case CTRL_CLOSE_EVENT:
		return "CTRL_CLOSE"
	case CTRL_LOGOFF_EVENT:
		return "CTRL_LOGOFF"
	case CTRL_SHUTDOWN_EVENT:
		return "CTRL_SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}
