package hotkey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

var modifierNames = map[string]uint32{
	"ctrl":    windows.MOD_CONTROL,
	"control": windows.MOD_CONTROL,
	"alt":     windows.MOD_ALT,
	"shift":   windows.MOD_SHIFT,
	"win":     windows.MOD_WIN,
	"super":   windows.MOD_WIN,
}

var keyNames = map[string]uint32{
	"tab":      windows.VK_TAB,
	"enter":    windows.VK_RETURN,
	"return":   windows.VK_RETURN,
	"pause":    windows.VK_PAUSE,
	"esc":      windows.VK_ESCAPE,
	"escape":   windows.VK_ESCAPE,
	"space":    windows.VK_SPACE,
	"pageup":   windows.VK_PRIOR,
	"pagedown": windows.VK_NEXT,
	"end":      windows.VK_END,
	"home":     windows.VK_HOME,
	"left":     windows.VK_LEFT,
	"up":       windows.VK_UP,
	"right":    windows.VK_RIGHT,
	"down":     windows.VK_DOWN,
	"insert":   windows.VK_INSERT,
	"delete":   windows.VK_DELETE,
}

// Parse turns a string such as "ctrl+alt+q" into a hotkey. At least one
// modifier is required and MOD_NOREPEAT is always set.
func Parse(s string) (windows.Hotkey, error) {
	parts := strings.Split(strings.ToLower(strings.ReplaceAll(s, " ", "")), "+")
	if len(parts) < 2 {
		return windows.Hotkey{}, fmt.Errorf("%w: %q needs a modifier and a key", ErrInvalidHotkey, s)
	}

	var mods uint32
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifierNames[p]
		if !ok {
			return windows.Hotkey{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidHotkey, p)
		}

		if mods&m != 0 {
			return windows.Hotkey{}, fmt.Errorf("%w: duplicate modifier %q", ErrInvalidHotkey, p)
		}
		mods |= m
	}

	key, err := parseKey(parts[len(parts)-1])
	if err != nil {
		return windows.Hotkey{}, err
	}

	return windows.Hotkey{Modifiers: mods | windows.MOD_NOREPEAT, Key: key}, nil
}

func parseKey(k string) (uint32, error) {
	if len(k) == 1 {
		c := k[0]
		switch {
		case c >= 'a' && c <= 'z':
			return uint32(c - 'a' + 'A'), nil
		case c >= '0' && c <= '9':
			return uint32(c), nil
		}
	}

	if vk, ok := keyNames[k]; ok {
		return vk, nil
	}

	if n, ok := strings.CutPrefix(k, "f"); ok {
		if i, err := strconv.Atoi(n); err == nil && i >= 1 && i <= 24 {
			return windows.VK_F1 + uint32(i-1), nil
		}
	}

	return 0, fmt.Errorf("%w: unknown key %q", ErrInvalidHotkey, k)
}

// Format renders hk in the form accepted by Parse.
func Format(hk windows.Hotkey) string {
	var parts []string

	for _, m := range []struct {
		bit  uint32
		name string
	}{
		{windows.MOD_CONTROL, "ctrl"},
		{windows.MOD_ALT, "alt"},
		{windows.MOD_SHIFT, "shift"},
		{windows.MOD_WIN, "win"},
	} {
		if hk.Modifiers&m.bit != 0 {
			parts = append(parts, m.name)
		}
	}

	return strings.Join(append(parts, keyName(hk.Key)), "+")
}

func keyName(vk uint32) string {
	switch {
	case vk >= 'A' && vk <= 'Z', vk >= '0' && vk <= '9':
		return strings.ToLower(string(rune(vk)))
	case vk >= windows.VK_F1 && vk < windows.VK_F1+24:
		return "f" + strconv.Itoa(int(vk-windows.VK_F1+1))
	}

	// Prefer the shorter alias when two names map to one key
	best := ""
	for name, code := range keyNames {
		if code == vk && (best == "" || len(name) < len(best)) {
			best = name
		}
	}

	if best != "" {
		return best
	}

	return fmt.Sprintf("0x%02x", vk)
}
