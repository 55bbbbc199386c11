package enforcer

import (
	"slices"

	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
)

// AllowSet is the ordered set of windows permitted during a session, unique by handle.
// Windows are only ever added; a closed window simply stops validating.
type AllowSet struct {
	items []enumerator.Descriptor
}

// NewAllowSet creates a set from descriptors, dropping duplicate handles.
func NewAllowSet(descs ...enumerator.Descriptor) *AllowSet {
	s := &AllowSet{}
	for _, d := range descs {
		s.Add(d)
	}

	return s
}

// Add appends d unless its handle is already present. It reports whether d was added.
func (s *AllowSet) Add(d enumerator.Descriptor) bool {
	if d.Hwnd == 0 || s.Contains(d.Hwnd) {
		return false
	}

	s.items = append(s.items, d)
	return true
}

// Contains reports whether hwnd is allowed.
func (s *AllowSet) Contains(hwnd uintptr) bool {
	return slices.ContainsFunc(s.items, func(d enumerator.Descriptor) bool { return d.Hwnd == hwnd })
}

// Handles returns the allowed handles in insertion order.
func (s *AllowSet) Handles() []uintptr {
	out := make([]uintptr, len(s.items))
	for i, d := range s.items {
		out[i] = d.Hwnd
	}

	return out
}

// Descriptors returns a copy of the allowed windows.
func (s *AllowSet) Descriptors() []enumerator.Descriptor {
	return slices.Clone(s.items)
}

// Len returns the number of allowed windows.
func (s *AllowSet) Len() int {
	return len(s.items)
}
