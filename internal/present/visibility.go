package present

import "errors"

// ErrNotSupported is returned by conversions that only run one way.
var ErrNotSupported = errors.New("present: reverse conversion not supported")

// Visibility is the display state of an optional UI element.
type Visibility int

const (
	Collapsed Visibility = iota
	Visible
)

func (v Visibility) String() string {
	if v == Visible {
		return "Visible"
	}
	return "Collapsed"
}

// ToVisibility maps a nullable flag to a visibility: only true is Visible.
func ToVisibility(flag *bool) Visibility {
	if flag == nil || !*flag {
		return Collapsed
	}
	return Visible
}

// FromVisibility always fails. Visibility is derived from data and never
// edited, so there is nothing to map back.
func FromVisibility(Visibility) (*bool, error) {
	return nil, ErrNotSupported
}

// Render returns s when v is Visible and "" when Collapsed, so a collapsed
// element takes no room.
func (v Visibility) Render(s string) string {
	if v == Visible {
		return s
	}
	return ""
}
