package present

// Surface is anything that can display rendered body content, such as the
// detail viewport.
type Surface interface {
	SetContent(string)
}

// HTMLBinding pushes an HTML string into a Surface whenever the bound value
// changes. Content is always sanitized and rendered first; the surface never
// sees raw service-supplied markup.
type HTMLBinding struct {
	surface Surface
	value   string
	bound   bool
}

func NewHTMLBinding(s Surface) *HTMLBinding {
	return &HTMLBinding{surface: s}
}

// Set binds value. It reports whether the surface was updated, which only
// happens for the first value and for changes.
func (b *HTMLBinding) Set(value string) bool {
	if b.bound && value == b.value {
		return false
	}
	b.value = value
	b.bound = true
	b.surface.SetContent(RenderHTML(value))
	return true
}

// Value returns the last bound HTML, unsanitized.
func (b *HTMLBinding) Value() string { return b.value }

// Reset unbinds the current value so the next Set always pushes.
func (b *HTMLBinding) Reset() {
	b.value = ""
	b.bound = false
}
