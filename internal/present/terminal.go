package present

import (
	"strings"
	"unicode"
)

// StripControl removes C0 and C1 control characters, including ESC, so
// untrusted text cannot emit terminal escape sequences. Newlines and tabs
// are kept.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
