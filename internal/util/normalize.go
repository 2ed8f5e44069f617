package util

import (
	"net/mail"
	"strings"
)

// NormalizeAddress lowercases and trims an email address. Values like
// "Name <user@Example.COM>" are accepted. Returns the trimmed input if it
// does not parse.
func NormalizeAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(raw); err == nil && addr != nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(raw)
}

// DisplayName picks a label for a sender. The service-provided name wins;
// otherwise the local part of the address is title-cased,
// e.g. "jane.doe@x.com" -> "Jane Doe".
func DisplayName(name, address string) string {
	name = strings.Trim(strings.TrimSpace(name), `"'`)
	if name != "" {
		return name
	}
	normalized := NormalizeAddress(address)
	if at := strings.IndexByte(normalized, '@'); at > 0 {
		parts := strings.Split(normalized[:at], ".")
		out := parts[:0]
		for _, p := range parts {
			if p == "" {
				continue
			}
			out = append(out, strings.ToUpper(p[:1])+p[1:])
		}
		if len(out) > 0 {
			return strings.Join(out, " ")
		}
	}
	if normalized == "" {
		return "(unknown sender)"
	}
	return normalized
}
