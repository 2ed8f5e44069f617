package present

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Tags kept by SanitizeHTML. Everything else is dropped, but its text stays.
var allowedTags = map[string]bool{
	"a": true, "b": true, "i": true, "u": true, "em": true, "strong": true,
	"small": true, "sub": true, "sup": true, "s": true, "font": true, "center": true,
	"p": true, "br": true, "div": true, "span": true, "hr": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"table": true, "thead": true, "tbody": true, "tfoot": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "code": true,
}

// Elements dropped together with their content.
var droppedElements = map[string]bool{
	"script": true, "style": true, "title": true, "noscript": true, "template": true,
	"iframe": true, "frame": true, "frameset": true, "object": true, "embed": true, "applet": true,
	"form": true, "textarea": true, "select": true, "button": true,
	"svg": true, "math": true, "audio": true, "video": true, "canvas": true,
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "frame": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

var allowedAttrs = map[string]bool{
	"href": true, "title": true, "alt": true, "colspan": true, "rowspan": true, "align": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "center": true, "blockquote": true,
	"ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
	"table": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// SanitizeHTML filters untrusted mail HTML through an allow-list. Scripts,
// styles, embedded frames, forms, images, event handler and style
// attributes are removed; links survive only with http, https or mailto
// targets. The result is well-formed enough for RenderHTML and is safe to
// hand to any HTML surface.
func SanitizeHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return b.String()
		}
		tok := z.Token()
		name := strings.ToLower(tok.Data)
		switch tt {
		case html.TextToken:
			if skip == 0 {
				b.WriteString(tok.String())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			if droppedElements[name] {
				if tt == html.StartTagToken && !voidElements[name] {
					skip++
				}
				continue
			}
			if skip > 0 || !allowedTags[name] {
				continue
			}
			tok.Data = name
			tok.Attr = cleanAttrs(tok.Attr)
			b.WriteString(tok.String())
		case html.EndTagToken:
			if droppedElements[name] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 || !allowedTags[name] || voidElements[name] {
				continue
			}
			tok.Data = name
			b.WriteString(tok.String())
		}
	}
}

func cleanAttrs(attrs []html.Attribute) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if a.Namespace != "" || !allowedAttrs[key] {
			continue
		}
		if key == "href" {
			if !safeURL(a.Val) {
				continue
			}
		}
		a.Key = key
		out = append(out, a)
	}
	return out
}

func safeURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return true
	}
	return false
}

// RenderHTML sanitizes s and flattens it to readable text for a terminal
// surface. Block elements become line breaks, list items get bullets and
// link targets follow the link text. Control characters are stripped after
// entity decoding.
func RenderHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(SanitizeHTML(s)))
	var b strings.Builder
	pre := 0
	var hrefs []string
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()
		switch tt {
		case html.TextToken:
			text := tok.Data
			if pre == 0 {
				text = collapseSpace(text)
				if atLineStart(&b) {
					text = strings.TrimLeft(text, " ")
				}
			}
			b.WriteString(text)
		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.Data {
			case "br":
				b.WriteString("\n")
			case "hr":
				b.WriteString("\n────────\n")
			case "li":
				b.WriteString("\n• ")
			case "td", "th":
				b.WriteString("  ")
			case "pre":
				pre++
				b.WriteString("\n")
			case "a":
				hrefs = append(hrefs, attr(tok, "href"))
			default:
				if blockTags[tok.Data] {
					b.WriteString("\n")
				}
			}
		case html.EndTagToken:
			switch tok.Data {
			case "pre":
				if pre > 0 {
					pre--
				}
				b.WriteString("\n")
			case "a":
				if n := len(hrefs); n > 0 {
					href := hrefs[n-1]
					hrefs = hrefs[:n-1]
					if href != "" && !strings.HasPrefix(strings.ToLower(href), "mailto:") {
						b.WriteString(" <" + href + ">")
					}
				}
			default:
				if blockTags[tok.Data] {
					b.WriteString("\n")
				}
			}
		}
	}
	return tidyLines(StripControl(b.String()))
}

// TextAsHTML wraps a plain-text body so it can go through the same HTML
// binding as HTML bodies without losing its line breaks.
func TextAsHTML(text string) string {
	return "<pre>" + html.EscapeString(text) + "</pre>"
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func atLineStart(b *strings.Builder) bool {
	s := b.String()
	return s == "" || s[len(s)-1] == '\n'
}

func collapseSpace(s string) string {
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return " "
	}
	out := strings.Join(fields, " ")
	if unicode.IsSpace(rune(s[0])) {
		out = " " + out
	}
	if unicode.IsSpace(rune(s[len(s)-1])) {
		out += " "
	}
	return out
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = strings.Join(lines, "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.Trim(s, "\n")
}
