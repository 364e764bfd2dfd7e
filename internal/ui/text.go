package ui

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Provider output ends up on the terminal verbatim, so escape sequences and
// broken UTF-8 have to be scrubbed before rendering.
var ansiRE = regexp.MustCompile(`\x1b(?:` +
	`\[[0-9;]*[A-Za-z]` + // CSI
	`|` +
	`\].*?(?:\x1b\\|\x07)` + // OSC
	`|` +
	`[()][A-B0-2]` + // charset designation
	`|` +
	`[#()*+\-./][A-Za-z0-9]` + // remaining two-byte escapes
	`)`)

// Clean makes an item string safe to render: ANSI sequences are stripped
// and invalid UTF-8 bytes become U+FFFD.
func Clean(s string) string {
	s = ansiRE.ReplaceAllString(s, "")
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			b.WriteRune(utf8.RuneError)
			i++
		} else {
			b.WriteRune(r)
			i += size
		}
	}
	return b.String()
}

// Truncate shortens s to maxWidth display columns, eliding the middle so
// both the start and the distinguishing tail of long titles stay visible.
// Width-aware for CJK and emoji.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}

	const ellipsis = "…"
	if maxWidth < 3 {
		return prefixToWidth(s, maxWidth)
	}

	remaining := maxWidth - 1
	head := prefixToWidth(s, (remaining+1)/2)
	tail := suffixToWidth(s, remaining/2)
	return head + ellipsis + tail
}

func prefixToWidth(s string, maxWidth int) string {
	w := 0
	for i, r := range s {
		rw := runewidth.RuneWidth(r)
		if w+rw > maxWidth {
			return s[:i]
		}
		w += rw
	}
	return s
}

func suffixToWidth(s string, maxWidth int) string {
	runes := []rune(s)
	w := 0
	start := len(runes)
	for i := len(runes) - 1; i >= 0; i-- {
		rw := runewidth.RuneWidth(runes[i])
		if w+rw > maxWidth {
			break
		}
		w += rw
		start = i
	}
	return string(runes[start:])
}
