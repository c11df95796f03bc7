package agent

import "strings"

const maxChatRunes = 256

// Sanitized is the result of cleaning an outbound chat line.
type Sanitized struct {
	Text    string
	Changed bool
	Removed int
}

func allowedChatRune(r rune) bool {
	return r != '§' && r >= ' ' && r != 0x7f
}

// SanitizeChat drops characters servers reject, turns line breaks and tabs
// into single spaces, collapses runs of spaces and caps the length.
func SanitizeChat(in string) Sanitized {
	trimmed := strings.TrimSpace(in)
	var b strings.Builder
	b.Grow(len(trimmed))
	res := Sanitized{}
	n := 0
	lastSpace := false
	runes := []rune(trimmed)
	for i, r := range runes {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			res.Removed++
			r = ' '
		case !allowedChatRune(r):
			res.Removed++
			continue
		}
		if r == ' ' {
			if lastSpace {
				continue
			}
			lastSpace = true
		} else {
			lastSpace = false
		}
		b.WriteRune(r)
		n++
		if n >= maxChatRunes {
			if i+1 < len(runes) {
				res.Changed = true
			}
			break
		}
	}
	res.Text = strings.TrimSpace(b.String())
	if res.Text != trimmed {
		res.Changed = true
	}
	return res
}
