package record

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	entityRe  = regexp.MustCompile(`^&(#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)
	numericRe = regexp.MustCompile(`&#([0-9]+|[xX][0-9a-fA-F]+);`)
)

// EscapeText encodes every rune outside printable ASCII as a numeric
// character reference. Markup tags and existing entities are copied through
// untouched so already-encoded text is not escaped twice.
func EscapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '<' && isTagStart(s, i):
			end := strings.IndexByte(s[i:], '>')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(s[i : i+end+1])
			i += end + 1
			continue
		case c == '&':
			if m := entityRe.FindString(s[i:]); m != "" {
				b.WriteString(m)
				i += len(m)
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == '\n' || r == '\t' || r == '\r' || (r >= 0x20 && r <= 0x7e) {
			b.WriteRune(r)
		} else {
			b.WriteString("&#")
			b.WriteString(strconv.Itoa(int(r)))
			b.WriteByte(';')
		}
		i += size
	}
	return b.String()
}

func isTagStart(s string, i int) bool {
	if i+1 >= len(s) {
		return false
	}
	c := s[i+1]
	return c == '/' || c == '!' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// UnescapeText decodes numeric character references back into runes.
// Named entities are markup and stay as they are.
func UnescapeText(s string) string {
	if !strings.Contains(s, "&#") {
		return s
	}
	return numericRe.ReplaceAllStringFunc(s, func(m string) string {
		body := m[2 : len(m)-1]
		var n int64
		var err error
		if body[0] == 'x' || body[0] == 'X' {
			n, err = strconv.ParseInt(body[1:], 16, 32)
		} else {
			n, err = strconv.ParseInt(body, 10, 32)
		}
		if err != nil || !utf8.ValidRune(rune(n)) {
			return m
		}
		return string(rune(n))
	})
}
