// Package natsort orders strings the way people read them: case is ignored,
// runs of digits compare by magnitude ("item2" < "item10") and text runs are
// compared with a locale collator.
package natsort

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collators keep scratch buffers, so each call borrows one.
var collators = sync.Pool{
	New: func() any {
		return collate.New(language.Und, collate.IgnoreCase, collate.IgnoreWidth)
	},
}

// Compare returns -1, 0 or 1. It is a total order: strings that only differ
// in case or leading zeros are tie-broken deterministically.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)

	la, lb := strings.ToLower(a), strings.ToLower(b)
	ra, rb := la, lb
	zeroTie := 0
	for ra != "" && rb != "" {
		ca, da := nextChunk(ra)
		cb, db := nextChunk(rb)
		ra, rb = ra[len(ca):], rb[len(cb):]

		var r int
		switch {
		case da && db:
			r = compareDigits(ca, cb)
			if r == 0 && zeroTie == 0 {
				// fewer leading zeros first
				zeroTie = sign(len(ca) - len(cb))
			}
		default:
			r = c.CompareString(ca, cb)
		}
		if r != 0 {
			return r
		}
	}
	switch {
	case ra == "" && rb != "":
		return -1
	case ra != "" && rb == "":
		return 1
	case zeroTie != 0:
		return zeroTie
	}
	if r := strings.Compare(la, lb); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// Less is Compare(a, b) < 0, convenient for sort.Slice.
func Less(a, b string) bool { return Compare(a, b) < 0 }

// nextChunk returns the leading run of digits or non-digits in s.
func nextChunk(s string) (string, bool) {
	first, _ := utf8.DecodeRuneInString(s)
	digits := unicode.IsDigit(first) && first < utf8.RuneSelf
	for i, r := range s {
		if (unicode.IsDigit(r) && r < utf8.RuneSelf) != digits {
			return s[:i], digits
		}
	}
	return s, digits
}

// compareDigits compares two ASCII digit runs by numeric value without
// converting, so runs longer than int64 still order correctly.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return sign(len(a) - len(b))
	}
	return strings.Compare(a, b)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
