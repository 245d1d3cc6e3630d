package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLiteral
	tokAnd
	tokOr
	tokNot
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	text string
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of query"
	case tokLiteral:
		return strconv.Quote(t.text)
	}
	return "'" + t.text + "'"
}

// keywords are only recognised in upper case so lower-case words stay
// searchable.
var keywords = map[string]tokenKind{
	"AND": tokAnd,
	"OR":  tokOr,
	"NOT": tokNot,
}

func isSymbol(r rune) bool {
	return strings.ContainsRune(`&|!()"`, r)
}

func tokenize(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '"':
			end := i + 1
			for end < len(rs) && rs[end] != '"' {
				end++
			}
			if end >= len(rs) {
				return nil, fmt.Errorf("%w: unterminated quote", ErrSyntax)
			}
			toks = append(toks, token{kind: tokLiteral, text: string(rs[i+1 : end])})
			i = end + 1
		case r == '&' || r == '|':
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			j := i + 1
			for j < len(rs) && rs[j] == r {
				j++
			}
			toks = append(toks, token{kind: kind, text: string(rs[i:j])})
			i = j
		case r == '!':
			toks = append(toks, token{kind: tokNot, text: "!"})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokOpen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokClose, text: ")"})
			i++
		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) && !isSymbol(rs[j]) {
				j++
			}
			word := string(rs[i:j])
			if kind, ok := keywords[word]; ok {
				toks = append(toks, token{kind: kind, text: word})
			} else {
				toks = append(toks, token{kind: tokLiteral, text: word})
			}
			i = j
		}
	}
	return toks, nil
}
