// Package query parses the free-text boolean filters used on catalog fields.
//
// A query is a sequence of words and "quoted phrases" combined with AND, OR
// and NOT (or &, | and !) and grouped with parentheses. Adjacent operands
// are joined with AND. NOT binds tightest, then AND, then OR. Operands match
// as substrings of the field text.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// ErrSyntax is wrapped by every parse failure.
var ErrSyntax = errors.New("query syntax error")

type node interface {
	eval(text string) bool
	String() string
}

type literal struct{ s string }

func (n literal) eval(text string) bool { return strings.Contains(text, n.s) }
func (n literal) String() string        { return strconv.Quote(n.s) }

type and struct{ l, r node }

func (n and) eval(text string) bool { return n.l.eval(text) && n.r.eval(text) }
func (n and) String() string        { return "(" + n.l.String() + " & " + n.r.String() + ")" }

type or struct{ l, r node }

func (n or) eval(text string) bool { return n.l.eval(text) || n.r.eval(text) }
func (n or) String() string        { return "(" + n.l.String() + " | " + n.r.String() + ")" }

type not struct{ x node }

func (n not) eval(text string) bool { return !n.x.eval(text) }
func (n not) String() string        { return "!" + n.x.String() }

// Query is a compiled filter. The zero value and the result of parsing an
// empty string match everything.
type Query struct {
	root          node
	caseSensitive bool
}

// Parse compiles src. Unless caseSensitive is set, literals and the text
// they are matched against are case folded.
func Parse(src string, caseSensitive bool) (*Query, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	q := &Query{caseSensitive: caseSensitive}
	if len(toks) == 0 {
		return q, nil
	}
	if !caseSensitive {
		fold := cases.Fold()
		for i := range toks {
			if toks[i].kind == tokLiteral {
				toks[i].text = fold.String(toks[i].text)
			}
		}
	}

	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, p.peek())
	}
	q.root = root
	return q, nil
}

// MustParse is Parse for queries known to be valid; it panics otherwise.
func MustParse(src string, caseSensitive bool) *Query {
	q, err := Parse(src, caseSensitive)
	if err != nil {
		panic(err)
	}
	return q
}

// Empty reports whether the query matches everything.
func (q *Query) Empty() bool { return q == nil || q.root == nil }

// Match reports whether text satisfies the query.
func (q *Query) Match(text string) bool {
	if q.Empty() {
		return true
	}
	if !q.caseSensitive {
		text = cases.Fold().String(text)
	}
	return q.root.eval(text)
}

// MatchAny reports whether the query is satisfied by the items joined as one
// text, one item per line.
func (q *Query) MatchAny(items []string) bool {
	return q.Match(strings.Join(items, "\n"))
}

// String renders the fully parenthesized expression.
func (q *Query) String() string {
	if q.Empty() {
		return ""
	}
	return q.root.String()
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = or{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokAnd:
			p.next()
		case tokLiteral, tokNot, tokOpen:
			// implicit AND
		default:
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = and{left, right}
	}
}

func (p *parser) parseNot() (node, error) {
	if p.peek().kind == tokNot {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return not{x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokLiteral:
		return literal{t.text}, nil
	case tokOpen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokClose {
			return nil, fmt.Errorf("%w: expected ) but found %s", ErrSyntax, c)
		}
		return x, nil
	}
	return nil, fmt.Errorf("%w: expected a word or phrase but found %s", ErrSyntax, t)
}
