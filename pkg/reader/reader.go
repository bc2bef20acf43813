// Package reader implements the lexer/parser collaborator spec.md §1 names
// as out of core scope ("the lexer/parser producing token trees and the AST
// builder"). It turns REPL input text directly into Values built from
// pkg/heap — pairs for lists, vecs for #(...), strings, symbols, and
// immediates — the way a Lisp reader conventionally treats source text as
// data.
package reader

import (
	"fmt"
	"math"
	"strings"

	"github.com/oisee/nanvm/pkg/heap"
	"github.com/oisee/nanvm/pkg/interner"
	"github.com/oisee/nanvm/pkg/numeric"
	"github.com/oisee/nanvm/pkg/value"
)

// Reader parses text into Values against a given heap and symbol table.
type Reader struct {
	H    *heap.Heap
	Syms *interner.Table
}

// New returns a Reader over h and syms.
func New(h *heap.Heap, syms *interner.Table) *Reader {
	return &Reader{H: h, Syms: syms}
}

// ReadAll parses every top-level form in src.
func (r *Reader) ReadAll(src string) ([]value.Value, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, r: r}
	var forms []value.Value
	for p.pos < len(p.toks) {
		v, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, v)
	}
	return forms, nil
}

// Balanced reports whether src has at least as many ')' as '(' — the REPL
// uses this to decide whether to keep reading more lines before parsing
// (ported from the original source's paren-counting read loop; see
// cmd/nanvm).
func Balanced(src string) bool {
	depth := 0
	for _, c := range src {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return depth <= 0
}

// --- lexer ----------------------------------------------------------------

type tokKind int

const (
	tokLParen tokKind = iota
	tokRParen
	tokVecOpen
	tokQuote
	tokString
	tokAtom
)

type token struct {
	kind tokKind
	text string
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '\'', '"', ';':
		return true
	}
	return false
}

func lex(src string) ([]token, error) {
	var toks []token
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ';':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '\'':
			toks = append(toks, token{tokQuote, "'"})
			i++
		case c == '#' && i+1 < n && src[i+1] == '(':
			toks = append(toks, token{tokVecOpen, "#("})
			i += 2
		case c == '"':
			j := i + 1
			var sb strings.Builder
			for j < n && src[j] != '"' {
				if src[j] == '\\' && j+1 < n {
					sb.WriteByte(src[j+1])
					j += 2
					continue
				}
				sb.WriteByte(src[j])
				j++
			}
			if j >= n {
				return nil, fmt.Errorf("reader: unterminated string literal")
			}
			toks = append(toks, token{tokString, sb.String()})
			i = j + 1
		default:
			j := i
			for j < n && !isDelim(src[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("reader: unexpected character %q", c)
			}
			toks = append(toks, token{tokAtom, src[i:j]})
			i = j
		}
	}
	return toks, nil
}

// --- parser -----------------------------------------------------------------

type parser struct {
	toks []token
	pos  int
	r    *Reader
}

func (p *parser) parseForm() (value.Value, error) {
	if p.pos >= len(p.toks) {
		return 0, fmt.Errorf("reader: unexpected end of input")
	}
	t := p.toks[p.pos]
	switch t.kind {
	case tokLParen:
		p.pos++
		return p.parseList()
	case tokVecOpen:
		p.pos++
		return p.parseVec()
	case tokQuote:
		p.pos++
		return p.parseQuote()
	case tokString:
		p.pos++
		return p.r.H.NewString(t.text)
	case tokAtom:
		p.pos++
		return p.r.atomValue(t.text)
	case tokRParen:
		return 0, fmt.Errorf("reader: unexpected )")
	default:
		return 0, fmt.Errorf("reader: unknown token")
	}
}

func (p *parser) parseQuote() (value.Value, error) {
	inner, err := p.parseForm()
	if err != nil {
		return 0, err
	}
	quoteID := p.r.Syms.Intern("quote")
	quoteSym, err := value.Symbol(quoteID)
	if err != nil {
		return 0, err
	}
	rest, err := p.r.H.NewPair(inner, value.Nil())
	if err != nil {
		return 0, err
	}
	return p.r.H.NewPair(quoteSym, rest)
}

func (p *parser) parseList() (value.Value, error) {
	if p.pos >= len(p.toks) {
		return 0, fmt.Errorf("reader: unexpected end of input in list")
	}
	if p.toks[p.pos].kind == tokRParen {
		p.pos++
		return value.Nil(), nil
	}
	if p.toks[p.pos].kind == tokAtom && p.toks[p.pos].text == "." {
		p.pos++
		tail, err := p.parseForm()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokRParen {
			return 0, fmt.Errorf("reader: expected ) after dotted tail")
		}
		p.pos++
		return tail, nil
	}

	head, err := p.parseForm()
	if err != nil {
		return 0, err
	}
	rest, err := p.parseList()
	if err != nil {
		return 0, err
	}
	return p.r.H.NewPair(head, rest)
}

func (p *parser) parseVec() (value.Value, error) {
	var items []value.Value
	for {
		if p.pos >= len(p.toks) {
			return 0, fmt.Errorf("reader: unexpected end of input in vector")
		}
		if p.toks[p.pos].kind == tokRParen {
			p.pos++
			break
		}
		v, err := p.parseForm()
		if err != nil {
			return 0, err
		}
		items = append(items, v)
	}
	return p.r.H.NewVec(items)
}

func (r *Reader) atomValue(text string) (value.Value, error) {
	switch text {
	case "#t":
		return value.True(), nil
	case "#f":
		return value.False(), nil
	}
	if n, err := numeric.ParseToken(text); err == nil {
		return r.boxNumber(n)
	}
	id := r.Syms.Intern(text)
	return value.Symbol(id)
}

// boxNumber picks the Value representation for a parsed Number: a plain
// Integer or Float immediate when it fits, otherwise a heap String holding
// the canonical text (spec.md §6.3: the exact binding is the evaluator's —
// here the reader's — choice, not the core's).
func (r *Reader) boxNumber(n numeric.Number) (value.Value, error) {
	switch num := n.(type) {
	case numeric.Exact:
		if num.Imag.Sign() == 0 && num.Real.IsInt() {
			bi := num.Real.Num()
			if bi.IsInt64() {
				i64 := bi.Int64()
				if i64 >= math.MinInt32 && i64 <= math.MaxInt32 {
					return value.Integer(int32(i64)), nil
				}
			}
		}
		return r.H.NewString(num.String())
	case numeric.Inexact:
		if num.Imag == 0 {
			return value.Float(num.Real), nil
		}
		return r.H.NewString(num.String())
	default:
		return 0, fmt.Errorf("reader: unrecognized number representation %T", n)
	}
}
