package ir

import (
	"fmt"

	"github.com/kperifds/wasmtaint/errs"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokReg
	tokIdent
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokSemi
	tokArrow // <-
	tokPlus
	tokEq
)

type token struct {
	kind tokenKind
	text string
	line int
}

// lex tokenizes the textual IR grammar (spec.md §6). Whitespace separates
// tokens; ';' terminates each function.
func lex(src string) ([]token, error) {
	var toks []token
	line := 1
	i := 0
	n := len(src)

	for i < n {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", line})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", line})
			i++
		case c == '{':
			toks = append(toks, token{tokLBrace, "{", line})
			i++
		case c == '}':
			toks = append(toks, token{tokRBrace, "}", line})
			i++
		case c == ';':
			toks = append(toks, token{tokSemi, ";", line})
			i++
		case c == '=':
			toks = append(toks, token{tokEq, "=", line})
			i++
		case c == '+':
			toks = append(toks, token{tokPlus, "+", line})
			i++
		case c == '<' && i+1 < n && src[i+1] == '-':
			toks = append(toks, token{tokArrow, "<-", line})
			i += 2
		case c == '%':
			j := i + 1
			if j < n && src[j] == '-' {
				j++
			}
			start := j
			for j < n && (isDigit(src[j]) || isAlnum(src[j])) {
				j++
			}
			if start == j {
				return nil, errs.New(errs.KindParse, "ir.lex", fmt.Errorf("line %d: empty register name", line))
			}
			toks = append(toks, token{tokReg, src[i:j], line})
			i = j
		case isDigit(c) || (c == '-' && i+1 < n && isDigit(src[i+1])):
			j := i
			if src[j] == '-' {
				j++
			}
			for j < n && (isDigit(src[j]) || src[j] == '.') {
				j++
			}
			// exponent
			if j < n && (src[j] == 'e' || src[j] == 'E') {
				k := j + 1
				if k < n && (src[k] == '+' || src[k] == '-') {
					k++
				}
				if k < n && isDigit(src[k]) {
					for k < n && isDigit(src[k]) {
						k++
					}
					j = k
				}
			}
			toks = append(toks, token{tokNumber, src[i:j], line})
			i = j
		case isAlpha(c) || c == '_':
			j := i
			for j < n && (isAlnum(src[j]) || src[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, src[i:j], line})
			i = j
		default:
			return nil, errs.New(errs.KindParse, "ir.lex", fmt.Errorf("line %d: unexpected character %q", line, c))
		}
	}

	toks = append(toks, token{tokEOF, "", line})

	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isAlpha(c) || isDigit(c) }

// keyword reports whether an identifier token is exactly kw, per the
// grammar in spec.md §6.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && t.text == kw
}
