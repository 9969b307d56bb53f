package sqlguard

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuotedIdent
	tokString
	tokNumber
	tokParam
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// upper is the case-folded text of word tokens.
func (t token) upper() string {
	return strings.ToUpper(t.text)
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && strings.EqualFold(t.text, text)
}

// lex splits a statement into tokens. String literals are kept whole so their
// contents never reach identifier checks. Comments and semicolons are reported
// as errors instead of tokens.
//
// Only standard literals are accepted. Prefixed forms (E'', U&'', B'', X'')
// and backslashes inside literals are rejected since the database would end
// the literal somewhere else than the lexer does.
func lex(sql string) ([]token, error) {
	var toks []token
	rs := []rune(sql)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case r == '-' && i+1 < len(rs) && rs[i+1] == '-',
			r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			return nil, fmt.Errorf("%w: %q", ErrComment, string(rs[i:i+2]))

		case r == ';':
			return nil, ErrMultipleStatements

		case r == '\'':
			if prefixed(rs, i) {
				return nil, fmt.Errorf("%w: prefixed string literal", ErrSyntax)
			}
			j := i + 1
			var sb strings.Builder
			for {
				if j >= len(rs) {
					return nil, fmt.Errorf("%w: unterminated string literal", ErrSyntax)
				}
				if rs[j] == '\'' {
					if j+1 < len(rs) && rs[j+1] == '\'' {
						sb.WriteRune('\'')
						j += 2
						continue
					}
					break
				}
				if rs[j] == '\\' {
					return nil, fmt.Errorf("%w: backslash in string literal", ErrSyntax)
				}
				sb.WriteRune(rs[j])
				j++
			}
			toks = append(toks, token{kind: tokString, text: sb.String()})
			i = j + 1

		case r == '"':
			if prefixed(rs, i) {
				return nil, fmt.Errorf("%w: prefixed quoted identifier", ErrSyntax)
			}
			j := i + 1
			for j < len(rs) && rs[j] != '"' {
				j++
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("%w: unterminated quoted identifier", ErrSyntax)
			}
			if j+1 < len(rs) && rs[j+1] == '"' {
				return nil, fmt.Errorf("%w: escaped quote in identifier", ErrSyntax)
			}
			toks = append(toks, token{kind: tokQuotedIdent, text: string(rs[i+1 : j])})
			i = j + 1

		case r == '$':
			j := i + 1
			for j < len(rs) && unicode.IsDigit(rs[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("%w: %q", ErrSyntax, "$")
			}
			toks = append(toks, token{kind: tokParam, text: string(rs[i:j])})
			i = j

		case unicode.IsDigit(r):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: string(rs[i:j])})
			i = j

		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: string(rs[i:j])})
			i = j

		default:
			toks = append(toks, token{kind: tokPunct, text: string(r)})
			i++
		}
	}
	return toks, nil
}

// prefixed reports whether the quote at i is glued to a preceding word or &.
func prefixed(rs []rune, i int) bool {
	if i == 0 {
		return false
	}
	p := rs[i-1]
	return p == '&' || p == '_' || unicode.IsLetter(p) || unicode.IsDigit(p)
}
