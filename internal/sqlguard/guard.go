package sqlguard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultView   = "vista_muy_interesante"
	DefaultMaxLen = 4000
)

var DefaultColumns = []string{"region", "enfermedad", "num_casos"}

var (
	ErrEmpty              = errors.New("empty query")
	ErrTooLong            = errors.New("query too long")
	ErrNotSelect          = errors.New("only SELECT statements are allowed")
	ErrMultipleStatements = errors.New("multiple statements are not allowed")
	ErrComment            = errors.New("comments are not allowed")
	ErrForbiddenKeyword   = errors.New("forbidden keyword")
	ErrUnknownTable       = errors.New("table not allowed")
	ErrUnknownIdentifier  = errors.New("identifier not allowed")
	ErrBindParameter      = errors.New("bind parameters are not allowed")
	ErrSyntax             = errors.New("syntax error")
)

// AllowList names the only relation a query may read and the columns it may
// reference.
type AllowList struct {
	View    string
	Columns []string
	MaxLen  int
}

func (a *AllowList) Validate() error {
	if a.View == "" {
		a.View = DefaultView
	}
	if len(a.Columns) == 0 {
		a.Columns = DefaultColumns
	}
	if a.MaxLen == 0 {
		a.MaxLen = DefaultMaxLen
	}
	return nil
}

// Guard validates generated SQL against an allow-list.
type Guard struct {
	view    string
	columns map[string]struct{}
	maxLen  int
}

func New(allow AllowList) (*Guard, error) {
	if err := allow.Validate(); err != nil {
		return nil, err
	}
	cols := make(map[string]struct{}, len(allow.Columns))
	for _, c := range allow.Columns {
		cols[strings.ToLower(c)] = struct{}{}
	}
	return &Guard{
		view:    strings.ToLower(allow.View),
		columns: cols,
		maxLen:  allow.MaxLen,
	}, nil
}

// Default returns a guard for the statistics view.
func Default() *Guard {
	g, _ := New(AllowList{})
	return g
}

func (g *Guard) View() string {
	return g.view
}

// Validate checks generated SQL and returns it cleaned. Bind parameters are
// rejected since generated queries are executed without arguments.
func (g *Guard) Validate(sql string) (string, error) {
	return g.validate(sql, false)
}

// ValidateTemplate checks a fixed parameterized query. It behaves like Validate
// but accepts $n placeholders.
func (g *Guard) ValidateTemplate(sql string) (string, error) {
	return g.validate(sql, true)
}

func (g *Guard) validate(sql string, allowParams bool) (string, error) {
	sql = cleanSQL(sql)
	if sql == "" {
		return "", ErrEmpty
	}
	if len(sql) > g.maxLen {
		return "", fmt.Errorf("%w: %d > %d", ErrTooLong, len(sql), g.maxLen)
	}

	toks, err := lex(sql)
	if err != nil {
		return "", err
	}
	if len(toks) == 0 || !toks[0].is(tokWord, "SELECT") {
		return "", ErrNotSelect
	}

	aliases, err := g.collectRelations(toks)
	if err != nil {
		return "", err
	}

	for i, tok := range toks {
		switch tok.kind {
		case tokParam:
			if !allowParams {
				return "", fmt.Errorf("%w: %s", ErrBindParameter, tok.text)
			}
		case tokWord, tokQuotedIdent:
			if err := g.checkIdentifier(toks, i, aliases); err != nil {
				return "", err
			}
		}
	}
	return sql, nil
}

// collectRelations checks every FROM and JOIN target and returns the aliases
// introduced in the statement, both for the view and for output columns.
func (g *Guard) collectRelations(toks []token) (map[string]struct{}, error) {
	aliases := map[string]struct{}{}
	for i, tok := range toks {
		if tok.kind == tokWord {
			if _, ok := forbiddenKeywords[tok.upper()]; ok {
				return nil, fmt.Errorf("%w: %s", ErrForbiddenKeyword, tok.upper())
			}
		}

		switch {
		case tok.is(tokWord, "AS"):
			if i+1 < len(toks) && isIdent(toks[i+1]) {
				aliases[strings.ToLower(toks[i+1].text)] = struct{}{}
			}

		case tok.is(tokWord, "FROM"), tok.is(tokWord, "JOIN"):
			if i+1 >= len(toks) {
				return nil, fmt.Errorf("%w: missing relation after %s", ErrSyntax, tok.upper())
			}
			next := toks[i+1]
			end := i + 2
			if next.is(tokPunct, "(") {
				end = matchParen(toks, i+1) + 1
				if end == 0 {
					return nil, fmt.Errorf("%w: unbalanced parentheses", ErrSyntax)
				}
			} else {
				if !isIdent(next) || strings.ToLower(next.text) != g.view {
					return nil, fmt.Errorf("%w: %s", ErrUnknownTable, next.text)
				}
				if end < len(toks) && toks[end].is(tokPunct, ".") {
					return nil, fmt.Errorf("%w: %s.%s", ErrUnknownTable, next.text, tokText(toks, end+1))
				}
			}
			// FROM relation [AS] alias
			if end < len(toks) && toks[end].is(tokWord, "AS") {
				end++
			}
			if end < len(toks) && isIdent(toks[end]) {
				aliases[strings.ToLower(toks[end].text)] = struct{}{}
				end++
			}
			if end < len(toks) && toks[end].is(tokPunct, ",") {
				return nil, fmt.Errorf("%w: comma joins", ErrUnknownTable)
			}
		}

		// ") AS t" and ") t" name derived tables.
		if tok.is(tokPunct, ")") && i+1 < len(toks) && toks[i+1].kind == tokWord && !isKeyword(toks[i+1]) {
			aliases[strings.ToLower(toks[i+1].text)] = struct{}{}
		}
	}
	return aliases, nil
}

func (g *Guard) checkIdentifier(toks []token, i int, aliases map[string]struct{}) error {
	tok := toks[i]
	name := strings.ToLower(tok.text)

	if tok.kind == tokWord && isKeyword(tok) {
		return nil
	}
	if tok.kind == tokWord && i+1 < len(toks) && toks[i+1].is(tokPunct, "(") {
		if _, ok := allowedFunctions[tok.upper()]; ok {
			return nil
		}
		return fmt.Errorf("%w: function %s", ErrUnknownIdentifier, tok.text)
	}
	// Type names after a :: cast.
	if i >= 2 && toks[i-1].is(tokPunct, ":") && toks[i-2].is(tokPunct, ":") {
		if _, ok := castTypes[tok.upper()]; ok {
			return nil
		}
		return fmt.Errorf("%w: type %s", ErrUnknownIdentifier, tok.text)
	}
	if name == g.view {
		return nil
	}
	if _, ok := g.columns[name]; ok {
		return nil
	}
	if _, ok := aliases[name]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownIdentifier, tok.text)
}

func isIdent(t token) bool {
	return t.kind == tokQuotedIdent || (t.kind == tokWord && !isKeyword(t))
}

func isKeyword(t token) bool {
	if t.kind != tokWord {
		return false
	}
	_, ok := keywords[t.upper()]
	return ok
}

func tokText(toks []token, i int) string {
	if i < len(toks) {
		return toks[i].text
	}
	return ""
}

// matchParen returns the index of the parenthesis closing the one at open, or
// -1 when it is unbalanced.
func matchParen(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case toks[i].is(tokPunct, "("):
			depth++
		case toks[i].is(tokPunct, ")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
