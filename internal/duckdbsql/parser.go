package duckdbsql

import (
	"errors"
	"fmt"
	"strings"
)

// Parser is a recursive-descent parser over a fully lexed token stream.
// It records the first error and keeps going; later errors are usually
// consequences of the first and are dropped.
type Parser struct {
	toks []Token
	i    int
	err  error
}

// NewParser lexes sql and returns a parser positioned at its first token.
func NewParser(sql string) *Parser {
	lx := NewLexer(sql)
	var toks []Token
	for {
		tok := lx.NextToken()
		toks = append(toks, tok)
		if tok.Type == TOKEN_EOF {
			break
		}
	}
	return &Parser{toks: toks}
}

// Parse parses exactly one query. A single trailing semicolon is allowed.
func Parse(sql string) (*SelectStmt, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New("empty SQL")
	}
	p := NewParser(sql)

	var stmt *SelectStmt
	switch tok := p.cur(); tok.Type {
	case TOKEN_SELECT, TOKEN_WITH:
		stmt = p.parseSelectStatement()
	case TOKEN_INSERT, TOKEN_UPDATE, TOKEN_DELETE, TOKEN_CREATE, TOKEN_DROP, TOKEN_ALTER, TOKEN_SET:
		p.failf("unsupported statement: %s", tok.Type)
	default:
		p.failf("unexpected token at start of statement: %s", tok.Type)
	}
	if p.err != nil {
		return nil, p.err
	}

	p.accept(TOKEN_SEMICOLON)
	switch tok := p.cur(); tok.Type {
	case TOKEN_EOF:
		return stmt, nil
	case TOKEN_SELECT, TOKEN_WITH:
		return nil, errors.New("multi-statement queries are not allowed")
	default:
		return nil, fmt.Errorf("parse error at offset %d: unexpected token %q after statement", tok.Pos, tok.Literal)
	}
}

// ParseExpr parses a standalone expression, such as a calculated column or
// a measure definition.
func ParseExpr(sql string) (Expr, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New("empty expression")
	}
	p := NewParser(sql)
	e := p.parseExpression()
	if p.err != nil {
		return nil, p.err
	}
	if tok := p.cur(); tok.Type != TOKEN_EOF {
		return nil, fmt.Errorf("parse error at offset %d: unexpected token %q after expression", tok.Pos, tok.Literal)
	}
	return e, nil
}

func (p *Parser) cur() Token { return p.at(0) }

// at returns the token n positions ahead; past the end it is EOF.
func (p *Parser) at(n int) Token {
	if i := p.i + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

// advance consumes the current token and returns it.
func (p *Parser) advance() Token {
	tok := p.cur()
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return tok
}

// is reports whether the current token is any of types.
func (p *Parser) is(types ...TokenType) bool {
	return p.peekIs(0, types...)
}

func (p *Parser) peekIs(n int, types ...TokenType) bool {
	t := p.at(n).Type
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

// accept consumes the current token when it has type t.
func (p *Parser) accept(t TokenType) bool {
	if p.is(t) {
		p.advance()
		return true
	}
	return false
}

// acceptWord consumes an identifier spelled word, ignoring case.
func (p *Parser) acceptWord(word string) bool {
	if p.isWord(0, word) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) isWord(n int, word string) bool {
	tok := p.at(n)
	return tok.Type == TOKEN_IDENT && strings.EqualFold(tok.Literal, word)
}

// want consumes a token of type t or records an error.
func (p *Parser) want(t TokenType) bool {
	if p.accept(t) {
		return true
	}
	p.failf("unexpected token %s, expected %s", p.cur().Type, t)
	return false
}

func (p *Parser) failf(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("parse error at offset %d: %s", p.cur().Pos, fmt.Sprintf(format, args...))
	}
}

// name consumes and returns a name: an identifier or a soft keyword.
func (p *Parser) name(what string) (string, bool) {
	if !p.isName() {
		p.failf("expected %s, got %s", what, p.cur().Type)
		return "", false
	}
	return p.advance().Literal, true
}

// isName reports whether the current token can be used as a name.
func (p *Parser) isName() bool {
	return p.is(TOKEN_IDENT) || isSoftKeyword(p.cur().Type)
}

// list parses one or more comma-separated items.
func list[T any](p *Parser, item func() T) []T {
	out := []T{item()}
	for p.accept(TOKEN_COMMA) {
		out = append(out, item())
	}
	return out
}

// isSoftKeyword reports whether a keyword only has meaning in a narrow
// context and can otherwise name a column, alias or function.
func isSoftKeyword(t TokenType) bool {
	switch t {
	case TOKEN_FIRST, TOKEN_LAST, TOKEN_NULLS, TOKEN_FILTER, TOKEN_CURRENT,
		TOKEN_ROW, TOKEN_ROWS, TOKEN_RANGE, TOKEN_GROUPS, TOKEN_PARTITION,
		TOKEN_PRECEDING, TOKEN_FOLLOWING, TOKEN_UNBOUNDED, TOKEN_REPLACE,
		TOKEN_EXCLUDE, TOKEN_RECURSIVE:
		return true
	}
	return false
}
