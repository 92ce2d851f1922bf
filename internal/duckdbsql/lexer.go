package duckdbsql

import (
	"strings"
	"unicode"
)

// Lexer splits SQL text into tokens. It scans bytes; any byte >= 0x80 is
// taken as part of an identifier so UTF-8 names pass through unchanged.
type Lexer struct {
	src string
	off int
}

// NewLexer creates a Lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src}
}

// operators is matched in order, so two-byte operators precede their
// one-byte prefixes.
var operators = []struct {
	text string
	typ  TokenType
}{
	{"::", TOKEN_DCOLON},
	{"//", TOKEN_DSLASH},
	{"||", TOKEN_DPIPE},
	{"==", TOKEN_EQ},
	{"!=", TOKEN_NE},
	{"<>", TOKEN_NE},
	{"<=", TOKEN_LE},
	{">=", TOKEN_GE},
	{"+", TOKEN_PLUS},
	{"-", TOKEN_MINUS},
	{"*", TOKEN_STAR},
	{"/", TOKEN_SLASH},
	{"%", TOKEN_MOD},
	{"=", TOKEN_EQ},
	{"<", TOKEN_LT},
	{">", TOKEN_GT},
	{".", TOKEN_DOT},
	{",", TOKEN_COMMA},
	{";", TOKEN_SEMICOLON},
	{"(", TOKEN_LPAREN},
	{")", TOKEN_RPAREN},
	{"[", TOKEN_LBRACKET},
	{"]", TOKEN_RBRACKET},
	{":", TOKEN_COLON},
}

// NextToken returns the next token. Once the input is exhausted it keeps
// returning TOKEN_EOF.
func (l *Lexer) NextToken() Token {
	l.skipSpace()
	pos := l.off
	tok := l.scan()
	tok.Pos = pos
	return tok
}

func (l *Lexer) scan() Token {
	if l.off >= len(l.src) {
		return Token{Type: TOKEN_EOF}
	}
	c := l.src[l.off]
	switch {
	case c == '\'':
		return l.quoted('\'', TOKEN_STRING)
	case c == '"':
		return l.quoted('"', TOKEN_IDENT)
	case isDigit(c) || c == '.' && isDigit(l.byteAt(1)):
		return Token{Type: TOKEN_NUMBER, Literal: l.number()}
	case isLetter(c) || c == '_':
		word := l.word()
		return Token{Type: lookupKeyword(strings.ToLower(word)), Literal: word}
	}

	rest := l.src[l.off:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			l.off += len(op.text)
			return Token{Type: op.typ, Literal: op.text}
		}
	}
	l.off++
	return Token{Type: TOKEN_ILLEGAL, Literal: string(c)}
}

func (l *Lexer) byteAt(i int) byte {
	if l.off+i < len(l.src) {
		return l.src[l.off+i]
	}
	return 0
}

// skipSpace skips whitespace, -- line comments and /* block comments */.
// An unterminated block comment runs to the end of the input.
func (l *Lexer) skipSpace() {
	for l.off < len(l.src) {
		rest := l.src[l.off:]
		switch {
		case strings.IndexByte(" \t\r\n\f", rest[0]) >= 0:
			l.off++
		case strings.HasPrefix(rest, "--"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				end = len(rest) - 1
			}
			l.off += end + 1
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				l.off = len(l.src)
				continue
			}
			l.off += end + 4
		default:
			return
		}
	}
}

// quoted reads a literal delimited by q, where a doubled q stands for
// itself. The literal is returned without its delimiters. A missing closing
// delimiter yields TOKEN_ILLEGAL.
func (l *Lexer) quoted(q byte, typ TokenType) Token {
	start := l.off
	var b strings.Builder
	for l.off++; l.off < len(l.src); l.off++ {
		c := l.src[l.off]
		if c != q {
			b.WriteByte(c)
			continue
		}
		if l.byteAt(1) == q {
			b.WriteByte(q)
			l.off++
			continue
		}
		l.off++
		return Token{Type: typ, Literal: b.String()}
	}
	return Token{Type: TOKEN_ILLEGAL, Literal: l.src[start:]}
}

func (l *Lexer) word() string {
	start := l.off
	for l.off < len(l.src) {
		c := l.src[l.off]
		if !isLetter(c) && !isDigit(c) && c != '_' && c != '$' {
			break
		}
		l.off++
	}
	return l.src[start:l.off]
}

// number reads an integer, decimal or exponent literal.
func (l *Lexer) number() string {
	start := l.off
	l.digits()
	if l.byteAt(0) == '.' && isDigit(l.byteAt(1)) {
		l.off++
		l.digits()
	}
	if c := l.byteAt(0); c == 'e' || c == 'E' {
		next := l.byteAt(1)
		switch {
		case isDigit(next):
			l.off++
			l.digits()
		case (next == '+' || next == '-') && isDigit(l.byteAt(2)):
			l.off += 2
			l.digits()
		}
	}
	return l.src[start:l.off]
}

func (l *Lexer) digits() {
	for isDigit(l.byteAt(0)) {
		l.off++
	}
}

func isLetter(ch byte) bool {
	return ch >= 0x80 || unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
