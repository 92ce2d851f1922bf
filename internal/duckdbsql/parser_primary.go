package duckdbsql

import "strings"

// intervalUnits are the unit words accepted after INTERVAL 'n'.
var intervalUnits = map[string]bool{}

func init() {
	for _, u := range []string{
		"YEAR", "MONTH", "WEEK", "DAY", "HOUR", "MINUTE", "SECOND",
		"MILLISECOND", "MICROSECOND", "QUARTER",
	} {
		intervalUnits[u] = true
		intervalUnits[u+"S"] = true
	}
}

// typeSuffixes extend a type name: DOUBLE PRECISION, TIMESTAMP WITH TIME ZONE.
var typeSuffixes = map[string]bool{
	"PRECISION": true, "VARYING": true, "ZONE": true,
	"WITHOUT": true, "WITH": true, "TIME": true,
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur()
	switch tok.Type {
	case TOKEN_NUMBER:
		p.advance()
		return &Literal{Type: LiteralNumber, Value: tok.Literal}
	case TOKEN_STRING:
		p.advance()
		return &Literal{Type: LiteralString, Value: tok.Literal}
	case TOKEN_TRUE, TOKEN_FALSE:
		p.advance()
		return &Literal{Type: LiteralBool, Value: strings.ToLower(tok.Type.String())}
	case TOKEN_NULL:
		p.advance()
		return &Literal{Type: LiteralNull, Value: "NULL"}
	case TOKEN_CASE:
		return p.parseCase()
	case TOKEN_CAST, TOKEN_TRY_CAST:
		return p.parseCast()
	case TOKEN_EXTRACT:
		return p.parseExtract()
	case TOKEN_NOT:
		p.advance()
		if p.is(TOKEN_EXISTS) {
			return p.parseExists(true)
		}
		return &UnaryExpr{Op: TOKEN_NOT, Expr: p.parsePrimary()}
	case TOKEN_EXISTS:
		return p.parseExists(false)
	case TOKEN_IDENT:
		return p.parseName()
	case TOKEN_LPAREN:
		p.advance()
		if p.is(TOKEN_SELECT, TOKEN_WITH) {
			sub := &SubqueryExpr{Select: p.parseSelectStatement()}
			p.want(TOKEN_RPAREN)
			return sub
		}
		inner := p.parseExpression()
		p.want(TOKEN_RPAREN)
		return &ParenExpr{Expr: inner}
	case TOKEN_STAR:
		p.advance()
		return &StarExpr{Modifiers: p.parseStarModifiers()}
	case TOKEN_LBRACKET:
		return p.parseListLiteral()
	case TOKEN_INTERVAL:
		p.advance()
		iv := &IntervalExpr{Value: p.parsePrimary()}
		if unit := strings.ToUpper(p.cur().Literal); p.is(TOKEN_IDENT) && intervalUnits[unit] {
			p.advance()
			iv.Unit = unit
		}
		return iv
	}

	// Soft keywords double as names, and any keyword directly followed by
	// '(' is a function name: left(s, 2), replace(s, 'a', 'b').
	if isSoftKeyword(tok.Type) || isKeywordType(tok.Type) && p.peekIs(1, TOKEN_LPAREN) {
		return p.parseName()
	}
	p.failf("unexpected token in expression: %s (%q)", tok.Type, tok.Literal)
	p.advance()
	return nil
}

// parseName parses what starts with a name: a column reference of any
// length, a qualified star, or a possibly schema-qualified function call.
func (p *Parser) parseName() Expr {
	parts := []string{p.advance().Literal}
	for p.accept(TOKEN_DOT) {
		if p.accept(TOKEN_STAR) {
			return &StarExpr{Table: parts[len(parts)-1], Modifiers: p.parseStarModifiers()}
		}
		// Any word is a valid name after a dot.
		if !p.is(TOKEN_IDENT) && !isKeywordType(p.cur().Type) {
			p.failf("expected name after '.', got %s", p.cur().Type)
			break
		}
		parts = append(parts, p.advance().Literal)
	}

	if p.is(TOKEN_LPAREN) {
		switch len(parts) {
		case 1:
			return p.parseFuncCall(parts[0], "")
		case 2:
			return p.parseFuncCall(parts[1], parts[0])
		}
	}
	return &ColumnRef{Parts: parts}
}

// parseFuncCall parses the argument list and trailing FILTER and OVER
// clauses of a call to name.
func (p *Parser) parseFuncCall(name, schema string) *FuncCall {
	fn := &FuncCall{Name: name, Schema: schema}
	p.want(TOKEN_LPAREN)

	switch {
	case p.is(TOKEN_STAR) && p.peekIs(1, TOKEN_RPAREN):
		p.advance()
		fn.Star = true
	case !p.is(TOKEN_RPAREN):
		fn.Distinct = p.accept(TOKEN_DISTINCT)
		fn.Args = p.parseExpressionList()
		if p.accept(TOKEN_ORDER) {
			p.want(TOKEN_BY)
			fn.OrderBy = p.parseOrderByList()
		}
	}
	p.want(TOKEN_RPAREN)

	if p.is(TOKEN_FILTER) && p.peekIs(1, TOKEN_LPAREN) {
		p.advance()
		p.advance()
		p.want(TOKEN_WHERE)
		fn.Filter = p.parseExpression()
		p.want(TOKEN_RPAREN)
	}
	if p.accept(TOKEN_OVER) {
		if p.is(TOKEN_IDENT) {
			fn.Window = &WindowSpec{Name: p.advance().Literal}
		} else {
			p.want(TOKEN_LPAREN)
			fn.Window = p.parseWindowBody()
			p.want(TOKEN_RPAREN)
		}
	}
	return fn
}

// parseWindowBody parses [PARTITION BY ...] [ORDER BY ...] [frame].
func (p *Parser) parseWindowBody() *WindowSpec {
	spec := &WindowSpec{}
	if p.accept(TOKEN_PARTITION) {
		p.want(TOKEN_BY)
		spec.PartitionBy = p.parseExpressionList()
	}
	if p.accept(TOKEN_ORDER) {
		p.want(TOKEN_BY)
		spec.OrderBy = p.parseOrderByList()
	}
	if p.is(TOKEN_ROWS, TOKEN_RANGE, TOKEN_GROUPS) {
		frame := &FrameSpec{Type: FrameType(p.advance().Type.String())}
		if p.accept(TOKEN_BETWEEN) {
			frame.Start = p.parseFrameBound()
			p.want(TOKEN_AND)
			frame.End = p.parseFrameBound()
		} else {
			frame.Start = p.parseFrameBound()
		}
		spec.Frame = frame
	}
	return spec
}

func (p *Parser) parseFrameBound() *FrameBound {
	switch {
	case p.accept(TOKEN_UNBOUNDED):
		switch {
		case p.accept(TOKEN_PRECEDING):
			return &FrameBound{Type: FrameUnboundedPreceding}
		case p.accept(TOKEN_FOLLOWING):
			return &FrameBound{Type: FrameUnboundedFollowing}
		}
		p.failf("expected PRECEDING or FOLLOWING after UNBOUNDED")
		return &FrameBound{}
	case p.accept(TOKEN_CURRENT):
		p.want(TOKEN_ROW)
		return &FrameBound{Type: FrameCurrentRow}
	}

	b := &FrameBound{Offset: p.parseBinary(PrecedenceAnd + 1)}
	switch {
	case p.accept(TOKEN_PRECEDING):
		b.Type = FrameExprPreceding
	case p.accept(TOKEN_FOLLOWING):
		b.Type = FrameExprFollowing
	default:
		p.failf("expected PRECEDING or FOLLOWING in frame bound")
	}
	return b
}

func (p *Parser) parseCase() Expr {
	p.advance()
	c := &CaseExpr{}
	if !p.is(TOKEN_WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.accept(TOKEN_WHEN) {
		var w WhenClause
		w.Condition = p.parseExpression()
		p.want(TOKEN_THEN)
		w.Result = p.parseExpression()
		c.Whens = append(c.Whens, w)
	}
	if len(c.Whens) == 0 {
		p.failf("CASE requires at least one WHEN")
	}
	if p.accept(TOKEN_ELSE) {
		c.Else = p.parseExpression()
	}
	p.want(TOKEN_END)
	return c
}

// parseCast parses CAST(x AS type) and TRY_CAST(x AS type).
func (p *Parser) parseCast() Expr {
	c := &CastExpr{TryCast: p.advance().Type == TOKEN_TRY_CAST}
	p.want(TOKEN_LPAREN)
	c.Expr = p.parseExpression()
	p.want(TOKEN_AS)
	c.TypeName = p.parseTypeName()
	p.want(TOKEN_RPAREN)
	return c
}

func (p *Parser) parseExtract() Expr {
	p.advance()
	p.want(TOKEN_LPAREN)
	ext := &ExtractExpr{Field: strings.ToUpper(p.advance().Literal)}
	p.want(TOKEN_FROM)
	ext.Expr = p.parseExpression()
	p.want(TOKEN_RPAREN)
	return ext
}

// parseTypeName reads a type name, upper-cased, with any multi-word suffix,
// parameter list and trailing [] kept.
func (p *Parser) parseTypeName() string {
	if !p.is(TOKEN_IDENT, TOKEN_INTERVAL) {
		p.failf("expected type name")
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(p.advance().Literal))

	for p.is(TOKEN_IDENT, TOKEN_WITH) && typeSuffixes[strings.ToUpper(p.cur().Literal)] {
		b.WriteString(" " + strings.ToUpper(p.advance().Literal))
	}

	if p.accept(TOKEN_LPAREN) {
		var params []string
		for depth := 1; !p.is(TOKEN_EOF); {
			tok := p.advance()
			if tok.Type == TOKEN_LPAREN {
				depth++
			}
			if tok.Type == TOKEN_RPAREN {
				if depth--; depth == 0 {
					break
				}
			}
			if tok.Type != TOKEN_COMMA {
				params = append(params, tok.Literal)
			}
		}
		b.WriteString("(" + strings.Join(params, ", ") + ")")
	}

	if p.is(TOKEN_LBRACKET) && p.peekIs(1, TOKEN_RBRACKET) {
		p.advance()
		p.advance()
		b.WriteString("[]")
	}
	return b.String()
}

func (p *Parser) parseExists(negated bool) Expr {
	p.advance()
	p.want(TOKEN_LPAREN)
	ex := &ExistsExpr{Not: negated, Select: p.parseSelectStatement()}
	p.want(TOKEN_RPAREN)
	return ex
}

func (p *Parser) parseOrderByList() []OrderByItem {
	return list(p, p.parseOrderByItem)
}

func (p *Parser) parseOrderByItem() OrderByItem {
	item := OrderByItem{Expr: p.parseExpression()}
	if !p.accept(TOKEN_ASC) {
		item.Desc = p.accept(TOKEN_DESC)
	}
	if p.accept(TOKEN_NULLS) {
		switch {
		case p.accept(TOKEN_FIRST):
			first := true
			item.NullsFirst = &first
		case p.accept(TOKEN_LAST):
			first := false
			item.NullsFirst = &first
		}
	}
	return item
}

func (p *Parser) parseListLiteral() Expr {
	p.advance()
	l := &ListLiteral{}
	if !p.is(TOKEN_RBRACKET) {
		l.Elements = p.parseExpressionList()
	}
	p.want(TOKEN_RBRACKET)
	return l
}

// parseStarModifiers parses any EXCLUDE and REPLACE clauses after a star.
func (p *Parser) parseStarModifiers() []StarModifier {
	var mods []StarModifier
	for {
		switch {
		case p.accept(TOKEN_EXCLUDE):
			mods = append(mods, p.parseExclude())
		case p.is(TOKEN_REPLACE) && p.peekIs(1, TOKEN_LPAREN):
			p.advance()
			mods = append(mods, p.parseReplace())
		default:
			return mods
		}
	}
}

// parseExclude parses EXCLUDE col or EXCLUDE (col, ...).
func (p *Parser) parseExclude() StarModifier {
	mod := &ExcludeModifier{}
	if !p.accept(TOKEN_LPAREN) {
		if col, ok := p.name("column name in EXCLUDE"); ok {
			mod.Columns = []string{col}
		}
		return mod
	}
	mod.Columns = list(p, func() string {
		col, _ := p.name("column name in EXCLUDE")
		return col
	})
	p.want(TOKEN_RPAREN)
	return mod
}

// parseReplace parses REPLACE (expr AS col, ...).
func (p *Parser) parseReplace() StarModifier {
	p.want(TOKEN_LPAREN)
	mod := &ReplaceModifier{}
	mod.Items = list(p, func() ReplaceItem {
		item := ReplaceItem{Expr: p.parseExpression()}
		p.want(TOKEN_AS)
		item.Alias, _ = p.name("column name in REPLACE")
		return item
	})
	p.want(TOKEN_RPAREN)
	return mod
}
