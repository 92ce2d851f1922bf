package duckdbsql

// binaryOps holds the left-associative infix operators and how tightly
// each binds.
var binaryOps = map[TokenType]int{
	TOKEN_OR:     PrecedenceOr,
	TOKEN_AND:    PrecedenceAnd,
	TOKEN_EQ:     PrecedenceComparison,
	TOKEN_NE:     PrecedenceComparison,
	TOKEN_LT:     PrecedenceComparison,
	TOKEN_GT:     PrecedenceComparison,
	TOKEN_LE:     PrecedenceComparison,
	TOKEN_GE:     PrecedenceComparison,
	TOKEN_PLUS:   PrecedenceAddition,
	TOKEN_MINUS:  PrecedenceAddition,
	TOKEN_DPIPE:  PrecedenceAddition,
	TOKEN_STAR:   PrecedenceMultiply,
	TOKEN_SLASH:  PrecedenceMultiply,
	TOKEN_MOD:    PrecedenceMultiply,
	TOKEN_DSLASH: PrecedenceMultiply,
}

// predicateOps may follow NOT in infix position: a NOT IN (...).
var predicateOps = []TokenType{TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE}

func (p *Parser) parseExpression() Expr {
	return p.parseBinary(PrecedenceOr)
}

// parseBinary parses an expression whose operators all bind at least as
// tightly as minPrec.
func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	for left != nil {
		prec := p.infixPrecedence()
		if prec == PrecedenceNone || prec < minPrec {
			break
		}
		left = p.parseInfix(left, prec)
	}
	return left
}

func (p *Parser) infixPrecedence() int {
	t := p.cur().Type
	if prec, ok := binaryOps[t]; ok {
		return prec
	}
	switch {
	case p.is(TOKEN_IS) || p.is(predicateOps...):
		return PrecedenceComparison
	case t == TOKEN_NOT && p.peekIs(1, predicateOps...):
		return PrecedenceComparison
	case p.is(TOKEN_DCOLON, TOKEN_LBRACKET):
		return PrecedencePostfix
	}
	return PrecedenceNone
}

func (p *Parser) parseUnary() Expr {
	switch t := p.cur().Type; {
	case t == TOKEN_NOT && !p.peekIs(1, TOKEN_EXISTS):
		p.advance()
		return &UnaryExpr{Op: t, Expr: p.parseBinary(PrecedenceNot)}
	case t == TOKEN_MINUS || t == TOKEN_PLUS:
		p.advance()
		return &UnaryExpr{Op: t, Expr: p.parseBinary(PrecedenceUnary)}
	}
	return p.parsePrimary()
}

func (p *Parser) parseInfix(left Expr, prec int) Expr {
	switch p.cur().Type {
	case TOKEN_IS:
		return p.parseIs(left)
	case TOKEN_DCOLON:
		p.advance()
		return &TypeCastExpr{Expr: left, TypeName: p.parseTypeName()}
	case TOKEN_LBRACKET:
		return p.parseSubscript(left)
	case TOKEN_NOT:
		p.advance()
		return p.parsePredicate(left, true)
	case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return p.parsePredicate(left, false)
	}
	op := p.advance().Type
	return &BinaryExpr{Left: left, Op: op, Right: p.parseBinary(prec + 1)}
}

// parsePredicate parses the IN, BETWEEN, LIKE and ILIKE forms, with the
// leading NOT already consumed when negated is set.
func (p *Parser) parsePredicate(left Expr, negated bool) Expr {
	switch p.advance().Type {
	case TOKEN_IN:
		return p.parseIn(left, negated)
	case TOKEN_BETWEEN:
		low := p.parseBinary(PrecedenceAddition)
		p.want(TOKEN_AND)
		high := p.parseBinary(PrecedenceAddition)
		return &BetweenExpr{Expr: left, Not: negated, Low: low, High: high}
	case TOKEN_LIKE:
		return &LikeExpr{Expr: left, Not: negated, Pattern: p.parseBinary(PrecedenceAddition)}
	case TOKEN_ILIKE:
		return &LikeExpr{Expr: left, Not: negated, ILike: true, Pattern: p.parseBinary(PrecedenceAddition)}
	}
	p.failf("expected IN, BETWEEN, LIKE, or ILIKE after NOT")
	return left
}

func (p *Parser) parseIs(left Expr) Expr {
	p.advance()
	negated := p.accept(TOKEN_NOT)
	switch p.advance().Type {
	case TOKEN_NULL:
		return &IsNullExpr{Expr: left, Not: negated}
	case TOKEN_TRUE:
		return &IsBoolExpr{Expr: left, Not: negated, Value: true}
	case TOKEN_FALSE:
		return &IsBoolExpr{Expr: left, Not: negated}
	}
	p.failf("expected NULL, TRUE, or FALSE after IS")
	return left
}

func (p *Parser) parseIn(left Expr, negated bool) Expr {
	in := &InExpr{Expr: left, Not: negated}
	switch {
	case p.accept(TOKEN_LPAREN):
		if p.is(TOKEN_SELECT, TOKEN_WITH) {
			in.Query = p.parseSelectStatement()
		} else {
			in.Values = p.parseExpressionList()
		}
		p.want(TOKEN_RPAREN)
	case p.is(TOKEN_LBRACKET):
		in.Values = []Expr{p.parseListLiteral()}
	default:
		in.Values = []Expr{p.parsePrimary()}
	}
	return in
}

// parseSubscript parses x[i], x[a:b], x[:b] and x[a:].
func (p *Parser) parseSubscript(left Expr) Expr {
	p.advance()
	idx := &IndexExpr{Expr: left}
	if !p.is(TOKEN_COLON, TOKEN_RBRACKET) {
		idx.Index = p.parseExpression()
	}
	if p.accept(TOKEN_COLON) {
		idx.IsSlice = true
		idx.Start, idx.Index = idx.Index, nil
		if !p.is(TOKEN_RBRACKET) {
			idx.Stop = p.parseExpression()
		}
	}
	p.want(TOKEN_RBRACKET)
	return idx
}

// parseExpressionList parses comma-separated expressions, skipping any that
// failed to parse.
func (p *Parser) parseExpressionList() []Expr {
	var out []Expr
	for _, e := range list(p, p.parseExpression) {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
