package duckdbsql

// joinKeywords maps a join keyword to its type and whether OUTER may follow.
var joinKeywords = map[TokenType]struct {
	typ   JoinType
	outer bool
}{
	TOKEN_INNER:      {JoinInner, false},
	TOKEN_RIGHT:      {JoinRight, true},
	TOKEN_FULL:       {JoinFull, true},
	TOKEN_CROSS:      {JoinCross, false},
	TOKEN_SEMI:       {JoinSemi, false},
	TOKEN_ANTI:       {JoinAnti, false},
	TOKEN_POSITIONAL: {JoinPositional, false},
}

func (p *Parser) parseTableRef() TableRef {
	switch {
	case p.accept(TOKEN_LATERAL):
		lt := &LateralTable{}
		lt.Select = p.parseParenQuery()
		lt.Alias = p.parseTableAlias()
		return lt
	case p.is(TOKEN_LPAREN) && p.peekIs(1, TOKEN_SELECT, TOKEN_WITH):
		dt := &DerivedTable{}
		dt.Select = p.parseParenQuery()
		dt.Alias = p.parseTableAlias()
		return dt
	case p.accept(TOKEN_LPAREN):
		// A parenthesized join tree; (t) on its own is just t.
		jt := &JoinedTable{Source: p.parseTableRef()}
		jt.Joins = p.parseJoins()
		p.want(TOKEN_RPAREN)
		if len(jt.Joins) == 0 {
			return jt.Source
		}
		return jt
	}
	return p.parseNamedTable()
}

func (p *Parser) parseParenQuery() *SelectStmt {
	p.want(TOKEN_LPAREN)
	q := p.parseSelectStatement()
	p.want(TOKEN_RPAREN)
	return q
}

// parseNamedTable parses [catalog.][schema.]name [alias] or a table
// function call [schema.]fn(args) [alias].
func (p *Parser) parseNamedTable() TableRef {
	if !p.isName() && !(isKeywordType(p.cur().Type) && p.peekIs(1, TOKEN_LPAREN)) {
		p.failf("expected table name, got %s", p.cur().Type)
		return &TableName{}
	}
	parts := []string{p.advance().Literal}
	for p.accept(TOKEN_DOT) {
		if !p.is(TOKEN_IDENT) && !isKeywordType(p.cur().Type) {
			p.failf("expected name after '.', got %s", p.cur().Type)
			return &TableName{}
		}
		parts = append(parts, p.advance().Literal)
	}
	if len(parts) > 3 {
		p.failf("too many parts in table name: %d", len(parts))
		return &TableName{}
	}

	last := len(parts) - 1
	if p.is(TOKEN_LPAREN) {
		fn := p.parseFuncCall(parts[last], "")
		if last > 0 {
			fn.Schema = parts[last-1]
		}
		return &FuncTable{Func: fn, Alias: p.parseTableAlias()}
	}

	t := &TableName{Name: parts[last]}
	if last >= 1 {
		t.Schema = parts[last-1]
	}
	if last == 2 {
		t.Catalog = parts[0]
	}
	t.Alias = p.parseTableAlias()
	return t
}

// parseTableAlias parses an optional [AS] alias. Only a plain identifier
// is taken as an alias without AS.
func (p *Parser) parseTableAlias() string {
	if p.accept(TOKEN_AS) {
		alias, _ := p.name("alias after AS")
		return alias
	}
	if p.is(TOKEN_IDENT) {
		return p.advance().Literal
	}
	return ""
}

func (p *Parser) parseJoins() []*Join {
	var joins []*Join
	for j := p.parseJoin(); j != nil; j = p.parseJoin() {
		joins = append(joins, j)
	}
	return joins
}

// parseJoin parses one join, or returns nil when none follows.
func (p *Parser) parseJoin() *Join {
	if p.accept(TOKEN_COMMA) {
		return &Join{Type: JoinComma, Right: p.parseTableRef()}
	}

	j := &Join{Natural: p.accept(TOKEN_NATURAL)}
	switch t := p.cur().Type; {
	case t == TOKEN_LEFT:
		p.advance()
		switch {
		case p.accept(TOKEN_SEMI):
			j.Type = JoinLeftSemi
		case p.accept(TOKEN_ANTI):
			j.Type = JoinLeftAnti
		default:
			j.Type = JoinLeft
			p.accept(TOKEN_OUTER)
		}
	case t == TOKEN_JOIN:
		j.Type = JoinInner
	default:
		kw, ok := joinKeywords[t]
		if !ok {
			if !j.Natural {
				return nil
			}
			j.Type = JoinInner
			break
		}
		p.advance()
		j.Type = kw.typ
		if kw.outer {
			p.accept(TOKEN_OUTER)
		}
	}

	if !p.want(TOKEN_JOIN) {
		return nil
	}
	j.Right = p.parseTableRef()

	switch {
	case j.Natural, j.Type == JoinCross, j.Type == JoinPositional:
	case p.accept(TOKEN_ON):
		j.Condition = p.parseExpression()
	case p.accept(TOKEN_USING):
		p.want(TOKEN_LPAREN)
		j.Using = list(p, func() string {
			col, _ := p.name("column name in USING clause")
			return col
		})
		p.want(TOKEN_RPAREN)
	}
	return j
}

// parseColumnAliasList parses col, col, ... after an already consumed '('.
func (p *Parser) parseColumnAliasList() []string {
	var cols []string
	for p.isName() {
		cols = append(cols, p.advance().Literal)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	return cols
}
