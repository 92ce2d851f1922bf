package duckdbsql

func (p *Parser) parseSelectStatement() *SelectStmt {
	stmt := &SelectStmt{}
	if p.accept(TOKEN_WITH) {
		stmt.With = &WithClause{Recursive: p.accept(TOKEN_RECURSIVE)}
		stmt.With.CTEs = list(p, p.parseCTE)
	}
	stmt.Body = p.parseSelectBody()
	return stmt
}

// parseCTE parses name [(col, ...)] AS [[NOT] MATERIALIZED] (query).
func (p *Parser) parseCTE() *CTE {
	cte := &CTE{}
	var ok bool
	if cte.Name, ok = p.name("CTE name"); !ok {
		return cte
	}
	if p.accept(TOKEN_LPAREN) {
		cte.Columns = p.parseColumnAliasList()
		p.want(TOKEN_RPAREN)
	}
	p.want(TOKEN_AS)

	// Materialization hints are accepted and dropped.
	if !p.acceptWord("MATERIALIZED") && p.is(TOKEN_NOT) && p.isWord(1, "MATERIALIZED") {
		p.advance()
		p.advance()
	}

	p.want(TOKEN_LPAREN)
	cte.Select = p.parseSelectStatement()
	p.want(TOKEN_RPAREN)
	return cte
}

// parseSelectBody parses a chain of cores joined by set operations. The
// chain nests to the right.
func (p *Parser) parseSelectBody() *SelectBody {
	body := &SelectBody{Left: p.parseSelectCore()}
	switch p.cur().Type {
	case TOKEN_UNION:
		p.advance()
		if p.accept(TOKEN_ALL) {
			body.Op, body.All = SetOpUnionAll, true
		} else {
			body.Op = SetOpUnion
			p.accept(TOKEN_DISTINCT)
		}
	case TOKEN_INTERSECT:
		p.advance()
		body.Op, body.All = SetOpIntersect, p.accept(TOKEN_ALL)
	case TOKEN_EXCEPT:
		p.advance()
		body.Op, body.All = SetOpExcept, p.accept(TOKEN_ALL)
	default:
		return body
	}

	if p.accept(TOKEN_BY) {
		if body.ByName = p.acceptWord("NAME"); !body.ByName {
			p.failf("expected NAME after BY in set operation")
		}
	}
	body.Right = p.parseSelectBody()
	return body
}

func (p *Parser) parseSelectCore() *SelectCore {
	sc := &SelectCore{}
	if !p.want(TOKEN_SELECT) {
		return sc
	}
	if sc.Distinct = p.accept(TOKEN_DISTINCT); !sc.Distinct {
		p.accept(TOKEN_ALL)
	}
	sc.Columns = list(p, p.parseSelectItem)
	if p.accept(TOKEN_FROM) {
		sc.From = &FromClause{Source: p.parseTableRef()}
		sc.From.Joins = p.parseJoins()
	}

	if p.accept(TOKEN_WHERE) {
		sc.Where = p.parseExpression()
	}
	if p.accept(TOKEN_GROUP) {
		p.want(TOKEN_BY)
		if sc.GroupByAll = p.accept(TOKEN_ALL); !sc.GroupByAll {
			sc.GroupBy = p.parseExpressionList()
		}
	}
	if p.accept(TOKEN_HAVING) {
		sc.Having = p.parseExpression()
	}
	if p.accept(TOKEN_WINDOW) {
		sc.Windows = list(p, p.parseWindowDef)
	}
	if p.accept(TOKEN_QUALIFY) {
		sc.Qualify = p.parseExpression()
	}
	if p.accept(TOKEN_ORDER) {
		p.want(TOKEN_BY)
		if sc.OrderByAll = p.accept(TOKEN_ALL); sc.OrderByAll {
			if sc.OrderByAllDesc = p.accept(TOKEN_DESC); !sc.OrderByAllDesc {
				p.accept(TOKEN_ASC)
			}
		} else {
			sc.OrderBy = p.parseOrderByList()
		}
	}
	if p.accept(TOKEN_LIMIT) {
		sc.Limit = p.parseExpression()
	}
	if p.accept(TOKEN_OFFSET) {
		sc.Offset = p.parseExpression()
	}
	return sc
}

// parseWindowDef parses name AS (spec) from a WINDOW clause.
func (p *Parser) parseWindowDef() WindowDef {
	var def WindowDef
	if p.is(TOKEN_IDENT) {
		def.Name = p.advance().Literal
	} else {
		p.failf("expected window name")
	}
	p.want(TOKEN_AS)
	p.want(TOKEN_LPAREN)
	def.Spec = p.parseWindowBody()
	p.want(TOKEN_RPAREN)
	return def
}

func (p *Parser) parseSelectItem() SelectItem {
	var item SelectItem
	switch {
	case p.accept(TOKEN_STAR):
		item.Star = true
		item.Modifiers = p.parseStarModifiers()
		return item

	case p.is(TOKEN_IDENT) && p.peekIs(1, TOKEN_DOT) && p.peekIs(2, TOKEN_STAR):
		item.TableStar = p.advance().Literal
		p.advance()
		p.advance()
		item.Modifiers = p.parseStarModifiers()
		return item

	case p.is(TOKEN_IDENT) && p.peekIs(1, TOKEN_COLON):
		// DuckDB prefix alias: name: expr
		item.Alias = p.advance().Literal
		p.advance()
		item.Expr = p.parseExpression()
		return item
	}

	item.Expr = p.parseExpression()
	switch {
	case p.accept(TOKEN_AS):
		if p.isName() || p.is(TOKEN_STRING) {
			item.Alias = p.advance().Literal
		} else {
			p.failf("expected alias after AS")
		}
	case p.is(TOKEN_IDENT):
		item.Alias = p.advance().Literal
	}
	return item
}
