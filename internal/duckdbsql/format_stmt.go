package duckdbsql

func (p *printer) selectStmt(stmt *SelectStmt) {
	if stmt == nil {
		return
	}
	if w := stmt.With; w != nil && len(w.CTEs) > 0 {
		p.printf("WITH %s", not(w.Recursive, "RECURSIVE "))
		for i, cte := range w.CTEs {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			p.printf("%i", cte.Name)
			if len(cte.Columns) > 0 {
				p.printf("(%i)", cte.Columns)
			}
			p.printf(" AS (%v)", cte.Select)
		}
		p.buf.WriteByte(' ')
	}
	p.selectBody(stmt.Body)
}

func (p *printer) selectBody(body *SelectBody) {
	for ; body != nil; body = body.Right {
		p.selectCore(body.Left)
		if body.Op == SetOpNone {
			return
		}
		p.printf(" %s", body.Op)
		if body.All && body.Op != SetOpUnionAll {
			p.buf.WriteString(" ALL")
		}
		if body.ByName {
			p.buf.WriteString(" BY NAME")
		}
		p.buf.WriteByte(' ')
	}
}

func (p *printer) selectCore(sc *SelectCore) {
	if sc == nil {
		return
	}
	p.printf("SELECT %s%v", not(sc.Distinct, "DISTINCT "), sc.Columns)
	if sc.From != nil {
		p.printf(" FROM %v", sc.From.Source)
		p.joins(sc.From.Joins)
	}
	if sc.Where != nil {
		p.printf(" WHERE %v", sc.Where)
	}
	switch {
	case sc.GroupByAll:
		p.buf.WriteString(" GROUP BY ALL")
	case len(sc.GroupBy) > 0:
		p.printf(" GROUP BY %v", sc.GroupBy)
	}
	if sc.Having != nil {
		p.printf(" HAVING %v", sc.Having)
	}
	for i, w := range sc.Windows {
		if i == 0 {
			p.buf.WriteString(" WINDOW ")
		} else {
			p.buf.WriteString(", ")
		}
		p.printf("%i AS (", w.Name)
		if w.Spec != nil {
			p.windowBody(w.Spec)
		}
		p.buf.WriteByte(')')
	}
	if sc.Qualify != nil {
		p.printf(" QUALIFY %v", sc.Qualify)
	}
	switch {
	case sc.OrderByAll:
		p.printf(" ORDER BY ALL%s", not(sc.OrderByAllDesc, " DESC"))
	case len(sc.OrderBy) > 0:
		p.printf(" ORDER BY %v", sc.OrderBy)
	}
	if sc.Limit != nil {
		p.printf(" LIMIT %v", sc.Limit)
	}
	if sc.Offset != nil {
		p.printf(" OFFSET %v", sc.Offset)
	}
}

func (p *printer) selectItem(item SelectItem) {
	switch {
	case item.Star:
		p.printf("*%v", item.Modifiers)
	case item.TableStar != "":
		p.printf("%i.*%v", item.TableStar, item.Modifiers)
	default:
		p.expr(item.Expr)
		p.alias(item.Alias)
	}
}

func (p *printer) alias(name string) {
	if name != "" {
		p.printf(" AS %i", name)
	}
}

func (p *printer) tableRef(ref TableRef) {
	switch t := ref.(type) {
	case *TableName:
		for _, q := range []string{t.Catalog, t.Schema} {
			if q != "" {
				p.printf("%i.", q)
			}
		}
		p.printf("%i", t.Name)
		p.alias(t.Alias)
	case *DerivedTable:
		p.printf("(%v)", t.Select)
		p.alias(t.Alias)
	case *LateralTable:
		p.printf("LATERAL (%v)", t.Select)
		p.alias(t.Alias)
	case *FuncTable:
		p.funcCall(t.Func)
		p.alias(t.Alias)
	case *JoinedTable:
		p.printf("(%v", t.Source)
		p.joins(t.Joins)
		p.buf.WriteByte(')')
	}
}

func (p *printer) joins(joins []*Join) {
	for _, j := range joins {
		p.join(j)
	}
}

func (p *printer) join(j *Join) {
	if j.Type == JoinComma {
		p.printf(", %v", j.Right)
		return
	}
	p.printf(" %s", not(j.Natural, "NATURAL "))
	if j.Type != JoinInner {
		p.printf("%s ", j.Type)
	}
	p.printf("JOIN %v", j.Right)
	switch {
	case j.Condition != nil:
		p.printf(" ON %v", j.Condition)
	case len(j.Using) > 0:
		p.printf(" USING (%i)", j.Using)
	}
}
