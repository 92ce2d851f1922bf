package duckdbsql

import "strings"

func (p *printer) expr(e Expr) {
	switch n := e.(type) {
	case *Literal:
		p.literal(n)
	case *ColumnRef:
		for i, part := range n.Parts {
			if i > 0 {
				p.buf.WriteByte('.')
			}
			p.printf("%i", part)
		}
	case *BinaryExpr:
		prec := binaryPrecedence(n.Op)
		p.operand(n.Left, prec, false)
		p.printf(" %s ", operatorString(n.Op))
		p.operand(n.Right, prec, true)
	case *UnaryExpr:
		p.unary(n)
	case *ParenExpr:
		p.printf("(%v)", n.Expr)
	case *FuncCall:
		p.funcCall(n)
	case *CaseExpr:
		p.buf.WriteString("CASE")
		if n.Operand != nil {
			p.printf(" %v", n.Operand)
		}
		for _, w := range n.Whens {
			p.printf(" WHEN %v THEN %v", w.Condition, w.Result)
		}
		if n.Else != nil {
			p.printf(" ELSE %v", n.Else)
		}
		p.buf.WriteString(" END")
	case *CastExpr:
		fn := "CAST"
		if n.TryCast {
			fn = "TRY_CAST"
		}
		p.printf("%s(%v AS %s)", fn, n.Expr, n.TypeName)
	case *TypeCastExpr:
		p.grouped(n.Expr)
		p.printf("::%s", n.TypeName)
	case *InExpr:
		p.printf("%v%s IN (", n.Expr, not(n.Not, " NOT"))
		if n.Query != nil {
			p.printf("%v)", n.Query)
		} else {
			p.printf("%v)", n.Values)
		}
	case *BetweenExpr:
		p.printf("%v%s BETWEEN %v AND %v", n.Expr, not(n.Not, " NOT"), n.Low, n.High)
	case *IsNullExpr:
		p.printf("%v IS %sNULL", n.Expr, not(n.Not, "NOT "))
	case *IsBoolExpr:
		val := "FALSE"
		if n.Value {
			val = "TRUE"
		}
		p.printf("%v IS %s%s", n.Expr, not(n.Not, "NOT "), val)
	case *LikeExpr:
		op := "LIKE"
		if n.ILike {
			op = "ILIKE"
		}
		p.printf("%v%s %s %v", n.Expr, not(n.Not, " NOT"), op, n.Pattern)
	case *ExtractExpr:
		p.printf("EXTRACT(%s FROM %v)", n.Field, n.Expr)
	case *ExistsExpr:
		p.printf("%sEXISTS (%v)", not(n.Not, "NOT "), n.Select)
	case *SubqueryExpr:
		p.printf("(%v)", n.Select)
	case *StarExpr:
		if n.Table != "" {
			p.printf("%i.", n.Table)
		}
		p.printf("*%v", n.Modifiers)
	case *IntervalExpr:
		p.printf("INTERVAL %v", n.Value)
		if n.Unit != "" {
			p.printf(" %s", n.Unit)
		}
	case *ListLiteral:
		p.printf("[%v]", n.Elements)
	case *IndexExpr:
		if n.IsSlice {
			p.printf("%v[%v:%v]", n.Expr, n.Start, n.Stop)
		} else {
			p.printf("%v[%v]", n.Expr, n.Index)
		}
	}
}

// not returns s when negated is set.
func not(negated bool, s string) string {
	if negated {
		return s
	}
	return ""
}

func (p *printer) literal(lit *Literal) {
	switch lit.Type {
	case LiteralString:
		p.printf("'%s'", strings.ReplaceAll(lit.Value, "'", "''"))
	case LiteralBool:
		p.buf.WriteString(strings.ToUpper(lit.Value))
	case LiteralNull:
		p.buf.WriteString("NULL")
	default:
		p.buf.WriteString(lit.Value)
	}
}

// operand writes one side of a binary expression, parenthesizing a nested
// binary expression that would otherwise bind differently. Parsed trees keep
// explicit ParenExpr nodes, so this only changes trees built in code.
func (p *printer) operand(e Expr, parentPrec int, right bool) {
	if child, ok := e.(*BinaryExpr); ok {
		prec := binaryPrecedence(child.Op)
		if prec < parentPrec || right && prec == parentPrec {
			p.printf("(%v)", child)
			return
		}
	}
	p.expr(e)
}

// grouped writes e, wrapped in parentheses when it is a binary expression.
func (p *printer) grouped(e Expr) {
	if _, ok := e.(*BinaryExpr); ok {
		p.printf("(%v)", e)
		return
	}
	p.expr(e)
}

func (p *printer) unary(u *UnaryExpr) {
	switch u.Op {
	case TOKEN_NOT:
		p.buf.WriteString("NOT ")
	case TOKEN_MINUS, TOKEN_PLUS:
		p.buf.WriteString(u.Op.String())
	default:
		p.buf.WriteString(operatorString(u.Op))
	}
	p.grouped(u.Expr)
}

func binaryPrecedence(op TokenType) int {
	switch op {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return PrecedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_MOD, TOKEN_DSLASH:
		return PrecedenceMultiply
	}
	return PrecedenceComparison
}

// operatorString renders op, preferring <> over != for inequality.
func operatorString(op TokenType) string {
	if op == TOKEN_NE {
		return "<>"
	}
	if name, ok := tokenNames[op]; ok {
		return name
	}
	return "?"
}

func (p *printer) funcCall(fn *FuncCall) {
	if fn.Schema != "" {
		p.printf("%i.", fn.Schema)
	}
	p.printf("%s(%s", fn.Name, not(fn.Distinct, "DISTINCT "))
	if fn.Star {
		p.buf.WriteByte('*')
	} else {
		p.printf("%v", fn.Args)
	}
	if len(fn.OrderBy) > 0 {
		p.printf(" ORDER BY %v", fn.OrderBy)
	}
	p.buf.WriteByte(')')
	if fn.Filter != nil {
		p.printf(" FILTER (WHERE %v)", fn.Filter)
	}
	if fn.Window != nil {
		p.printf(" OVER %v", fn.Window)
	}
}

// windowSpec writes an OVER target: a bare window name, or a parenthesized
// specification.
func (p *printer) windowSpec(w *WindowSpec) {
	if w == nil {
		return
	}
	if w.Name != "" && len(w.PartitionBy) == 0 && len(w.OrderBy) == 0 && w.Frame == nil {
		p.printf("%i", w.Name)
		return
	}
	p.buf.WriteByte('(')
	p.windowBody(w)
	p.buf.WriteByte(')')
}

func (p *printer) windowBody(w *WindowSpec) {
	sep := ""
	if w.Name != "" {
		p.printf("%i", w.Name)
		sep = " "
	}
	if len(w.PartitionBy) > 0 {
		p.printf("%sPARTITION BY %v", sep, w.PartitionBy)
		sep = " "
	}
	if len(w.OrderBy) > 0 {
		p.printf("%sORDER BY %v", sep, w.OrderBy)
		sep = " "
	}
	if fs := w.Frame; fs != nil {
		p.printf("%s%s", sep, fs.Type)
		if fs.End != nil {
			p.printf(" BETWEEN %v AND %v", fs.Start, fs.End)
		} else {
			p.printf(" %v", fs.Start)
		}
	}
}

func (p *printer) frameBound(b *FrameBound) {
	if b == nil {
		return
	}
	switch b.Type {
	case FrameExprPreceding, FrameExprFollowing:
		p.printf("%v %s", b.Offset, b.Type)
	default:
		p.printf("%s", b.Type)
	}
}

func (p *printer) orderByItem(item OrderByItem) {
	p.expr(item.Expr)
	if item.Desc {
		p.buf.WriteString(" DESC")
	}
	if item.NullsFirst != nil {
		if *item.NullsFirst {
			p.buf.WriteString(" NULLS FIRST")
		} else {
			p.buf.WriteString(" NULLS LAST")
		}
	}
}

func (p *printer) starModifier(m StarModifier) {
	switch m := m.(type) {
	case *ExcludeModifier:
		p.printf(" EXCLUDE (%i)", m.Columns)
	case *ReplaceModifier:
		p.buf.WriteString(" REPLACE (")
		for i, item := range m.Items {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			p.printf("%v AS %i", item.Expr, item.Alias)
		}
		p.buf.WriteByte(')')
	}
}
