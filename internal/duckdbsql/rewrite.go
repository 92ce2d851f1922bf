package duckdbsql

import "fmt"

// RewriteFunc is called once per node during Rewrite, after the node's
// children have been rewritten. orig is the node as it appears in the input
// tree and keeps its pointer identity; node is a fresh copy that already holds
// the rewritten children. Return node to keep it, or any other Node to
// replace it. The replacement must fit the position: an Expr where an
// expression is expected, a TableRef in FROM, a *SelectStmt for queries.
type RewriteFunc func(orig, node Node) (Node, error)

// Rewrite rebuilds stmt bottom-up, calling fn on every statement, table
// reference and expression. The input tree is never modified.
func Rewrite(stmt *SelectStmt, fn RewriteFunc) (*SelectStmt, error) {
	r := &rewriter{fn: fn}
	return r.selectStmt(stmt)
}

// RewriteExpr rebuilds a standalone expression bottom-up.
func RewriteExpr(expr Expr, fn RewriteFunc) (Expr, error) {
	r := &rewriter{fn: fn}
	return r.expr(expr)
}

type rewriter struct {
	fn RewriteFunc
}

func (r *rewriter) selectStmt(s *SelectStmt) (*SelectStmt, error) {
	if s == nil {
		return nil, nil
	}
	out := &SelectStmt{}
	if s.With != nil {
		with := &WithClause{Recursive: s.With.Recursive}
		for _, cte := range s.With.CTEs {
			sel, err := r.selectStmt(cte.Select)
			if err != nil {
				return nil, err
			}
			with.CTEs = append(with.CTEs, &CTE{
				Name:    cte.Name,
				Columns: cloneStrings(cte.Columns),
				Select:  sel,
			})
		}
		out.With = with
	}
	body, err := r.selectBody(s.Body)
	if err != nil {
		return nil, err
	}
	out.Body = body

	n, err := r.fn(s, out)
	if err != nil {
		return nil, err
	}
	res, ok := n.(*SelectStmt)
	if !ok {
		return nil, fmt.Errorf("rewrite: expected *SelectStmt, got %T", n)
	}
	return res, nil
}

func (r *rewriter) selectBody(b *SelectBody) (*SelectBody, error) {
	if b == nil {
		return nil, nil
	}
	left, err := r.selectCore(b.Left)
	if err != nil {
		return nil, err
	}
	right, err := r.selectBody(b.Right)
	if err != nil {
		return nil, err
	}
	return &SelectBody{Left: left, Op: b.Op, All: b.All, ByName: b.ByName, Right: right}, nil
}

func (r *rewriter) selectCore(sc *SelectCore) (*SelectCore, error) {
	if sc == nil {
		return nil, nil
	}
	out := &SelectCore{
		Distinct:       sc.Distinct,
		GroupByAll:     sc.GroupByAll,
		OrderByAll:     sc.OrderByAll,
		OrderByAllDesc: sc.OrderByAllDesc,
	}
	var err error

	for _, item := range sc.Columns {
		ni := SelectItem{Star: item.Star, TableStar: item.TableStar, Alias: item.Alias}
		if ni.Expr, err = r.expr(item.Expr); err != nil {
			return nil, err
		}
		if ni.Modifiers, err = r.starModifiers(item.Modifiers); err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, ni)
	}
	if sc.From != nil {
		out.From = &FromClause{}
		if out.From.Source, out.From.Joins, err = r.joinTree(sc.From.Source, sc.From.Joins); err != nil {
			return nil, err
		}
	}
	if out.Where, err = r.expr(sc.Where); err != nil {
		return nil, err
	}
	if out.GroupBy, err = r.exprs(sc.GroupBy); err != nil {
		return nil, err
	}
	if out.Having, err = r.expr(sc.Having); err != nil {
		return nil, err
	}
	for _, w := range sc.Windows {
		spec, err := r.windowSpec(w.Spec)
		if err != nil {
			return nil, err
		}
		out.Windows = append(out.Windows, WindowDef{Name: w.Name, Spec: spec})
	}
	if out.Qualify, err = r.expr(sc.Qualify); err != nil {
		return nil, err
	}
	if out.OrderBy, err = r.orderBy(sc.OrderBy); err != nil {
		return nil, err
	}
	if out.Limit, err = r.expr(sc.Limit); err != nil {
		return nil, err
	}
	if out.Offset, err = r.expr(sc.Offset); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rewriter) joinTree(source TableRef, joins []*Join) (TableRef, []*Join, error) {
	src, err := r.tableRef(source)
	if err != nil {
		return nil, nil, err
	}
	var out []*Join
	for _, j := range joins {
		right, err := r.tableRef(j.Right)
		if err != nil {
			return nil, nil, err
		}
		cond, err := r.expr(j.Condition)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, &Join{
			Type:      j.Type,
			Natural:   j.Natural,
			Right:     right,
			Condition: cond,
			Using:     cloneStrings(j.Using),
		})
	}
	return src, out, nil
}

func (r *rewriter) tableRef(ref TableRef) (TableRef, error) {
	if ref == nil {
		return nil, nil
	}
	var out TableRef
	switch t := ref.(type) {
	case *TableName:
		cp := *t
		out = &cp
	case *DerivedTable:
		sel, err := r.selectStmt(t.Select)
		if err != nil {
			return nil, err
		}
		out = &DerivedTable{Select: sel, Alias: t.Alias}
	case *LateralTable:
		sel, err := r.selectStmt(t.Select)
		if err != nil {
			return nil, err
		}
		out = &LateralTable{Select: sel, Alias: t.Alias}
	case *FuncTable:
		fn, err := r.expr(t.Func)
		if err != nil {
			return nil, err
		}
		call, ok := fn.(*FuncCall)
		if !ok {
			return nil, fmt.Errorf("rewrite: table function replaced by %T", fn)
		}
		out = &FuncTable{Func: call, Alias: t.Alias}
	case *JoinedTable:
		src, joins, err := r.joinTree(t.Source, t.Joins)
		if err != nil {
			return nil, err
		}
		out = &JoinedTable{Source: src, Joins: joins}
	default:
		return nil, fmt.Errorf("rewrite: unsupported table reference %T", ref)
	}

	n, err := r.fn(ref, out)
	if err != nil {
		return nil, err
	}
	res, ok := n.(TableRef)
	if !ok {
		return nil, fmt.Errorf("rewrite: expected TableRef, got %T", n)
	}
	return res, nil
}

func (r *rewriter) exprs(list []Expr) ([]Expr, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]Expr, 0, len(list))
	for _, e := range list {
		ne, err := r.expr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, ne)
	}
	return out, nil
}

func (r *rewriter) orderBy(items []OrderByItem) ([]OrderByItem, error) {
	if items == nil {
		return nil, nil
	}
	out := make([]OrderByItem, 0, len(items))
	for _, item := range items {
		e, err := r.expr(item.Expr)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderByItem{Expr: e, Desc: item.Desc, NullsFirst: item.NullsFirst})
	}
	return out, nil
}

func (r *rewriter) windowSpec(w *WindowSpec) (*WindowSpec, error) {
	if w == nil {
		return nil, nil
	}
	out := &WindowSpec{Name: w.Name}
	var err error
	if out.PartitionBy, err = r.exprs(w.PartitionBy); err != nil {
		return nil, err
	}
	if out.OrderBy, err = r.orderBy(w.OrderBy); err != nil {
		return nil, err
	}
	if w.Frame != nil {
		out.Frame = &FrameSpec{Type: w.Frame.Type}
		if out.Frame.Start, err = r.frameBound(w.Frame.Start); err != nil {
			return nil, err
		}
		if out.Frame.End, err = r.frameBound(w.Frame.End); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *rewriter) frameBound(b *FrameBound) (*FrameBound, error) {
	if b == nil {
		return nil, nil
	}
	off, err := r.expr(b.Offset)
	if err != nil {
		return nil, err
	}
	return &FrameBound{Type: b.Type, Offset: off}, nil
}

func (r *rewriter) starModifiers(mods []StarModifier) ([]StarModifier, error) {
	if mods == nil {
		return nil, nil
	}
	out := make([]StarModifier, 0, len(mods))
	for _, mod := range mods {
		switch m := mod.(type) {
		case *ExcludeModifier:
			out = append(out, &ExcludeModifier{Columns: cloneStrings(m.Columns)})
		case *ReplaceModifier:
			rm := &ReplaceModifier{}
			for _, item := range m.Items {
				e, err := r.expr(item.Expr)
				if err != nil {
					return nil, err
				}
				rm.Items = append(rm.Items, ReplaceItem{Expr: e, Alias: item.Alias})
			}
			out = append(out, rm)
		}
	}
	return out, nil
}

// expr rewrites one expression. A nil input yields nil without calling fn.
func (r *rewriter) expr(e Expr) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	out, err := r.exprChildren(e)
	if err != nil {
		return nil, err
	}
	n, err := r.fn(e, out)
	if err != nil {
		return nil, err
	}
	res, ok := n.(Expr)
	if !ok {
		return nil, fmt.Errorf("rewrite: expected Expr, got %T", n)
	}
	return res, nil
}

// exprChildren copies e with every child expression rewritten.
func (r *rewriter) exprChildren(e Expr) (Expr, error) {
	var err error
	switch x := e.(type) {
	case *ColumnRef:
		return &ColumnRef{Parts: cloneStrings(x.Parts)}, nil
	case *Literal:
		cp := *x
		return &cp, nil
	case *BinaryExpr:
		out := &BinaryExpr{Op: x.Op}
		if out.Left, err = r.expr(x.Left); err != nil {
			return nil, err
		}
		if out.Right, err = r.expr(x.Right); err != nil {
			return nil, err
		}
		return out, nil
	case *UnaryExpr:
		out := &UnaryExpr{Op: x.Op}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		return out, nil
	case *ParenExpr:
		out := &ParenExpr{}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		return out, nil
	case *FuncCall:
		out := &FuncCall{Schema: x.Schema, Name: x.Name, Distinct: x.Distinct, Star: x.Star}
		if out.Args, err = r.exprs(x.Args); err != nil {
			return nil, err
		}
		if out.OrderBy, err = r.orderBy(x.OrderBy); err != nil {
			return nil, err
		}
		if out.Filter, err = r.expr(x.Filter); err != nil {
			return nil, err
		}
		if out.Window, err = r.windowSpec(x.Window); err != nil {
			return nil, err
		}
		return out, nil
	case *CaseExpr:
		out := &CaseExpr{}
		if out.Operand, err = r.expr(x.Operand); err != nil {
			return nil, err
		}
		for _, w := range x.Whens {
			cond, err := r.expr(w.Condition)
			if err != nil {
				return nil, err
			}
			res, err := r.expr(w.Result)
			if err != nil {
				return nil, err
			}
			out.Whens = append(out.Whens, WhenClause{Condition: cond, Result: res})
		}
		if out.Else, err = r.expr(x.Else); err != nil {
			return nil, err
		}
		return out, nil
	case *CastExpr:
		out := &CastExpr{TypeName: x.TypeName, TryCast: x.TryCast}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		return out, nil
	case *TypeCastExpr:
		out := &TypeCastExpr{TypeName: x.TypeName}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		return out, nil
	case *InExpr:
		out := &InExpr{Not: x.Not}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		if out.Values, err = r.exprs(x.Values); err != nil {
			return nil, err
		}
		if out.Query, err = r.selectStmt(x.Query); err != nil {
			return nil, err
		}
		return out, nil
	case *BetweenExpr:
		out := &BetweenExpr{Not: x.Not}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		if out.Low, err = r.expr(x.Low); err != nil {
			return nil, err
		}
		if out.High, err = r.expr(x.High); err != nil {
			return nil, err
		}
		return out, nil
	case *IsNullExpr:
		out := &IsNullExpr{Not: x.Not}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		return out, nil
	case *IsBoolExpr:
		out := &IsBoolExpr{Not: x.Not, Value: x.Value}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		return out, nil
	case *LikeExpr:
		out := &LikeExpr{Not: x.Not, ILike: x.ILike}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		if out.Pattern, err = r.expr(x.Pattern); err != nil {
			return nil, err
		}
		return out, nil
	case *ExistsExpr:
		out := &ExistsExpr{Not: x.Not}
		if out.Select, err = r.selectStmt(x.Select); err != nil {
			return nil, err
		}
		return out, nil
	case *SubqueryExpr:
		out := &SubqueryExpr{}
		if out.Select, err = r.selectStmt(x.Select); err != nil {
			return nil, err
		}
		return out, nil
	case *StarExpr:
		out := &StarExpr{Table: x.Table}
		if out.Modifiers, err = r.starModifiers(x.Modifiers); err != nil {
			return nil, err
		}
		return out, nil
	case *IntervalExpr:
		out := &IntervalExpr{Unit: x.Unit}
		if out.Value, err = r.expr(x.Value); err != nil {
			return nil, err
		}
		return out, nil
	case *ExtractExpr:
		out := &ExtractExpr{Field: x.Field}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		return out, nil
	case *ListLiteral:
		out := &ListLiteral{}
		if out.Elements, err = r.exprs(x.Elements); err != nil {
			return nil, err
		}
		return out, nil
	case *IndexExpr:
		out := &IndexExpr{IsSlice: x.IsSlice}
		if out.Expr, err = r.expr(x.Expr); err != nil {
			return nil, err
		}
		if out.Index, err = r.expr(x.Index); err != nil {
			return nil, err
		}
		if out.Start, err = r.expr(x.Start); err != nil {
			return nil, err
		}
		if out.Stop, err = r.expr(x.Stop); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("rewrite: unsupported expression %T", e)
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
