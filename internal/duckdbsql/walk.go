package duckdbsql

// Walk traverses the tree rooted at n in depth-first order, calling fn for
// every statement, table reference and expression. If fn returns false the
// children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch x := n.(type) {
	case *SelectStmt:
		if x.With != nil {
			for _, cte := range x.With.CTEs {
				walkStmt(cte.Select, fn)
			}
		}
		walkBody(x.Body, fn)

	case *TableName:
	case *DerivedTable:
		walkStmt(x.Select, fn)
	case *LateralTable:
		walkStmt(x.Select, fn)
	case *FuncTable:
		if x.Func != nil {
			Walk(x.Func, fn)
		}
	case *JoinedTable:
		walkJoinTree(x.Source, x.Joins, fn)

	case *ColumnRef, *Literal:
	case *BinaryExpr:
		walkExpr(x.Left, fn)
		walkExpr(x.Right, fn)
	case *UnaryExpr:
		walkExpr(x.Expr, fn)
	case *ParenExpr:
		walkExpr(x.Expr, fn)
	case *FuncCall:
		walkExprs(x.Args, fn)
		walkOrderBy(x.OrderBy, fn)
		walkExpr(x.Filter, fn)
		walkWindow(x.Window, fn)
	case *CaseExpr:
		walkExpr(x.Operand, fn)
		for _, w := range x.Whens {
			walkExpr(w.Condition, fn)
			walkExpr(w.Result, fn)
		}
		walkExpr(x.Else, fn)
	case *CastExpr:
		walkExpr(x.Expr, fn)
	case *TypeCastExpr:
		walkExpr(x.Expr, fn)
	case *InExpr:
		walkExpr(x.Expr, fn)
		walkExprs(x.Values, fn)
		walkStmt(x.Query, fn)
	case *BetweenExpr:
		walkExpr(x.Expr, fn)
		walkExpr(x.Low, fn)
		walkExpr(x.High, fn)
	case *IsNullExpr:
		walkExpr(x.Expr, fn)
	case *IsBoolExpr:
		walkExpr(x.Expr, fn)
	case *LikeExpr:
		walkExpr(x.Expr, fn)
		walkExpr(x.Pattern, fn)
	case *ExistsExpr:
		walkStmt(x.Select, fn)
	case *SubqueryExpr:
		walkStmt(x.Select, fn)
	case *StarExpr:
		walkModifiers(x.Modifiers, fn)
	case *IntervalExpr:
		walkExpr(x.Value, fn)
	case *ExtractExpr:
		walkExpr(x.Expr, fn)
	case *ListLiteral:
		walkExprs(x.Elements, fn)
	case *IndexExpr:
		walkExpr(x.Expr, fn)
		walkExpr(x.Index, fn)
		walkExpr(x.Start, fn)
		walkExpr(x.Stop, fn)
	}
}

func walkStmt(s *SelectStmt, fn func(Node) bool) {
	if s != nil {
		Walk(s, fn)
	}
}

func walkExpr(e Expr, fn func(Node) bool) {
	if e != nil {
		Walk(e, fn)
	}
}

func walkExprs(list []Expr, fn func(Node) bool) {
	for _, e := range list {
		walkExpr(e, fn)
	}
}

func walkOrderBy(items []OrderByItem, fn func(Node) bool) {
	for _, item := range items {
		walkExpr(item.Expr, fn)
	}
}

func walkWindow(w *WindowSpec, fn func(Node) bool) {
	if w == nil {
		return
	}
	walkExprs(w.PartitionBy, fn)
	walkOrderBy(w.OrderBy, fn)
	if w.Frame != nil {
		for _, b := range []*FrameBound{w.Frame.Start, w.Frame.End} {
			if b != nil {
				walkExpr(b.Offset, fn)
			}
		}
	}
}

func walkModifiers(mods []StarModifier, fn func(Node) bool) {
	for _, mod := range mods {
		if m, ok := mod.(*ReplaceModifier); ok {
			for _, item := range m.Items {
				walkExpr(item.Expr, fn)
			}
		}
	}
}

func walkJoinTree(source TableRef, joins []*Join, fn func(Node) bool) {
	if source != nil {
		Walk(source, fn)
	}
	for _, j := range joins {
		if j.Right != nil {
			Walk(j.Right, fn)
		}
		walkExpr(j.Condition, fn)
	}
}

func walkBody(body *SelectBody, fn func(Node) bool) {
	for body != nil {
		walkCore(body.Left, fn)
		body = body.Right
	}
}

func walkCore(sc *SelectCore, fn func(Node) bool) {
	if sc == nil {
		return
	}
	for _, item := range sc.Columns {
		walkExpr(item.Expr, fn)
		walkModifiers(item.Modifiers, fn)
	}
	if sc.From != nil {
		walkJoinTree(sc.From.Source, sc.From.Joins, fn)
	}
	walkExpr(sc.Where, fn)
	walkExprs(sc.GroupBy, fn)
	walkExpr(sc.Having, fn)
	for _, w := range sc.Windows {
		walkWindow(w.Spec, fn)
	}
	walkExpr(sc.Qualify, fn)
	walkOrderBy(sc.OrderBy, fn)
	walkExpr(sc.Limit, fn)
	walkExpr(sc.Offset, fn)
}

// CollectTableNames returns every TableName referenced anywhere in stmt,
// including CTE bodies and subqueries, in traversal order. CTE names that
// are referenced like tables are included; callers filter them as needed.
func CollectTableNames(stmt *SelectStmt) []*TableName {
	var tables []*TableName
	Walk(stmt, func(n Node) bool {
		if t, ok := n.(*TableName); ok {
			tables = append(tables, t)
		}
		return true
	})
	return tables
}

// CTENames returns the names defined by the statement's outermost WITH clause.
func CTENames(stmt *SelectStmt) []string {
	if stmt == nil || stmt.With == nil {
		return nil
	}
	names := make([]string, 0, len(stmt.With.CTEs))
	for _, cte := range stmt.With.CTEs {
		names = append(names, cte.Name)
	}
	return names
}
