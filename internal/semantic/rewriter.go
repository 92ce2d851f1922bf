package semantic

import (
	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
)

// ModelRewrite replaces model, metric and rollup references with plain
// references to injected WITH definitions and turns relationship traversals
// into joins against generated relationship CTEs.
type ModelRewrite struct{}

// Name identifies the rule in logs.
func (ModelRewrite) Name() string { return "model" }

// Apply runs definition injection and then reference rewriting. A query
// that needs no model is returned unchanged.
func (ModelRewrite) Apply(stmt *duckdbsql.SelectStmt, _ domain.Session, a *Analysis, _ *domain.Manifest) (*duckdbsql.SelectStmt, error) {
	if !a.HasModels() {
		return stmt, nil
	}
	withDefs, err := InjectDefinitions(stmt, a)
	if err != nil {
		return nil, err
	}
	return RewriteReferences(withDefs, a)
}

// InjectDefinitions prepends the generated definitions to the outermost WITH
// clause, in this order: models (dependencies first), relationship CTEs in
// generation order, metrics by name, rollups by name, then the query's own
// CTEs. Only the outermost statement is replaced; every other node is
// shared with stmt so Analysis keys still match.
func InjectDefinitions(stmt *duckdbsql.SelectStmt, a *Analysis) (*duckdbsql.SelectStmt, error) {
	var ctes []*duckdbsql.CTE
	for _, def := range a.Models() {
		ctes = append(ctes, &duckdbsql.CTE{Name: def.Model.Name, Select: def.Query})
	}
	for _, rc := range a.RelationshipCTEs() {
		ctes = append(ctes, &duckdbsql.CTE{Name: rc.Name, Select: rc.Query})
	}
	for _, mt := range a.Metrics() {
		q, _ := a.Definition(mt.Name)
		ctes = append(ctes, &duckdbsql.CTE{Name: mt.Name, Select: q})
	}
	for _, ru := range a.Rollups() {
		q, _ := a.Definition(ru.Name())
		ctes = append(ctes, &duckdbsql.CTE{Name: ru.Name(), Select: q})
	}

	with := &duckdbsql.WithClause{}
	if stmt.With != nil {
		generated := make(map[string]bool, len(ctes))
		for _, c := range ctes {
			generated[c.Name] = true
		}
		for _, c := range stmt.With.CTEs {
			if generated[c.Name] {
				return nil, domain.ErrConflict("CTE %q clashes with a generated definition of the same name", c.Name)
			}
		}
		with.Recursive = stmt.With.Recursive
		ctes = append(ctes, stmt.With.CTEs...)
	}
	with.CTEs = ctes

	out := *stmt
	out.With = with
	return &out, nil
}

// RewriteReferences rewrites the nodes recorded in the analysis, bottom up,
// into a new tree:
//   - model and metric tables lose their catalog and schema;
//   - model tables with traversals are wrapped in LEFT JOINs against their
//     relationship CTEs, conditioned on the table's alias when it has one;
//   - roll_up relations become references to the rollup definition;
//   - traversal expressions read from the joined CTE.
//
// A roll_up relation the analysis did not capture is an internal
// inconsistency.
func RewriteReferences(stmt *duckdbsql.SelectStmt, a *Analysis) (*duckdbsql.SelectStmt, error) {
	return duckdbsql.Rewrite(stmt, func(orig, node duckdbsql.Node) (duckdbsql.Node, error) {
		switch o := orig.(type) {
		case *duckdbsql.TableName:
			t := node.(*duckdbsql.TableName)
			_, isModel := a.ModelRef(o)
			_, isMetric := a.MetricRef(o)
			if isModel || isMetric {
				t.Catalog, t.Schema = "", ""
			}
			joins := a.Joins(o)
			if len(joins) == 0 {
				return t, nil
			}
			jt := &duckdbsql.JoinedTable{Source: t}
			for _, j := range joins {
				right := &duckdbsql.TableName{Name: j.CTE.Name}
				if j.Alias != j.CTE.Name {
					right.Alias = j.Alias
				}
				jt.Joins = append(jt.Joins, &duckdbsql.Join{
					Type:      duckdbsql.JoinLeft,
					Right:     right,
					Condition: j.CTE.JoinCondition(o.RefName(), j.Alias),
				})
			}
			return jt, nil

		case *duckdbsql.FuncTable:
			if ru, ok := a.RollupRef(o); ok {
				return &duckdbsql.TableName{Name: ru.Name(), Alias: o.Alias}, nil
			}
			if isRollupCall(o.Func) {
				return nil, domain.ErrInternalInconsistency("%s was not captured during analysis", duckdbsql.FormatTableRef(o))
			}

		case *duckdbsql.ColumnRef:
			if e, ok := a.Field(o); ok {
				return cloneExpr(e)
			}
		}
		return node, nil
	})
}
