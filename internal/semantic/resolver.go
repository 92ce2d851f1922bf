// Package semantic compiles queries written against manifest models into
// SQL over the models' base tables.
package semantic

import (
	"slices"
	"sort"
	"strings"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
)

// ModelDefinition is the resolved definition query of a model. DependsOn
// lists the models whose definitions the query reads, sorted by name.
type ModelDefinition struct {
	Model     *domain.Model
	Query     *duckdbsql.SelectStmt
	DependsOn []string
}

// resolver resolves model definitions together with everything they depend
// on. It lives for one rewrite or one validation run.
type resolver struct {
	manifest *domain.Manifest
	defs     map[string]*ModelDefinition
	stack    []string
}

func newResolver(m *domain.Manifest) *resolver {
	return &resolver{manifest: m, defs: make(map[string]*ModelDefinition)}
}

// require resolves the named model and, depth first, every model its
// definition depends on. Re-entering a model that is still being expanded
// is a cycle.
func (r *resolver) require(name string) error {
	if _, ok := r.defs[name]; ok {
		return nil
	}
	if i := slices.Index(r.stack, name); i >= 0 {
		cycle := append(slices.Clone(r.stack[i:]), name)
		return domain.ErrCyclicModelDependency(cycle...)
	}
	mdl, ok := r.manifest.Model(name)
	if !ok {
		return domain.ErrUnknownModel("model %q is not defined", name)
	}

	r.stack = append(r.stack, name)
	def, err := ResolveModel(r.manifest, mdl)
	if err != nil {
		return err
	}
	for _, dep := range def.DependsOn {
		if err := r.require(dep); err != nil {
			return err
		}
	}
	r.stack = r.stack[:len(r.stack)-1]
	r.defs[name] = def
	return nil
}

// ordered returns the resolved definitions with every model after the
// models it depends on. Ties are broken by name.
func (r *resolver) ordered() []*ModelDefinition {
	pending := make(map[string]int, len(r.defs))
	dependents := make(map[string][]string)
	var ready []string
	for name, def := range r.defs {
		pending[name] = len(def.DependsOn)
		for _, dep := range def.DependsOn {
			dependents[dep] = append(dependents[dep], name)
		}
		if len(def.DependsOn) == 0 {
			ready = append(ready, name)
		}
	}

	out := make([]*ModelDefinition, 0, len(r.defs))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		out = append(out, r.defs[name])
		for _, d := range dependents[name] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return out
}

// ResolveModel builds the definition query of a single model:
//
//	SELECT <plain columns>, <calculated expr> AS <name>, ...
//	FROM (<refSql>) AS <model>
//	[LEFT JOIN (<relationship fragment>) AS rs_... ON <model>.<pk> = rs_....__root_key]
//
// Relationship columns are never projected. A calculated column that
// traverses relationships reads from an inline fragment joined on the
// model's primary key; the fragment's target models become dependencies.
func ResolveModel(m *domain.Manifest, mdl *domain.Model) (*ModelDefinition, error) {
	base, err := parseRefSQL(mdl.Name, mdl.RefSQL)
	if err != nil {
		return nil, err
	}

	b := &modelBuilder{
		manifest:  m,
		model:     mdl,
		calc:      make(map[string]duckdbsql.Expr),
		fragments: make(map[string]*fragment),
	}
	for _, col := range mdl.Columns {
		if col.Kind() == domain.ColumnCalculated {
			if _, err := b.calculated(col.Name); err != nil {
				return nil, err
			}
		}
	}

	qualify := len(b.order) > 0
	var items []duckdbsql.SelectItem
	for _, col := range mdl.Columns {
		switch col.Kind() {
		case domain.ColumnPlain:
			if qualify {
				items = append(items, duckdbsql.SelectItem{Expr: duckdbsql.NewColumnRef(mdl.Name, col.Name)})
			} else {
				items = append(items, duckdbsql.SelectItem{Expr: duckdbsql.NewColumnRef(col.Name)})
			}
		case domain.ColumnCalculated:
			expr := b.calc[col.Name]
			if qualify {
				if expr, err = b.qualify(expr); err != nil {
					return nil, err
				}
			}
			items = append(items, duckdbsql.SelectItem{Expr: expr, Alias: col.Name})
		}
	}

	from := &duckdbsql.FromClause{Source: &duckdbsql.DerivedTable{Select: base, Alias: mdl.Name}}
	deps := make(map[string]bool)
	for _, f := range b.order {
		frag, err := inlineFragment(mdl, f)
		if err != nil {
			return nil, err
		}
		from.Joins = append(from.Joins, &duckdbsql.Join{
			Type:  duckdbsql.JoinLeft,
			Right: frag,
			Condition: &duckdbsql.BinaryExpr{
				Left:  duckdbsql.NewColumnRef(mdl.Name, mdl.PrimaryKey),
				Op:    duckdbsql.TOKEN_EQ,
				Right: duckdbsql.NewColumnRef(f.alias, RootKeyColumn),
			},
		})
		for _, hop := range f.traversal.Hops {
			deps[hop.To.Name] = true
		}
	}

	def := &ModelDefinition{Model: mdl, Query: selectStmt(items, from)}
	for dep := range deps {
		def.DependsOn = append(def.DependsOn, dep)
	}
	sort.Strings(def.DependsOn)
	return def, nil
}

type fragment struct {
	alias     string
	traversal *Traversal
}

// modelBuilder resolves the calculated columns of one model.
type modelBuilder struct {
	manifest  *domain.Manifest
	model     *domain.Model
	calc      map[string]duckdbsql.Expr
	stack     []string
	fragments map[string]*fragment
	order     []*fragment
}

// calculated returns the resolved expression of a calculated column.
// References to other calculated columns are inlined.
func (b *modelBuilder) calculated(name string) (duckdbsql.Expr, error) {
	if e, ok := b.calc[name]; ok {
		return e, nil
	}
	if i := slices.Index(b.stack, name); i >= 0 {
		cycle := append(slices.Clone(b.stack[i:]), name)
		return nil, domain.ErrInvalidModelDefinition(b.model.Name, "calculated columns reference each other: %s", strings.Join(cycle, " -> "))
	}
	col, _ := b.model.Column(name)
	expr, err := duckdbsql.ParseExpr(col.Expression)
	if err != nil {
		return nil, domain.ErrInvalidModelDefinition(b.model.Name, "column %q: %v", name, err)
	}

	b.stack = append(b.stack, name)
	out, err := duckdbsql.RewriteExpr(expr, func(_, node duckdbsql.Node) (duckdbsql.Node, error) {
		if ref, ok := node.(*duckdbsql.ColumnRef); ok {
			return b.columnRef(ref)
		}
		return node, nil
	})
	if err != nil {
		return nil, err
	}
	b.stack = b.stack[:len(b.stack)-1]
	b.calc[name] = out
	return out, nil
}

func (b *modelBuilder) columnRef(ref *duckdbsql.ColumnRef) (duckdbsql.Node, error) {
	parts := ref.Parts
	if len(parts) > 1 && parts[0] == b.model.Name {
		if _, shadowed := b.model.Column(parts[0]); !shadowed {
			parts = parts[1:]
		}
	}
	col, ok := b.model.Column(parts[0])
	if !ok {
		return ref, nil
	}

	switch col.Kind() {
	case domain.ColumnCalculated:
		if len(parts) > 1 {
			return ref, nil
		}
		e, err := b.calculated(col.Name)
		if err != nil {
			return nil, err
		}
		inlined, err := cloneExpr(e)
		if err != nil {
			return nil, err
		}
		switch inlined.(type) {
		case *duckdbsql.ColumnRef, *duckdbsql.Literal, *duckdbsql.FuncCall, *duckdbsql.ParenExpr:
			return inlined, nil
		}
		return &duckdbsql.ParenExpr{Expr: inlined}, nil

	case domain.ColumnRelationship:
		tr, err := resolveTraversal(b.manifest, b.model, parts)
		if err != nil {
			return nil, err
		}
		return duckdbsql.NewColumnRef(b.fragment(tr).alias, tr.Column), nil

	default:
		return duckdbsql.NewColumnRef(parts...), nil
	}
}

func (b *modelBuilder) fragment(tr *Traversal) *fragment {
	path := tr.Path(-1)
	key := strings.Join(path, "\x00")
	if f, ok := b.fragments[key]; ok {
		return f
	}
	f := &fragment{alias: RelationshipCTEName(path), traversal: tr}
	b.fragments[key] = f
	b.order = append(b.order, f)
	return f
}

// qualify prefixes bare references to the model's plain columns with the
// model name so they stay unambiguous next to joined fragments.
func (b *modelBuilder) qualify(e duckdbsql.Expr) (duckdbsql.Expr, error) {
	return duckdbsql.RewriteExpr(e, func(_, node duckdbsql.Node) (duckdbsql.Node, error) {
		ref, ok := node.(*duckdbsql.ColumnRef)
		if !ok || len(ref.Parts) != 1 {
			return node, nil
		}
		if col, ok := b.model.Column(ref.Parts[0]); ok && col.Kind() == domain.ColumnPlain {
			return duckdbsql.NewColumnRef(b.model.Name, ref.Parts[0]), nil
		}
		return node, nil
	})
}

// inlineFragment builds the derived table behind a calculated column's
// traversal. It starts from the model's base SQL rather than its definition,
// since the definition is the query being built, and left-joins the
// definitions of every model along the path.
func inlineFragment(mdl *domain.Model, f *fragment) (*duckdbsql.DerivedTable, error) {
	base, err := parseRefSQL(mdl.Name, mdl.RefSQL)
	if err != nil {
		return nil, err
	}
	from := &duckdbsql.FromClause{Source: &duckdbsql.DerivedTable{Select: base, Alias: mdl.Name}}
	used := map[string]bool{mdl.Name: true}
	fromAlias := mdl.Name
	for _, hop := range f.traversal.Hops {
		join, toAlias, err := hopJoin(hop, fromAlias, used)
		if err != nil {
			return nil, err
		}
		from.Joins = append(from.Joins, join)
		fromAlias = toAlias
	}
	items := []duckdbsql.SelectItem{
		{Expr: duckdbsql.NewColumnRef(mdl.Name, mdl.PrimaryKey), Alias: RootKeyColumn},
		{TableStar: fromAlias},
	}
	return &duckdbsql.DerivedTable{Select: selectStmt(items, from), Alias: f.alias}, nil
}

func parseRefSQL(name, sql string) (*duckdbsql.SelectStmt, error) {
	stmt, err := duckdbsql.Parse(sql)
	if err != nil {
		return nil, domain.ErrInvalidModelDefinition(name, "refSql: %v", err)
	}
	return stmt, nil
}

// ResolveMetric builds the definition query of a metric: its dimensions and
// measures over the base model, grouped by the dimensions.
func ResolveMetric(mt *domain.Metric) (*duckdbsql.SelectStmt, error) {
	return metricQuery(mt, nil)
}

// ResolveRollup builds the definition query of a rollup: the metric's query
// with the time grain truncated to the rollup's date part as an extra
// leading dimension.
func ResolveRollup(ru domain.MetricRollup) (*duckdbsql.SelectStmt, error) {
	return metricQuery(ru.Metric, &ru)
}

func metricQuery(mt *domain.Metric, ru *domain.MetricRollup) (*duckdbsql.SelectStmt, error) {
	name := mt.Name
	var (
		items   []duckdbsql.SelectItem
		groupBy []duckdbsql.Expr
	)
	if ru != nil {
		name = ru.Name()
		trunc := func() duckdbsql.Expr {
			return &duckdbsql.FuncCall{
				Name: "date_trunc",
				Args: []duckdbsql.Expr{
					&duckdbsql.Literal{Type: duckdbsql.LiteralString, Value: strings.ToLower(ru.DatePart)},
					duckdbsql.NewColumnRef(ru.TimeGrain.RefColumn),
				},
			}
		}
		items = append(items, duckdbsql.SelectItem{Expr: trunc(), Alias: ru.TimeGrain.Name})
		groupBy = append(groupBy, trunc())
	}

	for _, dim := range mt.Dimensions {
		item, err := metricColumn(name, dim)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		key, err := cloneExpr(item.Expr)
		if err != nil {
			return nil, err
		}
		groupBy = append(groupBy, key)
	}
	for _, ms := range mt.Measures {
		item, err := metricColumn(name, ms)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	stmt := selectStmt(items, &duckdbsql.FromClause{Source: &duckdbsql.TableName{Name: mt.BaseObject}})
	stmt.Body.Left.GroupBy = groupBy
	return stmt, nil
}

func metricColumn(owner string, col domain.Column) (duckdbsql.SelectItem, error) {
	if col.Expression == "" {
		return duckdbsql.SelectItem{Expr: duckdbsql.NewColumnRef(col.Name)}, nil
	}
	expr, err := duckdbsql.ParseExpr(col.Expression)
	if err != nil {
		return duckdbsql.SelectItem{}, domain.ErrInvalidModelDefinition(owner, "column %q: %v", col.Name, err)
	}
	return duckdbsql.SelectItem{Expr: expr, Alias: col.Name}, nil
}
