package semantic

import (
	"slices"
	"sort"
	"strings"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
)

// Analysis records what a query references in a manifest. It is keyed by
// node identity, so two structurally equal occurrences are tracked
// separately. An Analysis belongs to one rewrite and is never shared.
type Analysis struct {
	manifest *domain.Manifest
	session  domain.Session

	modelRefs  map[*duckdbsql.TableName]*domain.Model
	metricRefs map[*duckdbsql.TableName]*domain.Metric
	rollupRefs map[*duckdbsql.FuncTable]domain.MetricRollup
	fields     map[*duckdbsql.ColumnRef]duckdbsql.Expr
	joins      map[*duckdbsql.TableName][]RelationJoin

	required map[string]bool
	metrics  map[string]*domain.Metric
	rollups  map[string]domain.MetricRollup

	ctes       *cteGenerator
	resolver   *resolver
	models     []*ModelDefinition
	metricDefs map[string]*duckdbsql.SelectStmt
}

// RelationJoin is a relationship CTE joined onto one relation of the query
// under Alias.
type RelationJoin struct {
	CTE   *RelationshipCTE
	Alias string
}

// Analyze walks stmt once and resolves everything it references in the
// manifest: model tables, metric tables, roll_up relations and relationship
// traversals. It then resolves the definitions of every required model,
// failing on dependency cycles.
func Analyze(stmt *duckdbsql.SelectStmt, m *domain.Manifest, session domain.Session) (*Analysis, error) {
	a := &Analysis{
		manifest:   m,
		session:    session,
		modelRefs:  make(map[*duckdbsql.TableName]*domain.Model),
		metricRefs: make(map[*duckdbsql.TableName]*domain.Metric),
		rollupRefs: make(map[*duckdbsql.FuncTable]domain.MetricRollup),
		fields:     make(map[*duckdbsql.ColumnRef]duckdbsql.Expr),
		joins:      make(map[*duckdbsql.TableName][]RelationJoin),
		required:   make(map[string]bool),
		metrics:    make(map[string]*domain.Metric),
		rollups:    make(map[string]domain.MetricRollup),
		ctes:       newCTEGenerator(),
		resolver:   newResolver(m),
		metricDefs: make(map[string]*duckdbsql.SelectStmt),
	}
	if err := a.statement(stmt, nil); err != nil {
		return nil, err
	}
	if err := a.resolveDefinitions(); err != nil {
		return nil, err
	}
	return a, nil
}

// HasModels reports whether the query needs any model definition.
func (a *Analysis) HasModels() bool { return len(a.models) > 0 }

// Models returns the required model definitions, dependencies first.
func (a *Analysis) Models() []*ModelDefinition { return a.models }

// RelationshipCTEs returns the generated relationship CTEs in generation order.
func (a *Analysis) RelationshipCTEs() []*RelationshipCTE { return a.ctes.ordered }

// Metrics returns the referenced metrics sorted by name.
func (a *Analysis) Metrics() []*domain.Metric {
	out := make([]*domain.Metric, 0, len(a.metrics))
	for _, name := range sortedKeys(a.metrics) {
		out = append(out, a.metrics[name])
	}
	return out
}

// Rollups returns the referenced metric rollups sorted by name.
func (a *Analysis) Rollups() []domain.MetricRollup {
	out := make([]domain.MetricRollup, 0, len(a.rollups))
	for _, name := range sortedKeys(a.rollups) {
		out = append(out, a.rollups[name])
	}
	return out
}

// Definition returns the definition query of a referenced metric or rollup.
func (a *Analysis) Definition(name string) (*duckdbsql.SelectStmt, bool) {
	q, ok := a.metricDefs[name]
	return q, ok
}

// ModelRef returns the model a table node denotes.
func (a *Analysis) ModelRef(t *duckdbsql.TableName) (*domain.Model, bool) {
	m, ok := a.modelRefs[t]
	return m, ok
}

// MetricRef returns the metric a table node denotes.
func (a *Analysis) MetricRef(t *duckdbsql.TableName) (*domain.Metric, bool) {
	m, ok := a.metricRefs[t]
	return m, ok
}

// RollupRef returns the rollup a roll_up relation denotes.
func (a *Analysis) RollupRef(f *duckdbsql.FuncTable) (domain.MetricRollup, bool) {
	r, ok := a.rollupRefs[f]
	return r, ok
}

// Field returns the replacement for a column reference that traverses a
// relationship or carries qualifiers the rewrite strips.
func (a *Analysis) Field(ref *duckdbsql.ColumnRef) (duckdbsql.Expr, bool) {
	e, ok := a.fields[ref]
	return e, ok
}

// Joins returns the relationship CTEs a model relation must be joined with.
func (a *Analysis) Joins(t *duckdbsql.TableName) []RelationJoin { return a.joins[t] }

type relation struct {
	node  *duckdbsql.TableName
	model *domain.Model
}

// scope holds the model relations visible to one SELECT core, or the CTE
// names a WITH clause brings into view. Subqueries chain to the enclosing
// scope for correlated references.
type scope struct {
	parent    *scope
	relations []relation
	ctes      []string

	// opaque is set once the core reads a relation that is not a model.
	// Its columns are unknown, so they may hide outer relationship columns.
	opaque bool
}

// withCTEs returns a scope in which names refer to user CTEs.
func (s *scope) withCTEs(names ...string) *scope {
	return &scope{parent: s, ctes: names}
}

// isCTE reports whether an unqualified table name refers to a CTE visible
// from s.
func (s *scope) isCTE(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if slices.Contains(sc.ctes, name) {
			return true
		}
	}
	return false
}

// lookup finds the relation a column reference starts from. Relation
// qualifiers win over relationship column names, and inner scopes win over
// outer ones; within a scope the first relation in FROM order wins. An
// unqualified relationship column is not looked up past a scope that reads
// non-model relations. It also reports how many leading parts named the
// relation.
func (s *scope) lookup(parts []string, m *domain.Manifest) (*relation, int) {
	bare := true
	for sc := s; sc != nil; sc = sc.parent {
		for i := range sc.relations {
			if n := sc.relations[i].qualifierLen(parts, m); n > 0 {
				return &sc.relations[i], n
			}
		}
		if !bare {
			continue
		}
		for i := range sc.relations {
			rel := &sc.relations[i]
			if col, ok := rel.model.Column(parts[0]); ok && col.Kind() == domain.ColumnRelationship {
				return rel, 0
			}
		}
		bare = !sc.opaque
	}
	return nil, 0
}

func (r *relation) qualifierLen(parts []string, m *domain.Manifest) int {
	switch {
	case len(parts) >= 2 && parts[0] == r.node.RefName():
		return 1
	case r.node.Alias != "":
		return 0
	case len(parts) >= 3 && parts[0] == m.Schema && parts[1] == r.node.Name:
		return 2
	case len(parts) >= 4 && parts[0] == m.Catalog && parts[1] == m.Schema && parts[2] == r.node.Name:
		return 3
	}
	return 0
}

func (a *Analysis) statement(s *duckdbsql.SelectStmt, outer *scope) error {
	if s == nil {
		return nil
	}
	if w := s.With; w != nil {
		// A CTE sees the ones declared before it, and with RECURSIVE all of
		// them.
		if w.Recursive {
			names := make([]string, len(w.CTEs))
			for i, cte := range w.CTEs {
				names[i] = cte.Name
			}
			outer = outer.withCTEs(names...)
		}
		for _, cte := range w.CTEs {
			if err := a.statement(cte.Select, outer); err != nil {
				return err
			}
			if !w.Recursive {
				outer = outer.withCTEs(cte.Name)
			}
		}
	}
	for body := s.Body; body != nil; body = body.Right {
		if err := a.core(body.Left, outer); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analysis) core(sc *duckdbsql.SelectCore, outer *scope) error {
	if sc == nil {
		return nil
	}
	s := &scope{parent: outer}
	var conds []duckdbsql.Expr
	if sc.From != nil {
		if err := a.from(sc.From.Source, sc.From.Joins, s, &conds); err != nil {
			return err
		}
	}
	for _, c := range conds {
		if err := a.expr(c, s); err != nil {
			return err
		}
	}

	// Everything but FROM, walked through a throwaway statement.
	shell := *sc
	shell.From = nil
	return a.expr(&duckdbsql.SelectStmt{Body: &duckdbsql.SelectBody{Left: &shell}}, s)
}

func (a *Analysis) from(ref duckdbsql.TableRef, joins []*duckdbsql.Join, s *scope, conds *[]duckdbsql.Expr) error {
	if err := a.tableRef(ref, s, conds); err != nil {
		return err
	}
	for _, j := range joins {
		if err := a.tableRef(j.Right, s, conds); err != nil {
			return err
		}
		if j.Condition != nil {
			*conds = append(*conds, j.Condition)
		}
	}
	return nil
}

func (a *Analysis) tableRef(ref duckdbsql.TableRef, s *scope, conds *[]duckdbsql.Expr) error {
	switch x := ref.(type) {
	case *duckdbsql.TableName:
		a.table(x, s)
	case *duckdbsql.DerivedTable:
		s.opaque = true
		return a.statement(x.Select, s.parent)
	case *duckdbsql.LateralTable:
		s.opaque = true
		return a.statement(x.Select, s)
	case *duckdbsql.FuncTable:
		s.opaque = true
		return a.funcTable(x, s)
	case *duckdbsql.JoinedTable:
		return a.from(x.Source, x.Joins, s, conds)
	}
	return nil
}

func (a *Analysis) table(t *duckdbsql.TableName, s *scope) {
	if t.Catalog == "" && t.Schema == "" && s.isCTE(t.Name) || !a.inManifestSchema(t) {
		s.opaque = true
		return
	}
	if mdl, ok := a.manifest.Model(t.Name); ok {
		a.modelRefs[t] = mdl
		a.required[mdl.Name] = true
		s.relations = append(s.relations, relation{node: t, model: mdl})
		return
	}
	s.opaque = true
	if mt, ok := a.manifest.Metric(t.Name); ok {
		a.metricRefs[t] = mt
		a.metrics[mt.Name] = mt
		a.required[mt.BaseObject] = true
	}
}

// inManifestSchema resolves the table's catalog and schema, filling missing
// parts from the session and then the manifest.
func (a *Analysis) inManifestSchema(t *duckdbsql.TableName) bool {
	catalog := firstNonEmpty(t.Catalog, a.session.Catalog, a.manifest.Catalog)
	schema := firstNonEmpty(t.Schema, a.session.Schema, a.manifest.Schema)
	return catalog == a.manifest.Catalog && schema == a.manifest.Schema
}

func (a *Analysis) funcTable(f *duckdbsql.FuncTable, s *scope) error {
	if !isRollupCall(f.Func) {
		return a.expr(f.Func, s)
	}
	args, ok := rollupArgs(f.Func)
	if !ok {
		return domain.ErrInternalInconsistency("malformed %s reached analysis", duckdbsql.FormatTableRef(f))
	}
	ru, ok := a.manifest.Rollup(args[0], args[1], args[2])
	if !ok {
		return domain.ErrInternalInconsistency("unknown %s reached analysis", duckdbsql.FormatTableRef(f))
	}
	a.rollupRefs[f] = ru
	a.rollups[ru.Name()] = ru
	a.required[ru.Metric.BaseObject] = true
	return nil
}

// expr walks an expression tree. Nested statements are analysed in a new
// scope chained to s.
func (a *Analysis) expr(n duckdbsql.Node, s *scope) error {
	var err error
	duckdbsql.Walk(n, func(node duckdbsql.Node) bool {
		if err != nil {
			return false
		}
		switch x := node.(type) {
		case *duckdbsql.SelectStmt:
			if node == n {
				return true
			}
			err = a.statement(x, s)
			return false
		case *duckdbsql.ColumnRef:
			err = a.columnRef(x, s)
		}
		return true
	})
	return err
}

func (a *Analysis) columnRef(ref *duckdbsql.ColumnRef, s *scope) error {
	rel, n := s.lookup(ref.Parts, a.manifest)
	if rel == nil {
		return nil
	}
	rest := ref.Parts[n:]
	tr, err := resolveTraversal(a.manifest, rel.model, rest)
	if err != nil {
		return err
	}
	if tr == nil {
		if n > 1 {
			a.fields[ref] = duckdbsql.NewColumnRef(append([]string{rel.node.RefName()}, rest...)...)
		}
		return nil
	}

	cte, err := a.ctes.cteFor(tr)
	if err != nil {
		return err
	}
	for _, hop := range tr.Hops {
		a.required[hop.To.Name] = true
	}
	alias := cte.Name
	if rel.node.Alias != "" {
		alias = rel.node.Alias + "_" + cte.Name
	}
	a.addJoin(rel.node, RelationJoin{CTE: cte, Alias: alias})
	a.fields[ref] = duckdbsql.NewColumnRef(alias, tr.Column)
	return nil
}

func (a *Analysis) addJoin(t *duckdbsql.TableName, j RelationJoin) {
	for _, existing := range a.joins[t] {
		if existing.Alias == j.Alias {
			return
		}
	}
	a.joins[t] = append(a.joins[t], j)
}

func (a *Analysis) resolveDefinitions() error {
	for _, name := range sortedKeys(a.required) {
		if err := a.resolver.require(name); err != nil {
			return err
		}
	}
	a.models = a.resolver.ordered()

	for name, mt := range a.metrics {
		q, err := ResolveMetric(mt)
		if err != nil {
			return err
		}
		a.metricDefs[name] = q
	}
	for name, ru := range a.rollups {
		q, err := ResolveRollup(ru)
		if err != nil {
			return err
		}
		a.metricDefs[name] = q
	}
	return nil
}

func isRollupCall(f *duckdbsql.FuncCall) bool {
	return f != nil && f.Schema == "" && strings.EqualFold(f.Name, "roll_up")
}

// rollupArgs extracts (metric, time grain, date part) from a roll_up call.
// Each argument is a bare identifier or a string literal.
func rollupArgs(f *duckdbsql.FuncCall) ([]string, bool) {
	if len(f.Args) != 3 || f.Star || f.Distinct {
		return nil, false
	}
	out := make([]string, 0, 3)
	for _, arg := range f.Args {
		switch x := arg.(type) {
		case *duckdbsql.ColumnRef:
			if len(x.Parts) != 1 {
				return nil, false
			}
			out = append(out, x.Parts[0])
		case *duckdbsql.Literal:
			if x.Type != duckdbsql.LiteralString {
				return nil, false
			}
			out = append(out, x.Value)
		default:
			return nil, false
		}
	}
	return out, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
