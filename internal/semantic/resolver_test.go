package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
)

func calcModel(cols ...domain.Column) *domain.Manifest {
	return &domain.Manifest{
		Catalog: "c", Schema: "s",
		Models: []domain.Model{{Name: "M", RefSQL: "SELECT * FROM t", PrimaryKey: "a", Columns: cols}},
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name    string
		columns []domain.Column
		want    string
	}{
		{
			name:    "plain_only",
			columns: []domain.Column{{Name: "a"}, {Name: "b"}},
			want:    "SELECT a, b FROM (SELECT * FROM t) AS M",
		},
		{
			name:    "calculated",
			columns: []domain.Column{{Name: "a"}, {Name: "b", Expression: "a + 1"}},
			want:    "SELECT a, a + 1 AS b FROM (SELECT * FROM t) AS M",
		},
		{
			name: "calculated_inlined_and_parenthesised",
			columns: []domain.Column{
				{Name: "a"},
				{Name: "b", Expression: "a + 1"},
				{Name: "c", Expression: "b * 2"},
			},
			want: "SELECT a, a + 1 AS b, (a + 1) * 2 AS c FROM (SELECT * FROM t) AS M",
		},
		{
			name: "calculated_declared_before_dependency",
			columns: []domain.Column{
				{Name: "a"},
				{Name: "c", Expression: "upper(b)"},
				{Name: "b", Expression: "lower(a)"},
			},
			want: "SELECT a, upper(lower(a)) AS c, lower(a) AS b FROM (SELECT * FROM t) AS M",
		},
		{
			name:    "model_qualifier_dropped",
			columns: []domain.Column{{Name: "a"}, {Name: "b", Expression: "M.a * 10"}},
			want:    "SELECT a, a * 10 AS b FROM (SELECT * FROM t) AS M",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := calcModel(tt.columns...)
			def, err := ResolveModel(m, &m.Models[0])
			require.NoError(t, err)
			assert.Empty(t, def.DependsOn)
			assert.Equal(t, normalize(t, tt.want), duckdbsql.Format(def.Query))
		})
	}
}

func TestResolveModel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		model   domain.Model
		wantMsg string
	}{
		{
			name: "calculated_cycle",
			model: domain.Model{Name: "M", RefSQL: "SELECT 1", PrimaryKey: "a", Columns: []domain.Column{
				{Name: "a"},
				{Name: "b", Expression: "c + 1"},
				{Name: "c", Expression: "b + 1"},
			}},
			wantMsg: "b -> c -> b",
		},
		{
			name:    "bad_ref_sql",
			model:   domain.Model{Name: "M", RefSQL: "SELEC nope", PrimaryKey: "a", Columns: []domain.Column{{Name: "a"}}},
			wantMsg: "refSql",
		},
		{
			name: "bad_expression",
			model: domain.Model{Name: "M", RefSQL: "SELECT 1", PrimaryKey: "a", Columns: []domain.Column{
				{Name: "a"},
				{Name: "b", Expression: "a +"},
			}},
			wantMsg: `column "b"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &domain.Manifest{Catalog: "c", Schema: "s", Models: []domain.Model{tt.model}}
			_, err := ResolveModel(m, &m.Models[0])
			var inv *domain.InvalidModelDefinitionError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, "M", inv.Name)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestResolveModel_Traversals(t *testing.T) {
	m := bookstore()
	book, _ := m.Model("Book")
	def, err := ResolveModel(m, book)
	require.NoError(t, err)
	assert.Equal(t, []string{"People", "WishList"}, def.DependsOn)
	assert.Equal(t, normalize(t, bookDef[len("Book AS ("):len(bookDef)-1]), duckdbsql.Format(def.Query))
}

func TestResolveModel_TraversalErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want any
	}{
		{"intermediate_not_relationship", "wishlist.bookId.x", &domain.UnknownRelationshipError{}},
		{"unknown_final_column", "wishlist.nope", &domain.UnknownRelationshipError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := bookstore()
			people := &m.Models[0]
			people.Columns = append(people.Columns, domain.Column{Name: "broken", Expression: tt.expr})
			_, err := ResolveModel(m, people)
			require.Error(t, err)
			assert.IsType(t, tt.want, err)
		})
	}
}

func TestResolver_Ordering(t *testing.T) {
	m := bookstore()
	r := newResolver(m)
	for _, name := range []string{"Book", "WishList", "People"} {
		require.NoError(t, r.require(name))
	}
	var names []string
	for _, def := range r.ordered() {
		names = append(names, def.Model.Name)
	}
	assert.Equal(t, []string{"WishList", "People", "Book"}, names)
}

func TestResolver_Cycle(t *testing.T) {
	r := newResolver(cyclic())
	err := r.require("People")
	var cyc *domain.CyclicModelDependencyError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"People", "WishList", "People"}, cyc.Cycle)
	assert.Equal(t, "found cycle in models: People -> WishList -> People", err.Error())
}

func TestResolver_UnknownModel(t *testing.T) {
	r := newResolver(bookstore())
	err := r.require("Nope")
	var um *domain.UnknownModelError
	require.ErrorAs(t, err, &um)
}

func TestResolveMetric(t *testing.T) {
	m := sales()
	q, err := ResolveMetric(&m.Metrics[0])
	require.NoError(t, err)
	assert.Equal(t, normalize(t, "SELECT customer, sum(amount) AS total FROM Orders GROUP BY customer"), duckdbsql.Format(q))
}

func TestResolveRollup(t *testing.T) {
	m := sales()
	tests := []struct {
		part string
		name string
		want string
	}{
		{
			part: "YEAR",
			name: "Revenue_created_YEAR",
			want: "SELECT date_trunc('year', created_at) AS created, customer, sum(amount) AS total FROM Orders GROUP BY date_trunc('year', created_at), customer",
		},
		{
			part: "month",
			name: "Revenue_created_MONTH",
			want: "SELECT date_trunc('month', created_at) AS created, customer, sum(amount) AS total FROM Orders GROUP BY date_trunc('month', created_at), customer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.part, func(t *testing.T) {
			ru, ok := m.Rollup("Revenue", "created", tt.part)
			require.True(t, ok)
			assert.Equal(t, tt.name, ru.Name())
			q, err := ResolveRollup(ru)
			require.NoError(t, err)
			assert.Equal(t, normalize(t, tt.want), duckdbsql.Format(q))
		})
	}
}

func TestRelationshipCTEName(t *testing.T) {
	a := RelationshipCTEName([]string{"People", "wishlist"})
	assert.Regexp(t, `^rs_People_wishlist_[0-9a-f]{8}$`, a)
	assert.Equal(t, a, RelationshipCTEName([]string{"People", "wishlist"}))

	// joined names collide, hashes do not
	b := RelationshipCTEName([]string{"A_b", "c"})
	c := RelationshipCTEName([]string{"A", "b_c"})
	assert.NotEqual(t, b, c)
}

func TestBindCondition_SelfRelationship(t *testing.T) {
	rel := &domain.Relationship{Name: "Manager", Models: []string{"Emp", "Emp"}, Condition: "Emp.manager_id = Emp.id"}
	used := map[string]bool{"Emp": true}
	to := uniqueAlias(used, "Emp")
	assert.Equal(t, "Emp_1", to)

	cond, err := bindCondition(rel, "Emp", "Emp", "Emp", to)
	require.NoError(t, err)
	assert.Equal(t, `"Emp"."manager_id" = "Emp_1"."id"`, duckdbsql.FormatExpr(cond))
}

func TestCheckSelfCondition(t *testing.T) {
	tests := []struct {
		name    string
		models  []string
		cond    string
		wantErr bool
	}{
		{name: "source_first", models: []string{"Emp", "Emp"}, cond: "Emp.manager_id = Emp.id"},
		{name: "extra_unqualified_predicate", models: []string{"Emp", "Emp"}, cond: "Emp.manager_id = Emp.id AND active"},
		{name: "single_reference", models: []string{"Emp", "Emp"}, cond: "Emp.manager_id IS NOT NULL", wantErr: true},
		{name: "three_references", models: []string{"Emp", "Emp"}, cond: "Emp.manager_id = Emp.id AND Emp.active", wantErr: true},
		{name: "not_a_self_relationship", models: []string{"Emp", "Dept"}, cond: "Emp.dept_id = Dept.id AND Emp.active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := &domain.Relationship{Name: "Manager", Models: tt.models, Condition: tt.cond}
			cond, err := duckdbsql.ParseExpr(tt.cond)
			require.NoError(t, err)

			err = checkSelfCondition(rel, cond)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.IsType(t, &domain.InvalidModelDefinitionError{}, err)
			assert.Contains(t, err.Error(), "source side first")

			_, err = bindCondition(rel, "Emp", "Emp", "Emp", "Emp_1")
			assert.IsType(t, &domain.InvalidModelDefinitionError{}, err)
		})
	}
}
