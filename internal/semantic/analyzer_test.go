package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
)

func analyze(t *testing.T, m *domain.Manifest, sql string) (*duckdbsql.SelectStmt, *Analysis) {
	t.Helper()
	stmt, err := duckdbsql.Parse(sql)
	require.NoError(t, err)
	a, err := Analyze(stmt, m, domain.Session{})
	require.NoError(t, err)
	return stmt, a
}

func modelNames(a *Analysis) []string {
	var names []string
	for _, def := range a.Models() {
		names = append(names, def.Model.Name)
	}
	return names
}

func TestAnalyze_RequiredModels(t *testing.T) {
	tests := []struct {
		name string
		m    *domain.Manifest
		sql  string
		want []string
	}{
		{"direct", bookstore(), "SELECT * FROM WishList", []string{"WishList"}},
		{"with_dependencies", bookstore(), "SELECT * FROM People", []string{"WishList", "People"}},
		{"in_subquery", bookstore(), "SELECT * FROM foo WHERE id IN (SELECT authorId FROM Book)", []string{"WishList", "People", "Book"}},
		{"in_derived_table", bookstore(), "SELECT * FROM (SELECT * FROM WishList) w", []string{"WishList"}},
		{"in_set_operation", bookstore(), "SELECT id FROM foo UNION SELECT id FROM WishList", []string{"WishList"}},
		{"metric_base", sales(), "SELECT * FROM Revenue", []string{"Orders"}},
		{"rollup_base", sales(), "SELECT * FROM roll_up(Revenue, created, YEAR)", []string{"Orders"}},
		{"none", bookstore(), "SELECT * FROM foo", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, a := analyze(t, tt.m, tt.sql)
			assert.Equal(t, tt.want, modelNames(a))
			assert.Equal(t, len(tt.want) > 0, a.HasModels())
		})
	}
}

func TestAnalyze_NodeIdentity(t *testing.T) {
	stmt, a := analyze(t, bookstore(), "SELECT * FROM People a JOIN People b ON a.id = b.id")
	from := stmt.Body.Left.From
	left := from.Source.(*duckdbsql.TableName)
	right := from.Joins[0].Right.(*duckdbsql.TableName)

	for _, tn := range []*duckdbsql.TableName{left, right} {
		mdl, ok := a.ModelRef(tn)
		require.True(t, ok)
		assert.Equal(t, "People", mdl.Name)
	}

	// a structurally equal node that is not part of the query is unknown
	_, ok := a.ModelRef(&duckdbsql.TableName{Name: "People", Alias: "a"})
	assert.False(t, ok)
}

func TestAnalyze_Fields(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"qualified_by_schema", "SELECT test.People.email FROM test.People", `"People"."email"`},
		{"qualified_by_catalog", "SELECT semlayer.test.People.email FROM semlayer.test.People", `"People"."email"`},
		{"traversal", "SELECT wishlist.bookId FROM People", `"` + peopleWishlist + `"."bookId"`},
		{"traversal_through_alias", "SELECT p.wishlist.bookId FROM People p", `"p_` + peopleWishlist + `"."bookId"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, a := analyze(t, bookstore(), tt.sql)
			ref := stmt.Body.Left.Columns[0].Expr.(*duckdbsql.ColumnRef)
			e, ok := a.Field(ref)
			require.True(t, ok)
			assert.Equal(t, tt.want, duckdbsql.FormatExpr(e))
		})
	}
}

func TestAnalyze_FieldsLeftAlone(t *testing.T) {
	for _, sql := range []string{
		"SELECT email FROM People",
		"SELECT People.email FROM People",
		"SELECT p.email FROM People p",
		"SELECT wishlist.bookId FROM foo",
		// an alias hides the model name
		"SELECT People.wishlist FROM People p, foo People",
	} {
		t.Run(sql, func(t *testing.T) {
			stmt, a := analyze(t, bookstore(), sql)
			ref := stmt.Body.Left.Columns[0].Expr.(*duckdbsql.ColumnRef)
			_, ok := a.Field(ref)
			assert.False(t, ok)
		})
	}
}

func TestAnalyze_Scoping(t *testing.T) {
	t.Run("qualifier_beats_relationship_column", func(t *testing.T) {
		// "wishlist" is an alias here, so wishlist.id reads the relation
		stmt, a := analyze(t, bookstore(), "SELECT wishlist.id FROM People wishlist")
		ref := stmt.Body.Left.Columns[0].Expr.(*duckdbsql.ColumnRef)
		_, ok := a.Field(ref)
		assert.False(t, ok)
		assert.Empty(t, a.RelationshipCTEs())
	})

	t.Run("inner_scope_wins", func(t *testing.T) {
		stmt, a := analyze(t, bookstore(), "SELECT * FROM People p WHERE EXISTS (SELECT 1 FROM People q WHERE q.id = wishlist.id)")
		outer := stmt.Body.Left.From.Source.(*duckdbsql.TableName)
		assert.Empty(t, a.Joins(outer))

		sub := stmt.Body.Left.Where.(*duckdbsql.ExistsExpr).Select
		inner := sub.Body.Left.From.Source.(*duckdbsql.TableName)
		require.Len(t, a.Joins(inner), 1)
		assert.Equal(t, "q_"+peopleWishlist, a.Joins(inner)[0].Alias)
	})

	t.Run("first_relation_wins", func(t *testing.T) {
		stmt, a := analyze(t, bookstore(), "SELECT wishlist.bookId FROM People a, People b")
		from := stmt.Body.Left.From
		assert.Len(t, a.Joins(from.Source.(*duckdbsql.TableName)), 1)
		assert.Empty(t, a.Joins(from.Joins[0].Right.(*duckdbsql.TableName)))
	})

	t.Run("correlated_reference", func(t *testing.T) {
		stmt, a := analyze(t, bookstore(), "SELECT * FROM People p WHERE EXISTS (SELECT 1 FROM WishList w WHERE w.id = p.wishlist.id)")
		outer := stmt.Body.Left.From.Source.(*duckdbsql.TableName)
		require.Len(t, a.Joins(outer), 1)
	})

	t.Run("non_model_relation_hides_outer_relationship_columns", func(t *testing.T) {
		for _, sql := range []string{
			"SELECT id FROM People WHERE EXISTS (SELECT 1 FROM orders o WHERE o.id = 1 AND book = 'x')",
			"SELECT id FROM People WHERE EXISTS (SELECT 1 FROM (SELECT 1 AS book) d WHERE book = 1)",
			"SELECT id FROM People WHERE EXISTS (SELECT 1 FROM range(3) r WHERE book = 1)",
		} {
			stmt, a := analyze(t, bookstore(), sql)
			outer := stmt.Body.Left.From.Source.(*duckdbsql.TableName)
			assert.Empty(t, a.Joins(outer), sql)
			assert.Empty(t, a.RelationshipCTEs(), sql)
		}
	})

	t.Run("model_scope_passes_outer_relationship_columns", func(t *testing.T) {
		stmt, a := analyze(t, bookstore(), "SELECT id FROM People p WHERE EXISTS (SELECT 1 FROM WishList w WHERE w.id = book.bookId)")
		outer := stmt.Body.Left.From.Source.(*duckdbsql.TableName)
		require.Len(t, a.Joins(outer), 1)
	})

	t.Run("derived_table_does_not_see_siblings", func(t *testing.T) {
		_, a := analyze(t, bookstore(), "SELECT * FROM People p, (SELECT wishlist.id FROM foo) x")
		assert.Empty(t, a.RelationshipCTEs())
	})
}

func TestAnalyze_CTEScoping(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []bool // whether each People table, in walk order, is the model
	}{
		{
			name: "nested_cte_hides_model_in_its_query_only",
			sql:  "SELECT email FROM People WHERE id IN (WITH People AS (SELECT 'x' AS id) SELECT id FROM People)",
			want: []bool{true, false},
		},
		{
			name: "sibling_subquery_unaffected",
			sql:  "SELECT * FROM People WHERE id IN (WITH People AS (SELECT 'x' AS id) SELECT id FROM People) AND email IN (SELECT email FROM People)",
			want: []bool{true, false, true},
		},
		{
			name: "cte_body_does_not_see_itself",
			sql:  "WITH People AS (SELECT * FROM People) SELECT * FROM People",
			want: []bool{true, false},
		},
		{
			name: "earlier_cte_does_not_see_later",
			sql:  "WITH a AS (SELECT * FROM People), People AS (SELECT 1 AS id) SELECT * FROM a, People",
			want: []bool{true, false},
		},
		{
			name: "recursive_cte_sees_itself",
			sql:  "WITH RECURSIVE People AS (SELECT 1 AS id UNION ALL SELECT id + 1 FROM People WHERE id < 3) SELECT * FROM People",
			want: []bool{false, false},
		},
		{
			name: "derived_table_sees_enclosing_cte",
			sql:  "WITH People AS (SELECT 1 AS id) SELECT * FROM (SELECT * FROM People) p",
			want: []bool{false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, a := analyze(t, bookstore(), tt.sql)
			var got []bool
			for _, tn := range duckdbsql.CollectTableNames(stmt) {
				if tn.Name == "People" {
					_, ok := a.ModelRef(tn)
					got = append(got, ok)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyze_RelationshipCTEs(t *testing.T) {
	_, a := analyze(t, bookstore(), "SELECT b.people.wishlist.bookId, b.people.email, p.wishlist.id FROM Book b, People p")
	var names []string
	for _, c := range a.RelationshipCTEs() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		RelationshipCTEName([]string{"Book", "people"}),
		bookPeopleWishlist,
		peopleWishlist,
	}, names)

	cte := a.RelationshipCTEs()[1]
	assert.Equal(t, "Book", cte.BaseModel)
	assert.Equal(t, "bookId", cte.RootKey)
	assert.Equal(t, "WishList", cte.Target)
	assert.Equal(t, []string{"Book", "people", "wishlist"}, cte.Path)
}

func TestAnalyze_TraversalErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want any
	}{
		{"unknown_relationship", "SELECT wishlist.nope.x FROM People", &domain.UnknownRelationshipError{}},
		{"unknown_column", "SELECT wishlist.nope FROM People", &domain.UnknownRelationshipError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := duckdbsql.Parse(tt.sql)
			require.NoError(t, err)
			_, err = Analyze(stmt, bookstore(), domain.Session{})
			require.Error(t, err)
			assert.IsType(t, tt.want, err)
		})
	}
}

func TestAnalyze_Rollups(t *testing.T) {
	stmt, a := analyze(t, sales(), "SELECT * FROM roll_up(Revenue, created, 'month') m, Revenue")
	ft := stmt.Body.Left.From.Source.(*duckdbsql.FuncTable)
	ru, ok := a.RollupRef(ft)
	require.True(t, ok)
	assert.Equal(t, "Revenue_created_MONTH", ru.Name())

	require.Len(t, a.Rollups(), 1)
	require.Len(t, a.Metrics(), 1)
	_, ok = a.Definition("Revenue_created_MONTH")
	assert.True(t, ok)
	_, ok = a.Definition("Revenue")
	assert.True(t, ok)
}

func TestAnalyze_UnvalidatedRollup(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM roll_up(Revenue, created, DAY)",
		"SELECT * FROM roll_up(Revenue, created)",
		"SELECT * FROM roll_up(Nope, created, YEAR)",
	} {
		t.Run(sql, func(t *testing.T) {
			stmt, err := duckdbsql.Parse(sql)
			require.NoError(t, err)
			_, err = Analyze(stmt, sales(), domain.Session{})
			var ie *domain.InternalInconsistencyError
			require.ErrorAs(t, err, &ie)
		})
	}
}
