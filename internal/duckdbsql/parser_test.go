package duckdbsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptySQL(t *testing.T) {
	_, err := Parse("   ")
	require.Error(t, err)
}

func TestParse_MultiStatement(t *testing.T) {
	_, err := Parse("SELECT 1; SELECT 2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multi-statement")
}

func TestParse_TrailingSemicolon(t *testing.T) {
	stmt, err := Parse("SELECT 1;")
	require.NoError(t, err)
	require.NotNil(t, stmt.Body)
}

func TestParse_InvalidSQL(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"misspelled", "SELEKT * FORM titanic"},
		{"dangling_from", "SELECT * FROM"},
		{"unclosed_paren", "SELECT (1 + 2 FROM t"},
		{"insert", "INSERT INTO t VALUES (1)"},
		{"trailing_garbage", "SELECT 1 FROM t )"},
		{"bad_dot", "SELECT a., b FROM t"},
		{"case_without_when", "SELECT CASE END"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.sql)
			require.Error(t, err)
		})
	}
}

func TestParse_UnsupportedStatement(t *testing.T) {
	_, err := Parse("DELETE FROM t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported statement")
}

func TestParseExpr_Simple(t *testing.T) {
	expr, err := ParseExpr(`"Pclass" = 1`)
	require.NoError(t, err)
	require.IsType(t, &BinaryExpr{}, expr)

	bin := expr.(*BinaryExpr)
	assert.Equal(t, TOKEN_EQ, bin.Op)
	assert.IsType(t, &ColumnRef{}, bin.Left)
	assert.IsType(t, &Literal{}, bin.Right)
}

func TestParseExpr_TrailingGarbage(t *testing.T) {
	_, err := ParseExpr("1 + 2 GARBAGE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected token")
}

func TestParseExpr_Empty(t *testing.T) {
	_, err := ParseExpr("")
	require.Error(t, err)
}

func TestParseExpr_MultiPartColumnRef(t *testing.T) {
	expr, err := ParseExpr("people.wishlist.bookId")
	require.NoError(t, err)

	ref, ok := expr.(*ColumnRef)
	require.True(t, ok)
	assert.Equal(t, []string{"people", "wishlist", "bookId"}, ref.Parts)
	assert.Equal(t, "bookId", ref.Column())
	assert.Equal(t, []string{"people", "wishlist"}, ref.Qualifier())
}

func TestParseExpr_Precedence(t *testing.T) {
	expr, err := ParseExpr("a + b * c")
	require.NoError(t, err)

	bin := expr.(*BinaryExpr)
	assert.Equal(t, TOKEN_PLUS, bin.Op)
	right, ok := bin.Right.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, TOKEN_STAR, right.Op)
}

func TestParseExpr_KeywordAsName(t *testing.T) {
	expr, err := ParseExpr("t.order + first")
	require.NoError(t, err)

	bin := expr.(*BinaryExpr)
	assert.Equal(t, []string{"t", "order"}, bin.Left.(*ColumnRef).Parts)
	assert.Equal(t, []string{"first"}, bin.Right.(*ColumnRef).Parts)
}

func TestParse_TableNames(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want TableName
	}{
		{"bare", "SELECT * FROM People", TableName{Name: "People"}},
		{"alias", "SELECT * FROM People p", TableName{Name: "People", Alias: "p"}},
		{"as_alias", "SELECT * FROM People AS p", TableName{Name: "People", Alias: "p"}},
		{"schema", "SELECT * FROM s.People", TableName{Schema: "s", Name: "People"}},
		{"catalog", "SELECT * FROM c.s.People x", TableName{Catalog: "c", Schema: "s", Name: "People", Alias: "x"}},
		{"quoted", `SELECT * FROM "My Table"`, TableName{Name: "My Table"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Parse(tt.sql)
			require.NoError(t, err)
			tn, ok := stmt.Body.Left.From.Source.(*TableName)
			require.True(t, ok)
			assert.Equal(t, tt.want, *tn)
		})
	}
}

func TestParse_TableFunction(t *testing.T) {
	stmt, err := Parse("SELECT * FROM roll_up(Revenue, createdAt, YEAR) r")
	require.NoError(t, err)

	ft, ok := stmt.Body.Left.From.Source.(*FuncTable)
	require.True(t, ok)
	assert.Equal(t, "roll_up", ft.Func.Name)
	assert.Equal(t, "r", ft.Alias)
	require.Len(t, ft.Func.Args, 3)
	assert.Equal(t, "YEAR", ft.Func.Args[2].(*ColumnRef).Column())
}

func TestParse_Joins(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM a
		LEFT JOIN b ON a.id = b.id
		JOIN c USING (id)
		CROSS JOIN d
		, e`)
	require.NoError(t, err)

	joins := stmt.Body.Left.From.Joins
	require.Len(t, joins, 4)
	assert.Equal(t, JoinLeft, joins[0].Type)
	assert.NotNil(t, joins[0].Condition)
	assert.Equal(t, JoinInner, joins[1].Type)
	assert.Equal(t, []string{"id"}, joins[1].Using)
	assert.Equal(t, JoinCross, joins[2].Type)
	assert.Equal(t, JoinComma, joins[3].Type)
}

func TestParse_ParenthesizedJoin(t *testing.T) {
	stmt, err := Parse("SELECT * FROM (a LEFT JOIN b ON a.id = b.id) JOIN c ON c.id = a.id")
	require.NoError(t, err)

	from := stmt.Body.Left.From
	jt, ok := from.Source.(*JoinedTable)
	require.True(t, ok)
	assert.Equal(t, "a", jt.Source.(*TableName).Name)
	require.Len(t, jt.Joins, 1)
	assert.Equal(t, "b", jt.Joins[0].Right.(*TableName).Name)
	require.Len(t, from.Joins, 1)
}

func TestParse_ParenthesizedSingleTable(t *testing.T) {
	stmt, err := Parse("SELECT * FROM (a)")
	require.NoError(t, err)
	assert.IsType(t, &TableName{}, stmt.Body.Left.From.Source)
}

func TestParse_WithClause(t *testing.T) {
	stmt, err := Parse("WITH x AS (SELECT 1 AS a), y(b) AS (SELECT a FROM x) SELECT b FROM y")
	require.NoError(t, err)
	require.NotNil(t, stmt.With)
	require.Len(t, stmt.With.CTEs, 2)
	assert.Equal(t, "x", stmt.With.CTEs[0].Name)
	assert.Equal(t, []string{"b"}, stmt.With.CTEs[1].Columns)
	assert.Equal(t, []string{"x", "y"}, CTENames(stmt))
}

func TestParse_SetOperation(t *testing.T) {
	stmt, err := Parse("SELECT a FROM t UNION ALL SELECT a FROM u")
	require.NoError(t, err)
	assert.Equal(t, SetOpUnionAll, stmt.Body.Op)
	require.NotNil(t, stmt.Body.Right)
}

func TestParse_SelectItems(t *testing.T) {
	stmt, err := Parse("SELECT *, p.*, a AS x, b y, z: c + 1 FROM p")
	require.NoError(t, err)

	cols := stmt.Body.Left.Columns
	require.Len(t, cols, 5)
	assert.True(t, cols[0].Star)
	assert.Equal(t, "p", cols[1].TableStar)
	assert.Equal(t, "x", cols[2].Alias)
	assert.Equal(t, "y", cols[3].Alias)
	assert.Equal(t, "z", cols[4].Alias)
	assert.IsType(t, &BinaryExpr{}, cols[4].Expr)
}

func TestParse_Clauses(t *testing.T) {
	stmt, err := Parse(`SELECT a, count(*) FROM t WHERE a > 1 GROUP BY a HAVING count(*) > 2
		QUALIFY row_number() OVER (PARTITION BY a ORDER BY a) = 1
		ORDER BY a DESC NULLS LAST LIMIT 10 OFFSET 5`)
	require.NoError(t, err)

	sc := stmt.Body.Left
	assert.NotNil(t, sc.Where)
	assert.Len(t, sc.GroupBy, 1)
	assert.NotNil(t, sc.Having)
	assert.NotNil(t, sc.Qualify)
	require.Len(t, sc.OrderBy, 1)
	assert.True(t, sc.OrderBy[0].Desc)
	require.NotNil(t, sc.OrderBy[0].NullsFirst)
	assert.False(t, *sc.OrderBy[0].NullsFirst)
	assert.NotNil(t, sc.Limit)
	assert.NotNil(t, sc.Offset)
}
