package sqlrewrite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
	"semlayer/internal/semantic"
)

func testManifest() *domain.Manifest {
	return &domain.Manifest{
		Catalog: "semlayer",
		Schema:  "test",
		Relationships: []domain.Relationship{
			{Name: "WishListPeople", Models: []string{"WishList", "People"}, JoinType: domain.JoinTypeOneToOne, Condition: "WishList.id = People.id"},
		},
		Models: []domain.Model{
			{
				Name: "People", RefSQL: "SELECT * FROM read_parquet('people.parquet')", PrimaryKey: "id",
				Columns: []domain.Column{
					{Name: "id"},
					{Name: "email"},
					{Name: "wishlist", Type: "WishList", Relationship: "WishListPeople"},
				},
			},
			{
				Name: "WishList", RefSQL: "SELECT * FROM table_wishlist", PrimaryKey: "id",
				Columns: []domain.Column{{Name: "id"}, {Name: "bookId"}},
			},
		},
		Metrics: []domain.Metric{{
			Name: "Signups", BaseObject: "People",
			Dimensions: []domain.Column{{Name: "email"}},
			Measures:   []domain.Column{{Name: "n", Expression: "count(*)"}},
		}},
	}
}

func normalize(t *testing.T, sql string) string {
	t.Helper()
	stmt, err := duckdbsql.Parse(sql)
	require.NoError(t, err)
	return duckdbsql.Format(stmt)
}

func TestRewrite(t *testing.T) {
	people := `People AS (SELECT id, email FROM (SELECT * FROM read_parquet('people.parquet')) AS People)`
	wishlist := `WishList AS (SELECT id, bookId FROM (SELECT * FROM table_wishlist) AS WishList)`

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"passthrough", "select * from foo", "SELECT * FROM foo"},
		{"model", "SELECT email FROM People", "WITH " + people + " SELECT email FROM People"},
		{"two_models", "SELECT * FROM People p JOIN WishList w ON p.id = w.id", "WITH " + people + ", " + wishlist + " SELECT * FROM People p JOIN WishList w ON p.id = w.id"},
		{"metric", "SELECT * FROM Signups", "WITH " + people + ", Signups AS (SELECT email, count(*) AS n FROM People GROUP BY email) SELECT * FROM Signups"},
		{"trailing_semicolon", "SELECT email FROM People;", "WITH " + people + " SELECT email FROM People"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rewrite(tt.sql, domain.Session{}, testManifest())
			require.NoError(t, err)
			assert.Equal(t, normalize(t, tt.want), got)
		})
	}
}

func TestRewrite_Errors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		m    *domain.Manifest
		want any
	}{
		{"syntax", "SELEC * FROM People", testManifest(), &domain.SyntaxError{}},
		{"multi_statement", "SELECT 1; SELECT 2", testManifest(), &domain.SyntaxError{}},
		{"unknown_rollup", "SELECT * FROM roll_up(Signups, created, YEAR)", testManifest(), &domain.ValidationError{}},
		{"unknown_relationship", "SELECT wishlist.id.x FROM People", testManifest(), &domain.UnknownRelationshipError{}},
		{"conflict", "WITH People_x AS (SELECT 1), WishList AS (SELECT 1) SELECT wishlist.id FROM People", testManifest(), &domain.ConflictError{}},
		{"no_manifest", "SELECT 1", nil, &domain.ValidationError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rewrite(tt.sql, domain.Session{}, tt.m)
			require.Error(t, err)
			assert.Empty(t, got)
			assert.IsType(t, tt.want, err)
		})
	}
}

type recordRule struct {
	name  string
	calls *[]string
}

func (r recordRule) Name() string { return r.name }

func (r recordRule) Apply(stmt *duckdbsql.SelectStmt, _ domain.Session, a *semantic.Analysis, _ *domain.Manifest) (*duckdbsql.SelectStmt, error) {
	*r.calls = append(*r.calls, r.name)
	if a == nil {
		return nil, errors.New("missing analysis")
	}
	return stmt, nil
}

type failRule struct{}

func (failRule) Name() string { return "fail" }

func (failRule) Apply(*duckdbsql.SelectStmt, domain.Session, *semantic.Analysis, *domain.Manifest) (*duckdbsql.SelectStmt, error) {
	return nil, domain.ErrInternalInconsistency("boom")
}

func TestCompile_RuleOrder(t *testing.T) {
	var calls []string
	res, err := Compile("SELECT email FROM People", domain.Session{}, testManifest(),
		recordRule{"first", &calls},
		semantic.ModelRewrite{},
		recordRule{"last", &calls},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "last"}, calls)
	assert.True(t, res.Analysis.HasModels())
	assert.NotSame(t, res.Input, res.Output)
	assert.Equal(t, normalize(t, "SELECT email FROM People"), duckdbsql.Format(res.Input))
	assert.Contains(t, res.SQL(), `WITH "People" AS`)
}

func TestCompile_FailingRuleStops(t *testing.T) {
	var calls []string
	_, err := Compile("SELECT 1", domain.Session{}, testManifest(), failRule{}, recordRule{"after", &calls})
	var ie *domain.InternalInconsistencyError
	require.ErrorAs(t, err, &ie)
	assert.Empty(t, calls)
}

func TestCompile_Session(t *testing.T) {
	res, err := Compile("SELECT * FROM People", domain.Session{Schema: "elsewhere"}, testManifest())
	require.NoError(t, err)
	assert.False(t, res.Analysis.HasModels())
	assert.Same(t, res.Input, res.Output)
}

func TestDenyFunctions(t *testing.T) {
	rules := []Rule{DangerousFunctions(), semantic.ModelRewrite{}}
	tests := []struct {
		name    string
		sql     string
		wantErr string
	}{
		{"allowed", "SELECT lower(email) FROM People", ""},
		{"base_sql_not_checked", "SELECT * FROM People", ""},
		{"table_function", "SELECT * FROM read_csv('/etc/passwd')", "prohibited function: read_csv"},
		{"case_insensitive", "SELECT * FROM READ_PARQUET('x')", "prohibited function: READ_PARQUET"},
		{"nested", "SELECT * FROM People WHERE id IN (SELECT name FROM duckdb_secrets())", "prohibited function: duckdb_secrets"},
		{"scalar", "SELECT glob('*') FROM People", "prohibited function: glob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rewrite(tt.sql, domain.Session{}, testManifest(), rules...)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExtractTableNames(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"simple", "SELECT * FROM titanic", []string{"titanic"}},
		{"multiple_from", "SELECT * FROM titanic, passengers", []string{"titanic", "passengers"}},
		{"join", "SELECT * FROM titanic t JOIN cabins c ON t.id = c.passenger_id", []string{"titanic", "cabins"}},
		{"subquery", "SELECT * FROM (SELECT * FROM titanic) sub", []string{"titanic"}},
		{"subquery_in_where", "SELECT * FROM titanic WHERE id IN (SELECT passenger_id FROM bookings)", []string{"titanic", "bookings"}},
		{"union", "SELECT * FROM titanic UNION ALL SELECT * FROM passengers", []string{"titanic", "passengers"}},
		{"dedup", "SELECT * FROM titanic t1 JOIN titanic t2 ON t1.id = t2.id", []string{"titanic"}},
		{"quoted", `SELECT "PassengerId" FROM "titanic"`, []string{"titanic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractTableNames(tt.sql)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}

	_, err := ExtractTableNames("NOT SQL AT ALL")
	var se *domain.SyntaxError
	require.ErrorAs(t, err, &se)
}
