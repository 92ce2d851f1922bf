package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
	"semlayer/internal/engine"
	"semlayer/internal/service/manifest"
	"semlayer/internal/sqlrewrite"
)

func bookstore() *domain.Manifest {
	return &domain.Manifest{
		Catalog: "semlayer",
		Schema:  "test",
		Relationships: []domain.Relationship{
			{Name: "WishListPeople", Models: []string{"WishList", "People"}, JoinType: domain.JoinTypeOneToOne, Condition: "WishList.id = People.id"},
		},
		Models: []domain.Model{
			{
				Name: "People", RefSQL: "SELECT * FROM table_people", PrimaryKey: "id",
				Columns: []domain.Column{
					{Name: "id", Type: "VARCHAR"},
					{Name: "email", Type: "VARCHAR"},
					{Name: "gift", Type: "VARCHAR", Expression: "wishlist.bookId"},
					{Name: "wishlist", Type: "WishList", Relationship: "WishListPeople"},
				},
			},
			{
				Name: "WishList", RefSQL: "SELECT * FROM table_wishlist", PrimaryKey: "id",
				Columns: []domain.Column{{Name: "id", Type: "VARCHAR"}, {Name: "bookId", Type: "VARCHAR"}},
			},
		},
		Metrics: []domain.Metric{{
			Name: "Signups", BaseObject: "People",
			Dimensions: []domain.Column{{Name: "email"}},
			Measures:   []domain.Column{{Name: "n", Expression: "count(*)"}},
		}},
	}
}

func deployed(t *testing.T) *manifest.Service {
	t.Helper()
	ms := manifest.NewService(nil, nil)
	_, err := ms.Deploy(context.Background(), bookstore())
	require.NoError(t, err)
	return ms
}

func normalize(t *testing.T, sql string) string {
	t.Helper()
	stmt, err := duckdbsql.Parse(sql)
	require.NoError(t, err)
	return duckdbsql.Format(stmt)
}

type recordingTranslator struct {
	calls [][3]string
	err   error
}

func (r *recordingTranslator) Translate(_ context.Context, sql, source, target string) (string, error) {
	r.calls = append(r.calls, [3]string{sql, source, target})
	if r.err != nil {
		return "", r.err
	}
	return "/* " + target + " */ " + sql, nil
}

func TestSession(t *testing.T) {
	m := bookstore()
	tests := []struct {
		name     string
		defaults domain.Session
		req      Request
		want     domain.Session
	}{
		{"manifest", domain.Session{}, Request{}, domain.Session{Catalog: "semlayer", Schema: "test"}},
		{"configured", domain.Session{Catalog: "c", Schema: "s"}, Request{}, domain.Session{Catalog: "c", Schema: "s"}},
		{"request", domain.Session{Catalog: "c", Schema: "s"}, Request{Schema: "r"}, domain.Session{Catalog: "c", Schema: "r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil, Options{Defaults: tt.defaults})
			assert.Equal(t, tt.want, svc.Session(tt.req, m))
		})
	}
}

func TestRewrite(t *testing.T) {
	ms := deployed(t)
	svc := NewService(ms, Options{})

	res, err := svc.Rewrite(context.Background(), Request{SQL: "SELECT email FROM People"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.SQL, "WITH "))
	assert.Contains(t, res.SQL, "table_people")
	assert.Equal(t, []string{"WishList", "People"}, res.Models)

	cur, _ := ms.Current()
	assert.Equal(t, cur.Fingerprint, res.Fingerprint)
}

func TestRewrite_Passthrough(t *testing.T) {
	svc := NewService(deployed(t), Options{})
	res, err := svc.Rewrite(context.Background(), Request{SQL: "select * from foo"})
	require.NoError(t, err)
	assert.Equal(t, normalize(t, "SELECT * FROM foo"), res.SQL)
	assert.Empty(t, res.Models)
}

func TestRewrite_OtherSchemaPassesThrough(t *testing.T) {
	svc := NewService(deployed(t), Options{})
	res, err := svc.Rewrite(context.Background(), Request{SQL: "SELECT * FROM other.People"})
	require.NoError(t, err)
	assert.Equal(t, normalize(t, "SELECT * FROM other.People"), res.SQL)

	res, err = svc.Rewrite(context.Background(), Request{SQL: "SELECT * FROM other.People", Schema: "other"})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "table_people")
}

func TestRewrite_Translated(t *testing.T) {
	tr := &recordingTranslator{}
	svc := NewService(deployed(t), Options{Translator: tr, SourceDialect: "duckdb", TargetDialect: "trino"})

	res, err := svc.Rewrite(context.Background(), Request{SQL: "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, "/* trino */ SELECT 1", res.SQL)
	assert.Equal(t, "trino", res.Dialect)
	require.Len(t, tr.calls, 1)
	assert.Equal(t, [3]string{"SELECT 1", "duckdb", "trino"}, tr.calls[0])

	tr.err = domain.ErrTranslation("translator unreachable")
	_, err = svc.Rewrite(context.Background(), Request{SQL: "SELECT 1"})
	var te *domain.TranslationError
	require.ErrorAs(t, err, &te)
}

func TestRewrite_Errors(t *testing.T) {
	tests := []struct {
		name string
		ms   func(t *testing.T) *manifest.Service
		sql  string
		want any
	}{
		{"empty", deployed, "  ", &domain.ValidationError{}},
		{"no manifest", func(*testing.T) *manifest.Service { return manifest.NewService(nil, nil) }, "SELECT 1", &domain.ValidationError{}},
		{"syntax", deployed, "SELEC 1", &domain.SyntaxError{}},
		{"unknown relationship", deployed, "SELECT wishlist.id.x FROM People", &domain.UnknownRelationshipError{}},
		{"unknown rollup", deployed, "SELECT * FROM roll_up(Signups, created, YEAR)", &domain.ValidationError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.ms(t), Options{})
			res, err := svc.Rewrite(context.Background(), Request{SQL: tt.sql})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.IsType(t, tt.want, err)
		})
	}
}

func setupEngine(t *testing.T, maxRows int) *engine.Engine {
	t.Helper()
	eng, err := engine.Open("", maxRows, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE table_people (id VARCHAR, email VARCHAR)`,
		`INSERT INTO table_people VALUES ('1', 'a@x'), ('2', 'b@x'), ('3', 'a@x')`,
		`CREATE TABLE table_wishlist (id VARCHAR, bookId VARCHAR)`,
		`INSERT INTO table_wishlist VALUES ('1', 'B1'), ('2', 'B2')`,
	} {
		require.NoError(t, eng.Exec(ctx, stmt))
	}
	return eng
}

func TestExecute(t *testing.T) {
	svc := NewService(deployed(t), Options{Executor: setupEngine(t, 0), Deny: sqlrewrite.DangerousFunctions()})
	ctx := context.Background()

	res, err := svc.Execute(ctx, Request{SQL: "SELECT id, email FROM People ORDER BY id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, res.Columns)
	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, []any{"1", "a@x"}, res.Rows[0])

	res, err = svc.Execute(ctx, Request{SQL: "SELECT email, n FROM Signups ORDER BY email"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "a@x", res.Rows[0][0])
	assert.EqualValues(t, 2, res.Rows[0][1])

	res, err = svc.Execute(ctx, Request{SQL: "SELECT id, wishlist.bookId FROM People ORDER BY id"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "B1", res.Rows[0][1])
	assert.Nil(t, res.Rows[2][1])
}

func TestExecute_Truncated(t *testing.T) {
	svc := NewService(deployed(t), Options{Executor: setupEngine(t, 2)})
	res, err := svc.Execute(context.Background(), Request{SQL: "SELECT id FROM People"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.True(t, res.Truncated)
}

func TestExecute_DeniedFunction(t *testing.T) {
	exec := &failingExecutor{}
	svc := NewService(deployed(t), Options{Executor: exec, Deny: sqlrewrite.DangerousFunctions()})

	_, err := svc.Execute(context.Background(), Request{SQL: "SELECT * FROM read_csv('/etc/passwd')"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "read_csv")
	assert.Zero(t, exec.calls)
}

func TestExecute_NotConfigured(t *testing.T) {
	svc := NewService(deployed(t), Options{})
	_, err := svc.Execute(context.Background(), Request{SQL: "SELECT 1"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestExecute_EngineError(t *testing.T) {
	exec := &failingExecutor{err: errors.New("disk full")}
	svc := NewService(deployed(t), Options{Executor: exec})
	_, err := svc.Execute(context.Background(), Request{SQL: "SELECT 1"})
	require.Error(t, err)
	assert.Equal(t, 1, exec.calls)
}

type failingExecutor struct {
	calls int
	err   error
}

func (f *failingExecutor) Query(context.Context, string) (*engine.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &engine.Result{}, nil
}
