package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
)

// bookstore is the People / Book / WishList manifest used across the tests.
func bookstore() *domain.Manifest {
	return &domain.Manifest{
		Catalog: "semlayer",
		Schema:  "test",
		Relationships: []domain.Relationship{
			{Name: "WishListPeople", Models: []string{"WishList", "People"}, JoinType: domain.JoinTypeOneToOne, Condition: "WishList.id = People.id"},
			{Name: "PeopleBook", Models: []string{"People", "Book"}, JoinType: domain.JoinTypeOneToMany, Condition: "People.id = Book.authorId"},
		},
		Models: []domain.Model{
			{
				Name:       "People",
				RefSQL:     "SELECT * FROM table_people",
				PrimaryKey: "id",
				Columns: []domain.Column{
					{Name: "id", Type: "VARCHAR"},
					{Name: "email", Type: "VARCHAR"},
					{Name: "gift", Type: "VARCHAR", Expression: "wishlist.bookId"},
					{Name: "book", Type: "Book", Relationship: "PeopleBook"},
					{Name: "wishlist", Type: "WishList", Relationship: "WishListPeople"},
				},
			},
			{
				Name:       "Book",
				RefSQL:     "SELECT * FROM table_book",
				PrimaryKey: "bookId",
				Columns: []domain.Column{
					{Name: "bookId", Type: "VARCHAR"},
					{Name: "authorId", Type: "VARCHAR"},
					{Name: "publish_date", Type: "DATE"},
					{Name: "publish_year", Type: "DATE", Expression: "date_trunc('year', publish_date)"},
					{Name: "author_gift_id", Type: "VARCHAR", Expression: "people.wishlist.bookId"},
					{Name: "people", Type: "People", Relationship: "PeopleBook"},
				},
			},
			{
				Name:       "WishList",
				RefSQL:     "SELECT * FROM table_wishlist",
				PrimaryKey: "id",
				Columns: []domain.Column{
					{Name: "id", Type: "VARCHAR"},
					{Name: "bookId", Type: "VARCHAR"},
				},
			},
		},
	}
}

// cyclic makes People and WishList read each other through calculated columns.
func cyclic() *domain.Manifest {
	return &domain.Manifest{
		Catalog: "semlayer",
		Schema:  "test",
		Relationships: []domain.Relationship{
			{Name: "WishListPeople", Models: []string{"WishList", "People"}, JoinType: domain.JoinTypeOneToOne, Condition: "WishList.id = People.id"},
		},
		Models: []domain.Model{
			{
				Name: "People", RefSQL: "SELECT * FROM People", PrimaryKey: "id",
				Columns: []domain.Column{
					{Name: "id"},
					{Name: "email"},
					{Name: "gift", Expression: "wishlist.bookId"},
					{Name: "wishlist", Type: "WishList", Relationship: "WishListPeople"},
				},
			},
			{
				Name: "WishList", RefSQL: "SELECT * FROM WishList", PrimaryKey: "id",
				Columns: []domain.Column{
					{Name: "id"},
					{Name: "bookId"},
					{Name: "peopleId", Expression: "people.id"},
					{Name: "people", Type: "People", Relationship: "WishListPeople"},
				},
			},
			{
				Name: "Shelf", RefSQL: "SELECT * FROM shelves", PrimaryKey: "id",
				Columns: []domain.Column{{Name: "id"}},
			},
		},
	}
}

// sales is a single-model manifest with a metric and time grains.
func sales() *domain.Manifest {
	return &domain.Manifest{
		Catalog: "semlayer",
		Schema:  "test",
		Models: []domain.Model{
			{
				Name: "Orders", RefSQL: "SELECT * FROM orders", PrimaryKey: "id",
				Columns: []domain.Column{
					{Name: "id"},
					{Name: "customer"},
					{Name: "amount"},
					{Name: "created_at"},
				},
			},
		},
		Metrics: []domain.Metric{
			{
				Name:       "Revenue",
				BaseObject: "Orders",
				Dimensions: []domain.Column{{Name: "customer"}},
				Measures:   []domain.Column{{Name: "total", Expression: "sum(amount)"}},
				TimeGrains: []domain.TimeGrain{{Name: "created", RefColumn: "created_at", DateParts: []string{"YEAR", "MONTH"}}},
			},
		},
	}
}

// normalize renders sql the way the formatter would, so expectations can be
// written in plain, unquoted SQL.
func normalize(t *testing.T, sql string) string {
	t.Helper()
	stmt, err := duckdbsql.Parse(sql)
	require.NoError(t, err, "parse %q", sql)
	return duckdbsql.Format(stmt)
}

func rewriteWith(t *testing.T, m *domain.Manifest, session domain.Session, sql string) (string, error) {
	t.Helper()
	stmt, err := duckdbsql.Parse(sql)
	require.NoError(t, err)
	a, err := Analyze(stmt, m, session)
	if err != nil {
		return "", err
	}
	out, err := ModelRewrite{}.Apply(stmt, session, a, m)
	if err != nil {
		return "", err
	}
	return duckdbsql.Format(out), nil
}

func mustRewrite(t *testing.T, m *domain.Manifest, sql string) string {
	t.Helper()
	got, err := rewriteWith(t, m, domain.Session{}, sql)
	require.NoError(t, err)
	require.Equal(t, got, normalize(t, got), "rewritten SQL does not round-trip")
	return got
}
