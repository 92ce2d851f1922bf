package semantic

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
)

// RootKeyColumn is exposed by every relationship fragment and carries the
// primary key of the row the traversal started from.
const RootKeyColumn = "__root_key"

// Hop is one relationship step of a traversal.
type Hop struct {
	Column       string
	Relationship *domain.Relationship
	From         *domain.Model
	To           *domain.Model
}

// Traversal is a resolved relationship path such as people.wishlist.bookId.
// Column is the column read from the model reached by the last hop; a path
// that ends on a relationship column reads that model's primary key.
type Traversal struct {
	Root   *domain.Model
	Hops   []Hop
	Column string
}

// Path returns the root model name followed by the first n relationship
// column names. A negative n selects every hop.
func (t *Traversal) Path(n int) []string {
	if n < 0 || n > len(t.Hops) {
		n = len(t.Hops)
	}
	path := make([]string, 0, n+1)
	path = append(path, t.Root.Name)
	for _, h := range t.Hops[:n] {
		path = append(path, h.Column)
	}
	return path
}

// resolveTraversal follows parts through relationship columns starting at
// root. It returns nil when parts[0] is not a relationship column of root.
func resolveTraversal(m *domain.Manifest, root *domain.Model, parts []string) (*Traversal, error) {
	tr := &Traversal{Root: root}
	cur := root
	for i, part := range parts {
		last := i == len(parts)-1
		col, ok := cur.Column(part)
		if !ok || col.Kind() != domain.ColumnRelationship {
			switch {
			case len(tr.Hops) == 0:
				return nil, nil
			case !last:
				return nil, domain.ErrUnknownRelationship("%q is not a relationship of model %q", part, cur.Name)
			case !ok:
				return nil, domain.ErrUnknownRelationship("traversal %s ends at column %q, which model %q does not declare",
					strings.Join(parts, "."), part, cur.Name)
			}
			tr.Column = part
			return tr, nil
		}

		rel, ok := m.Relationship(col.Relationship)
		if !ok {
			return nil, domain.ErrUnknownRelationship("column %s.%s references unknown relationship %q", cur.Name, col.Name, col.Relationship)
		}
		target, ok := m.Model(col.Type)
		if !ok {
			return nil, domain.ErrUnknownModel("column %s.%s references unknown model %q", cur.Name, col.Name, col.Type)
		}
		tr.Hops = append(tr.Hops, Hop{Column: part, Relationship: rel, From: cur, To: target})
		cur = target
	}
	tr.Column = cur.PrimaryKey
	return tr, nil
}

// RelationshipCTEName returns the stable name of the fragment materialising
// a traversal path. The hash suffix keeps names distinct when joined path
// components collide.
func RelationshipCTEName(path []string) string {
	h := xxhash.Sum64String(strings.Join(path, "\x00"))
	return fmt.Sprintf("rs_%s_%08x", strings.Join(path, "_"), uint32(h))
}

// RelationshipCTE is a generated WITH entry for one traversal hop. It
// exposes RootKeyColumn plus every column of the target model.
type RelationshipCTE struct {
	Name      string
	Path      []string
	BaseModel string
	RootKey   string
	Target    string
	Query     *duckdbsql.SelectStmt
}

// JoinCondition joins the CTE, exposed as alias, onto relation, which is the
// name or alias under which the base model appears in the query.
func (c *RelationshipCTE) JoinCondition(relation, alias string) duckdbsql.Expr {
	return &duckdbsql.BinaryExpr{
		Left:  duckdbsql.NewColumnRef(relation, c.RootKey),
		Op:    duckdbsql.TOKEN_EQ,
		Right: duckdbsql.NewColumnRef(alias, RootKeyColumn),
	}
}

// cteGenerator builds relationship CTEs on top of injected model
// definitions. Names are memoized by path so repeated traversals share one
// CTE, and every path prefix is generated before the path itself.
type cteGenerator struct {
	byPath  map[string]*RelationshipCTE
	ordered []*RelationshipCTE
}

func newCTEGenerator() *cteGenerator {
	return &cteGenerator{byPath: make(map[string]*RelationshipCTE)}
}

// cteFor returns the CTE for the full traversal path.
func (g *cteGenerator) cteFor(tr *Traversal) (*RelationshipCTE, error) {
	var prev *RelationshipCTE
	for i, hop := range tr.Hops {
		path := tr.Path(i + 1)
		key := strings.Join(path, "\x00")
		if c, ok := g.byPath[key]; ok {
			prev = c
			continue
		}

		var (
			fromAlias string
			rootKey   duckdbsql.Expr
		)
		if prev == nil {
			fromAlias = tr.Root.Name
			rootKey = duckdbsql.NewColumnRef(fromAlias, tr.Root.PrimaryKey)
		} else {
			fromAlias = prev.Name
			rootKey = duckdbsql.NewColumnRef(fromAlias, RootKeyColumn)
		}
		used := map[string]bool{fromAlias: true}
		join, toAlias, err := hopJoin(hop, fromAlias, used)
		if err != nil {
			return nil, err
		}

		c := &RelationshipCTE{
			Name:      RelationshipCTEName(path),
			Path:      path,
			BaseModel: tr.Root.Name,
			RootKey:   tr.Root.PrimaryKey,
			Target:    hop.To.Name,
			Query: selectStmt(
				[]duckdbsql.SelectItem{{Expr: rootKey, Alias: RootKeyColumn}, {TableStar: toAlias}},
				&duckdbsql.FromClause{Source: &duckdbsql.TableName{Name: fromAlias}, Joins: []*duckdbsql.Join{join}},
			),
		}
		g.byPath[key] = c
		g.ordered = append(g.ordered, c)
		prev = c
	}
	return prev, nil
}

// hopJoin left-joins the hop's target model onto the relation aliased
// fromAlias. The target gets an alias unique within used.
func hopJoin(hop Hop, fromAlias string, used map[string]bool) (*duckdbsql.Join, string, error) {
	toAlias := uniqueAlias(used, hop.To.Name)
	cond, err := bindCondition(hop.Relationship, hop.From.Name, fromAlias, hop.To.Name, toAlias)
	if err != nil {
		return nil, "", err
	}
	target := &duckdbsql.TableName{Name: hop.To.Name}
	if toAlias != hop.To.Name {
		target.Alias = toAlias
	}
	return &duckdbsql.Join{Type: duckdbsql.JoinLeft, Right: target, Condition: cond}, toAlias, nil
}

// bindCondition parses a relationship condition and points its model-name
// qualifiers at the aliases used on each side of the join. For a
// relationship between a model and itself the first reference binds to the
// source side and the second to the target.
func bindCondition(rel *domain.Relationship, fromModel, fromAlias, toModel, toAlias string) (duckdbsql.Expr, error) {
	cond, err := duckdbsql.ParseExpr(rel.Condition)
	if err != nil {
		return nil, domain.ErrInvalidModelDefinition(rel.Name, "condition: %v", err)
	}
	if err := checkSelfCondition(rel, cond); err != nil {
		return nil, err
	}
	self := fromModel == toModel
	seenFrom := false
	return duckdbsql.RewriteExpr(cond, func(_, node duckdbsql.Node) (duckdbsql.Node, error) {
		ref, ok := node.(*duckdbsql.ColumnRef)
		if !ok || len(ref.Parts) < 2 {
			return node, nil
		}
		switch {
		case self && ref.Parts[0] == fromModel:
			if seenFrom {
				ref.Parts[0] = toAlias
			} else {
				ref.Parts[0] = fromAlias
				seenFrom = true
			}
		case ref.Parts[0] == fromModel:
			ref.Parts[0] = fromAlias
		case ref.Parts[0] == toModel:
			ref.Parts[0] = toAlias
		}
		return ref, nil
	})
}

// checkSelfCondition requires the condition of a self relationship to
// qualify exactly two column references with the model name. The first is
// the source side, so "Emp.manager_id = Emp.id" follows manager_id to id.
func checkSelfCondition(rel *domain.Relationship, cond duckdbsql.Expr) error {
	if len(rel.Models) != 2 || rel.Models[0] != rel.Models[1] {
		return nil
	}
	model := rel.Models[0]
	refs := 0
	duckdbsql.Walk(cond, func(node duckdbsql.Node) bool {
		if ref, ok := node.(*duckdbsql.ColumnRef); ok && len(ref.Parts) >= 2 && ref.Parts[0] == model {
			refs++
		}
		return true
	})
	if refs != 2 {
		return domain.ErrInvalidModelDefinition(rel.Name,
			"self relationship condition must reference %s exactly twice, source side first, found %d", model, refs)
	}
	return nil
}

func uniqueAlias(used map[string]bool, name string) string {
	alias := name
	for n := 1; used[alias]; n++ {
		alias = fmt.Sprintf("%s_%d", name, n)
	}
	used[alias] = true
	return alias
}

func selectStmt(items []duckdbsql.SelectItem, from *duckdbsql.FromClause) *duckdbsql.SelectStmt {
	return &duckdbsql.SelectStmt{
		Body: &duckdbsql.SelectBody{
			Left: &duckdbsql.SelectCore{Columns: items, From: from},
		},
	}
}

func cloneExpr(e duckdbsql.Expr) (duckdbsql.Expr, error) {
	return duckdbsql.RewriteExpr(e, func(_, node duckdbsql.Node) (duckdbsql.Node, error) {
		return node, nil
	})
}
