package duckdbsql

// SelectStmt represents a complete SELECT statement: [WITH ...] SELECT ...
type SelectStmt struct {
	With *WithClause
	Body *SelectBody
}

func (*SelectStmt) node() {}
func (*SelectStmt) stmt() {}

// WithClause represents a WITH clause containing CTEs.
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
}

// CTE represents a Common Table Expression.
type CTE struct {
	Name    string
	Columns []string // optional column list: name(a, b) AS (...)
	Select  *SelectStmt
}

// SetOpType represents the type of set operation.
type SetOpType string

// SetOpNone and friends enumerate set operations between SELECT cores.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpUnionAll  SetOpType = "UNION ALL"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SelectBody represents the body of a SELECT with optional set operations.
type SelectBody struct {
	Left   *SelectCore
	Op     SetOpType
	All    bool
	ByName bool // DuckDB: UNION BY NAME
	Right  *SelectBody
}

// SelectCore represents a single SELECT clause.
type SelectCore struct {
	Distinct   bool
	Columns    []SelectItem
	From       *FromClause
	Where      Expr
	GroupBy    []Expr
	GroupByAll bool // DuckDB: GROUP BY ALL
	Having     Expr
	Windows    []WindowDef
	Qualify    Expr // DuckDB: QUALIFY

	OrderBy        []OrderByItem
	OrderByAll     bool // DuckDB: ORDER BY ALL
	OrderByAllDesc bool
	Limit          Expr
	Offset         Expr
}

// WindowDef represents a named window definition.
type WindowDef struct {
	Name string
	Spec *WindowSpec
}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool   // SELECT *
	TableStar string // SELECT t.*
	Expr      Expr
	Alias     string
	Modifiers []StarModifier // EXCLUDE, REPLACE
}

// FromClause represents the FROM clause.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// Join represents a JOIN clause.
type Join struct {
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr
	Using     []string
}

// JoinType represents the type of join.
type JoinType string

// JoinInner and friends enumerate join types including DuckDB extensions.
const (
	JoinInner      JoinType = "INNER"
	JoinLeft       JoinType = "LEFT"
	JoinRight      JoinType = "RIGHT"
	JoinFull       JoinType = "FULL"
	JoinCross      JoinType = "CROSS"
	JoinComma      JoinType = ","
	JoinLeftSemi   JoinType = "LEFT SEMI"
	JoinLeftAnti   JoinType = "LEFT ANTI"
	JoinSemi       JoinType = "SEMI"
	JoinAnti       JoinType = "ANTI"
	JoinPositional JoinType = "POSITIONAL"
)

// OrderByItem represents an item in ORDER BY.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool // nil = default, true = NULLS FIRST, false = NULLS LAST
}
