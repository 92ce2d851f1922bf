package duckdbsql

// ColumnRef represents a dotted column reference: col, t.col, or a longer
// path such as people.wishlist.bookId. Parts holds every component in order;
// the last one is the column name.
type ColumnRef struct {
	isExpr

	Parts []string
}

// NewColumnRef builds a ColumnRef from its dotted components.
func NewColumnRef(parts ...string) *ColumnRef {
	return &ColumnRef{Parts: append([]string(nil), parts...)}
}

// Column returns the last component of the reference.
func (c *ColumnRef) Column() string {
	if len(c.Parts) == 0 {
		return ""
	}
	return c.Parts[len(c.Parts)-1]
}

// Qualifier returns every component except the last one.
func (c *ColumnRef) Qualifier() []string {
	if len(c.Parts) <= 1 {
		return nil
	}
	return c.Parts[:len(c.Parts)-1]
}

// Literal represents a literal value (number, string, bool, null).
type Literal struct {
	isExpr

	Type  LiteralType
	Value string
}

// LiteralType represents the type of a literal.
type LiteralType int

// LiteralNumber and friends enumerate literal kinds.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// BinaryExpr represents a binary expression (left op right).
type BinaryExpr struct {
	isExpr

	Left  Expr
	Op    TokenType
	Right Expr
}

// UnaryExpr represents a unary expression (NOT x, -x, +x).
type UnaryExpr struct {
	isExpr

	Op   TokenType
	Expr Expr
}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	isExpr

	Expr Expr
}

// FuncCall represents a function call.
type FuncCall struct {
	isExpr

	Schema   string        // optional schema qualifier
	Name     string        // function name (stored in original case)
	Distinct bool          // COUNT(DISTINCT ...)
	Args     []Expr        // arguments
	Star     bool          // COUNT(*)
	OrderBy  []OrderByItem // array_agg(x ORDER BY y)
	Filter   Expr          // FILTER (WHERE ...) clause
	Window   *WindowSpec   // OVER clause
}

// WindowSpec represents a window specification (OVER clause).
type WindowSpec struct {
	Name        string // named window reference
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameSpec represents a window frame specification.
type FrameSpec struct {
	Type  FrameType
	Start *FrameBound
	End   *FrameBound
}

// FrameType represents the type of window frame.
type FrameType string

// FrameRows and friends enumerate window frame units.
const (
	FrameRows   FrameType = "ROWS"
	FrameRange  FrameType = "RANGE"
	FrameGroups FrameType = "GROUPS"
)

// FrameBound represents a window frame boundary.
type FrameBound struct {
	Type   FrameBoundType
	Offset Expr
}

// FrameBoundType represents the type of frame boundary.
type FrameBoundType string

// FrameUnboundedPreceding and friends enumerate frame boundary kinds.
const (
	FrameUnboundedPreceding FrameBoundType = "UNBOUNDED PRECEDING"
	FrameUnboundedFollowing FrameBoundType = "UNBOUNDED FOLLOWING"
	FrameCurrentRow         FrameBoundType = "CURRENT ROW"
	FrameExprPreceding      FrameBoundType = "PRECEDING"
	FrameExprFollowing      FrameBoundType = "FOLLOWING"
)

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	isExpr

	Operand Expr // optional: CASE operand WHEN ...
	Whens   []WhenClause
	Else    Expr
}

// WhenClause represents a WHEN clause in CASE.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(expr AS type) or TRY_CAST(expr AS type).
type CastExpr struct {
	isExpr

	Expr     Expr
	TypeName string
	TryCast  bool
}

// TypeCastExpr represents DuckDB's :: cast syntax (expr::type).
type TypeCastExpr struct {
	isExpr

	Expr     Expr
	TypeName string
}

// InExpr represents an IN expression.
type InExpr struct {
	isExpr

	Expr   Expr
	Not    bool
	Values []Expr      // for IN (1, 2, 3)
	Query  *SelectStmt // for IN (SELECT ...)
}

// BetweenExpr represents a BETWEEN expression.
type BetweenExpr struct {
	isExpr

	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

// IsNullExpr represents IS [NOT] NULL.
type IsNullExpr struct {
	isExpr

	Expr Expr
	Not  bool
}

// IsBoolExpr represents IS [NOT] TRUE/FALSE.
type IsBoolExpr struct {
	isExpr

	Expr  Expr
	Not   bool
	Value bool
}

// LikeExpr represents a LIKE or ILIKE expression.
type LikeExpr struct {
	isExpr

	Expr    Expr
	Not     bool
	Pattern Expr
	ILike   bool
}

// ExistsExpr represents an EXISTS subquery.
type ExistsExpr struct {
	isExpr

	Not    bool
	Select *SelectStmt
}

// SubqueryExpr represents a scalar subquery.
type SubqueryExpr struct {
	isExpr

	Select *SelectStmt
}

// StarExpr represents * or t.* in expressions, with optional modifiers.
type StarExpr struct {
	isExpr

	Table     string
	Modifiers []StarModifier
}

// IntervalExpr represents INTERVAL 'value' [unit].
type IntervalExpr struct {
	isExpr

	Value Expr
	Unit  string
}

// ExtractExpr represents EXTRACT(field FROM expr).
type ExtractExpr struct {
	isExpr

	Field string
	Expr  Expr
}

// ListLiteral represents DuckDB's list literal: [1, 2, 3].
type ListLiteral struct {
	isExpr

	Elements []Expr
}

// IndexExpr represents array indexing or slicing: arr[1] or arr[1:3].
type IndexExpr struct {
	isExpr

	Expr    Expr
	Index   Expr // for arr[i]
	Start   Expr // for arr[start:stop]
	Stop    Expr
	IsSlice bool
}

// StarModifier is the interface for * modifiers (EXCLUDE, REPLACE).
type StarModifier interface {
	starModifier()
}

// ExcludeModifier represents * EXCLUDE (col1, col2).
type ExcludeModifier struct {
	Columns []string
}

func (*ExcludeModifier) starModifier() {}

// ReplaceModifier represents * REPLACE (expr AS col, ...).
type ReplaceModifier struct {
	Items []ReplaceItem
}

func (*ReplaceModifier) starModifier() {}

// ReplaceItem represents a single replacement in REPLACE.
type ReplaceItem struct {
	Expr  Expr
	Alias string
}
