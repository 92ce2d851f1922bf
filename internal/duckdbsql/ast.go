package duckdbsql

// Node is implemented by every AST node.
type Node interface {
	node()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// TableRef is an item of a FROM clause.
type TableRef interface {
	Node
	tableRef()
}

// isExpr and isTableRef are embedded to make a struct an Expr or a TableRef.
type (
	isExpr     struct{}
	isTableRef struct{}
)

func (isExpr) node()         {}
func (isExpr) expr()         {}
func (isTableRef) node()     {}
func (isTableRef) tableRef() {}
