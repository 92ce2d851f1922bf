package duckdbsql

// TableName represents a table reference: [catalog.][schema.]name [AS alias].
type TableName struct {
	isTableRef

	Catalog string
	Schema  string
	Name    string
	Alias   string
}

// RefName returns the name the table is referenced by in expressions:
// the alias when present, otherwise the bare table name.
func (t *TableName) RefName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// DerivedTable represents a subquery in FROM: (SELECT ...) AS alias.
type DerivedTable struct {
	isTableRef

	Select *SelectStmt
	Alias  string
}

// LateralTable represents a LATERAL subquery.
type LateralTable struct {
	isTableRef

	Select *SelectStmt
	Alias  string
}

// FuncTable represents a table-valued function: range(10), roll_up(...).
type FuncTable struct {
	isTableRef

	Func  *FuncCall
	Alias string
}

// JoinedTable represents a parenthesized join tree used as a single table
// reference: (a LEFT JOIN b ON ...).
type JoinedTable struct {
	isTableRef

	Source TableRef
	Joins  []*Join
}

