// Package sqlrewrite runs SQL text through a fixed sequence of rewrite rules.
//
// It parses the query with the DuckDB-dialect parser, rejects unknown metric
// rollups, analyses the query against a manifest once and hands the tree to
// each rule in turn. The model rule from package semantic is the one every
// caller registers; DenyFunctions guards queries that are executed.
package sqlrewrite

import (
	"strings"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
	"semlayer/internal/semantic"
)

// Rule is one rewrite step. Rules receive the tree produced by the previous
// rule together with the analysis of the original query.
type Rule interface {
	Name() string
	Apply(stmt *duckdbsql.SelectStmt, session domain.Session, a *semantic.Analysis, m *domain.Manifest) (*duckdbsql.SelectStmt, error)
}

// DefaultRules returns the rules used when a caller passes none.
func DefaultRules() []Rule {
	return []Rule{semantic.ModelRewrite{}}
}

// Result is a compiled query.
type Result struct {
	Input    *duckdbsql.SelectStmt
	Output   *duckdbsql.SelectStmt
	Analysis *semantic.Analysis
}

// SQL renders the rewritten statement.
func (r *Result) SQL() string {
	return duckdbsql.Format(r.Output)
}

// Compile parses sql and applies rules in order. With no rules the default
// rules apply.
func Compile(sql string, session domain.Session, m *domain.Manifest, rules ...Rule) (*Result, error) {
	if m == nil {
		return nil, domain.ErrValidation("no manifest loaded")
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	stmt, err := duckdbsql.Parse(sql)
	if err != nil {
		return nil, domain.ErrSyntax("parse SQL: %v", err)
	}
	if err := semantic.ValidateRollups(stmt, m); err != nil {
		return nil, err
	}
	a, err := semantic.Analyze(stmt, m, session)
	if err != nil {
		return nil, err
	}

	out := stmt
	for _, rule := range rules {
		if out, err = rule.Apply(out, session, a, m); err != nil {
			return nil, err
		}
	}
	return &Result{Input: stmt, Output: out, Analysis: a}, nil
}

// Rewrite compiles sql and renders the result. There is no partial output:
// any failing step fails the rewrite.
func Rewrite(sql string, session domain.Session, m *domain.Manifest, rules ...Rule) (string, error) {
	res, err := Compile(sql, session, m, rules...)
	if err != nil {
		return "", err
	}
	return res.SQL(), nil
}

// ExtractTableNames parses a SQL query and returns the deduplicated list
// of table names referenced anywhere in it, in first-seen order.
func ExtractTableNames(sql string) ([]string, error) {
	stmt, err := duckdbsql.Parse(sql)
	if err != nil {
		return nil, domain.ErrSyntax("parse SQL: %v", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, t := range duckdbsql.CollectTableNames(stmt) {
		if !seen[t.Name] {
			seen[t.Name] = true
			names = append(names, t.Name)
		}
	}
	return names, nil
}

// DenyFunctions rejects queries calling any of the listed functions. Names
// are matched case-insensitively. Register it ahead of the model rule so it
// only sees what the user wrote, not the manifest's base SQL.
type DenyFunctions map[string]bool

// Name identifies the rule in logs.
func (DenyFunctions) Name() string { return "deny_functions" }

// Apply fails with a ValidationError on the first prohibited call.
func (d DenyFunctions) Apply(stmt *duckdbsql.SelectStmt, _ domain.Session, _ *semantic.Analysis, _ *domain.Manifest) (*duckdbsql.SelectStmt, error) {
	var found string
	duckdbsql.Walk(stmt, func(n duckdbsql.Node) bool {
		if found != "" {
			return false
		}
		// table functions are walked as their FuncCall
		if f, ok := n.(*duckdbsql.FuncCall); ok && d[strings.ToLower(f.Name)] {
			found = f.Name
			return false
		}
		return true
	})
	if found != "" {
		return nil, domain.ErrValidation("prohibited function: %s", found)
	}
	return stmt, nil
}

// DangerousFunctions is the blocklist of DuckDB functions that can read the
// filesystem, leak internal metadata, or escape the query sandbox.
func DangerousFunctions() DenyFunctions {
	return DenyFunctions{
		"read_csv":             true,
		"read_csv_auto":        true,
		"read_parquet":         true,
		"read_json":            true,
		"read_json_auto":       true,
		"read_text":            true,
		"read_blob":            true,
		"glob":                 true,
		"sqlite_scan":          true,
		"query_table":          true,
		"duckdb_extensions":    true,
		"duckdb_settings":      true,
		"duckdb_databases":     true,
		"duckdb_secrets":       true,
		"pragma_database_list": true,
	}
}
