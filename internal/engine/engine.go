// Package engine executes rewritten SQL against DuckDB.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DefaultMaxRows caps result sets when no limit is configured.
const DefaultMaxRows = 1000

// Result is a fully materialised query result.
type Result struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Engine runs SQL on a DuckDB database.
type Engine struct {
	db      *sql.DB
	maxRows int
	logger  *slog.Logger
}

// Open opens the DuckDB database at path; an empty path is in-memory.
func Open(path string, maxRows int, logger *slog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return New(db, maxRows, logger), nil
}

// New wraps an existing DuckDB pool.
func New(db *sql.DB, maxRows int, logger *slog.Logger) *Engine {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{db: db, maxRows: maxRows, logger: logger}
}

// MaxRows returns the configured row cap.
func (e *Engine) MaxRows() int { return e.maxRows }

// Query runs query and reads at most MaxRows rows.
func (e *Engine) Query(ctx context.Context, query string) (*Result, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	res := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(res.Rows) == e.maxRows {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	e.logger.Debug("query executed", "columns", len(cols), "rows", len(res.Rows), "truncated", res.Truncated)
	return res, nil
}

// Exec runs a statement that returns no rows, such as DDL used to seed
// base tables.
func (e *Engine) Exec(ctx context.Context, stmt string) error {
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (e *Engine) Close() error {
	return e.db.Close()
}
