// Package query rewrites semantic-layer SQL against the active manifest,
// translates it and optionally executes it.
package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"semlayer/internal/domain"
	"semlayer/internal/engine"
	"semlayer/internal/service/manifest"
	"semlayer/internal/sqlrewrite"
	"semlayer/internal/translate"
)

// Executor runs rewritten SQL.
type Executor interface {
	Query(ctx context.Context, sql string) (*engine.Result, error)
}

// Request is a query against the semantic layer. Catalog and Schema
// override the configured session defaults.
type Request struct {
	SQL     string `json:"sql"`
	Catalog string `json:"catalog,omitempty"`
	Schema  string `json:"schema,omitempty"`
}

// RewriteResult is the output of Rewrite.
type RewriteResult struct {
	SQL         string   `json:"sql"`
	Dialect     string   `json:"dialect,omitempty"`
	Models      []string `json:"models,omitempty"`
	Fingerprint string   `json:"fingerprint"`
}

// QueryResult is the output of Execute.
type QueryResult struct {
	SQL       string   `json:"sql"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"rowCount"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Options configure a Service.
type Options struct {
	Defaults      domain.Session
	Translator    translate.Translator
	SourceDialect string
	TargetDialect string
	Executor      Executor
	// Deny, when set, is applied to executed queries ahead of the model rule.
	Deny   sqlrewrite.DenyFunctions
	Logger *slog.Logger
}

// Service compiles queries against the manifest held by a manifest.Service.
type Service struct {
	manifests *manifest.Service
	opts      Options
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(manifests *manifest.Service, opts Options) *Service {
	if opts.Translator == nil {
		opts.Translator = translate.Identity{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{manifests: manifests, opts: opts, logger: logger}
}

// Session resolves the name-resolution defaults for req: request values
// first, then configured defaults, then the manifest's own catalog and schema.
func (s *Service) Session(req Request, m *domain.Manifest) domain.Session {
	return domain.Session{
		Catalog: firstNonEmpty(req.Catalog, s.opts.Defaults.Catalog, m.Catalog),
		Schema:  firstNonEmpty(req.Schema, s.opts.Defaults.Schema, m.Schema),
	}
}

func (s *Service) compile(req Request, rules ...sqlrewrite.Rule) (*sqlrewrite.Result, *manifest.Compiled, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return nil, nil, domain.ErrValidation("sql is required")
	}
	cur, ok := s.manifests.Current()
	if !ok {
		return nil, nil, domain.ErrValidation("no manifest deployed")
	}
	res, err := sqlrewrite.Compile(req.SQL, s.Session(req, cur.Manifest), cur.Manifest, rules...)
	if err != nil {
		return nil, nil, err
	}
	return res, cur, nil
}

// Rewrite compiles req.SQL and translates it into the target dialect.
func (s *Service) Rewrite(ctx context.Context, req Request) (*RewriteResult, error) {
	start := time.Now()
	res, cur, err := s.compile(req)
	if err != nil {
		s.logger.Debug("rewrite failed", "error", err)
		return nil, err
	}

	out, err := s.opts.Translator.Translate(ctx, res.SQL(), s.opts.SourceDialect, s.opts.TargetDialect)
	if err != nil {
		return nil, err
	}

	models := make([]string, 0, len(res.Analysis.Models()))
	for _, d := range res.Analysis.Models() {
		models = append(models, d.Model.Name)
	}
	s.logger.Info("query rewritten",
		"fingerprint", cur.Fingerprint,
		"models", len(models),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &RewriteResult{
		SQL:         out,
		Dialect:     firstNonEmpty(s.opts.TargetDialect, s.opts.SourceDialect),
		Models:      models,
		Fingerprint: cur.Fingerprint,
	}, nil
}

// Execute compiles req.SQL and runs it on the configured executor. Queries
// calling any denied function are rejected before they reach the engine.
func (s *Service) Execute(ctx context.Context, req Request) (*QueryResult, error) {
	if s.opts.Executor == nil {
		return nil, domain.ErrValidation("query execution is not configured")
	}

	rules := sqlrewrite.DefaultRules()
	if len(s.opts.Deny) > 0 {
		rules = append([]sqlrewrite.Rule{s.opts.Deny}, rules...)
	}
	res, cur, err := s.compile(req, rules...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sql := res.SQL()
	out, err := s.opts.Executor.Query(ctx, sql)
	if err != nil {
		s.logger.Warn("query execution failed", "fingerprint", cur.Fingerprint, "error", err)
		return nil, err
	}
	s.logger.Info("query executed",
		"fingerprint", cur.Fingerprint,
		"rows", len(out.Rows),
		"truncated", out.Truncated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &QueryResult{
		SQL:       sql,
		Columns:   out.Columns,
		Rows:      out.Rows,
		RowCount:  len(out.Rows),
		Truncated: out.Truncated,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
