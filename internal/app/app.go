// Package app wires the semantic layer's stores, services and HTTP handler
// from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"semlayer/internal/api"
	"semlayer/internal/config"
	"semlayer/internal/db/repository"
	"semlayer/internal/domain"
	"semlayer/internal/engine"
	"semlayer/internal/middleware"
	"semlayer/internal/service/manifest"
	"semlayer/internal/service/query"
	"semlayer/internal/source"
	"semlayer/internal/sqlrewrite"
	"semlayer/internal/translate"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg *config.Config
	// MetaDB is the migrated deployment store.
	MetaDB *sql.DB
	Logger *slog.Logger
}

// Services groups the services the API handler needs.
type Services struct {
	Manifest *manifest.Service
	Query    *query.Service
}

// App holds the fully-wired application.
type App struct {
	Services Services
	Engine   *engine.Engine
	// Syncer is nil when no manifest source is configured.
	Syncer  *manifest.Syncer
	Handler *api.APIHandler

	cfg    *config.Config
	logger *slog.Logger
}

// New wires repositories, services and the query engine, then activates a
// manifest: the last READY deployment first, then the configured source.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var repo domain.DeploymentRepository
	if deps.MetaDB != nil {
		repo = repository.NewManifestRepo(deps.MetaDB)
	}
	manifestSvc := manifest.NewService(repo, logger.With("component", "manifest"))

	var syncer *manifest.Syncer
	if cfg.ManifestSource != "" {
		src, err := source.New(ctx, cfg.ManifestSource, cfg)
		if err != nil {
			return nil, fmt.Errorf("manifest source: %w", err)
		}
		syncer = manifest.NewSyncer(manifestSvc, src, logger.With("component", "syncer"))
	}

	eng, err := engine.Open(cfg.DuckDBPath, cfg.QueryMaxRows, logger.With("component", "engine"))
	if err != nil {
		return nil, err
	}
	secrets, err := eng.ConfigureStorage(ctx, cfg)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	if len(secrets) > 0 {
		logger.Info("engine storage secrets configured", "secrets", secrets)
	}

	var deny sqlrewrite.DenyFunctions
	if cfg.DenyFunctions {
		deny = sqlrewrite.DangerousFunctions()
	}
	querySvc := query.NewService(manifestSvc, query.Options{
		Defaults:      domain.Session{Catalog: cfg.DefaultCatalog, Schema: cfg.DefaultSchema},
		Translator:    translate.New(cfg.TranslatorURL),
		SourceDialect: cfg.SourceDialect,
		TargetDialect: cfg.TargetDialect,
		Executor:      eng,
		Deny:          deny,
		Logger:        logger.With("component", "query"),
	})

	a := &App{
		Services: Services{Manifest: manifestSvc, Query: querySvc},
		Engine:   eng,
		Syncer:   syncer,
		Handler:  api.NewHandler(querySvc, manifestSvc, logger.With("component", "api")),
		cfg:      cfg,
		logger:   logger,
	}
	a.activateManifest(ctx)
	return a, nil
}

// Router returns the HTTP handler configured from the app's settings.
func (a *App) Router() http.Handler {
	return api.NewRouter(a.Handler, api.RouterOptions{
		AllowedOrigins: a.cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimitRPS,
			Burst:             a.cfg.RateLimitBurst,
		},
		Logger: a.logger.With("component", "http"),
	})
}

// StartSync schedules manifest resyncs when both a source and a schedule
// are configured.
func (a *App) StartSync() error {
	if a.Syncer == nil || a.cfg.ManifestSyncSchedule == "" {
		return nil
	}
	return a.Syncer.Start(a.cfg.ManifestSyncSchedule)
}

// Close stops the syncer and releases the engine.
func (a *App) Close() error {
	if a.Syncer != nil && a.cfg.ManifestSyncSchedule != "" {
		a.Syncer.Stop()
	}
	var errs []error
	if a.Engine != nil {
		errs = append(errs, a.Engine.Close())
	}
	return errors.Join(errs...)
}
