package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"semlayer/internal/middleware"
)

// RouterOptions configure NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// RateLimit disables rate limiting when RequestsPerSecond is zero.
	RateLimit middleware.RateLimitConfig
	Logger    *slog.Logger
}

// NewRouter mounts h under /v1 behind the standard middleware stack.
func NewRouter(h *APIHandler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		if opts.RateLimit.RequestsPerSecond > 0 {
			r.Use(middleware.RateLimiter(opts.RateLimit))
		}
		h.Routes(r)
	})
	return r
}
