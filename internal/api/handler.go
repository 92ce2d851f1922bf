// Package api serves the semantic layer over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"semlayer/internal/domain"
	"semlayer/internal/service/manifest"
	"semlayer/internal/service/query"
)

// maxBodyBytes caps request bodies, manifests included.
const maxBodyBytes = 8 << 20

// APIHandler implements the /v1 endpoints.
type APIHandler struct {
	query     *query.Service
	manifests *manifest.Service
	logger    *slog.Logger
}

// NewHandler creates a new APIHandler.
func NewHandler(q *query.Service, m *manifest.Service, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &APIHandler{query: q, manifests: m, logger: logger}
}

// Routes registers the handler's endpoints on r.
func (h *APIHandler) Routes(r chi.Router) {
	r.Post("/rewrite", h.Rewrite)
	r.Post("/query", h.Query)
	r.Post("/explain", h.Explain)
	r.Post("/deploy", h.Deploy)
	r.Get("/status", h.Status)
	r.Get("/deployments", h.Deployments)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatusFromDomainError(err)
	kind := domain.Kind(err)
	msg := err.Error()
	if kind == "Internal" {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, code, ErrorResponse{Code: code, Kind: kind, Message: msg})
}

// readBody reads at most maxBodyBytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrValidation("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, domain.ErrValidation("read request body: %v", err)
	}
	return data, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}
