package api

import (
	"net/http"

	"semlayer/internal/service/query"
)

// Rewrite handles POST /v1/rewrite.
func (h *APIHandler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.query.Rewrite(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Query handles POST /v1/query.
func (h *APIHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.query.Execute(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Rows == nil {
		res.Rows = [][]any{}
	}
	writeJSON(w, http.StatusOK, res)
}

// Explain handles POST /v1/explain.
func (h *APIHandler) Explain(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.query.Explain(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
