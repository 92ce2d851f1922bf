package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"semlayer/internal/declarative"
	"semlayer/internal/domain"
)

// Deployment is the API view of a stored manifest deployment.
type Deployment struct {
	ID          string                  `json:"id"`
	Fingerprint string                  `json:"fingerprint"`
	Status      domain.DeploymentStatus `json:"status"`
	Error       string                  `json:"error,omitempty"`
	CreatedAt   *time.Time              `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time              `json:"updatedAt,omitempty"`
}

// DeployResponse is the body of a successful POST /v1/deploy.
type DeployResponse struct {
	Deployment Deployment      `json:"deployment"`
	Changed    bool            `json:"changed"`
	Plan       json.RawMessage `json:"plan"`
}

func deploymentToAPI(d *domain.Deployment) Deployment {
	out := Deployment{
		ID:          d.ID,
		Fingerprint: d.Fingerprint,
		Status:      d.Status,
		Error:       d.Error,
	}
	if !d.CreatedAt.IsZero() {
		t := d.CreatedAt
		out.CreatedAt = &t
	}
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// Deploy handles POST /v1/deploy. The body is a manifest in JSON or YAML.
func (h *APIHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	m, err := declarative.ParseManifest(body, declarative.LoadOptions{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.manifests.Deploy(r.Context(), m)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	plan := res.Plan
	if plan == nil {
		plan = &declarative.Plan{}
	}
	var buf bytes.Buffer
	if err := declarative.FormatJSON(&buf, plan); err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Changed {
		status = http.StatusCreated
	}
	writeJSON(w, status, DeployResponse{
		Deployment: deploymentToAPI(res.Deployment),
		Changed:    res.Changed,
		Plan:       json.RawMessage(bytes.TrimSpace(buf.Bytes())),
	})
}

// Status handles GET /v1/status.
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.manifests.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Deployments handles GET /v1/deployments.
func (h *APIHandler) Deployments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, r, domain.ErrValidation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	list, err := h.manifests.History(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]Deployment, 0, len(list))
	for i := range list {
		out = append(out, deploymentToAPI(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"deployments": out})
}
