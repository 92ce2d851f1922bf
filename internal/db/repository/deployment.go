package repository

import (
	"context"
	"database/sql"
	"time"

	"semlayer/internal/db/dbstore"
	"semlayer/internal/db/mapper"
	"semlayer/internal/domain"
)

// Compile-time check.
var _ domain.DeploymentRepository = (*ManifestRepo)(nil)

// ManifestRepo stores manifest deployments in SQLite.
type ManifestRepo struct {
	q   *dbstore.Queries
	now func() time.Time
}

// NewManifestRepo creates a new ManifestRepo.
func NewManifestRepo(db *sql.DB) *ManifestRepo {
	return &ManifestRepo{q: dbstore.New(db), now: time.Now}
}

// Create inserts a deployment. ID and CreatedAt are assigned here; a
// missing status defaults to PREPARING.
func (r *ManifestRepo) Create(ctx context.Context, d *domain.Deployment) (*domain.Deployment, error) {
	status := d.Status
	if status == "" {
		status = domain.DeploymentPreparing
	}
	row, err := r.q.CreateDeployment(ctx, dbstore.CreateDeploymentParams{
		ID:          newID(),
		Fingerprint: d.Fingerprint,
		Status:      string(status),
		Error:       d.Error,
		Manifest:    d.Manifest,
		CreatedAt:   mapper.FormatTime(r.now()),
	})
	if err != nil {
		return nil, mapDBError(err)
	}
	return mapper.DeploymentFromDB(row), nil
}

// UpdateStatus moves a deployment to status, recording errMsg.
func (r *ManifestRepo) UpdateStatus(ctx context.Context, id string, status domain.DeploymentStatus, errMsg string) error {
	n, err := r.q.UpdateDeploymentStatus(ctx, dbstore.UpdateDeploymentStatusParams{
		Status:    string(status),
		Error:     errMsg,
		UpdatedAt: mapper.FormatTime(r.now()),
		ID:        id,
	})
	if err != nil {
		return mapDBError(err)
	}
	if n == 0 {
		return domain.ErrNotFound("deployment %q not found", id)
	}
	return nil
}

// GetByID returns a deployment by ID.
func (r *ManifestRepo) GetByID(ctx context.Context, id string) (*domain.Deployment, error) {
	row, err := r.q.GetDeploymentByID(ctx, id)
	if err != nil {
		return nil, mapDBError(err)
	}
	return mapper.DeploymentFromDB(row), nil
}

// Latest returns the newest deployment with status, or the newest of any
// status when status is empty.
func (r *ManifestRepo) Latest(ctx context.Context, status domain.DeploymentStatus) (*domain.Deployment, error) {
	row, err := r.q.GetLatestDeployment(ctx, string(status))
	if err != nil {
		return nil, mapDBError(err)
	}
	return mapper.DeploymentFromDB(row), nil
}

// List returns up to limit deployments, newest first. A non-positive limit
// defaults to 50.
func (r *ManifestRepo) List(ctx context.Context, limit int) ([]domain.Deployment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.ListDeployments(ctx, int64(limit))
	if err != nil {
		return nil, mapDBError(err)
	}
	return mapper.DeploymentsFromDB(rows), nil
}
