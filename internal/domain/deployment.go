package domain

import (
	"context"
	"time"
)

// DeploymentStatus is the lifecycle state of a deployed manifest.
type DeploymentStatus string

const (
	DeploymentPreparing DeploymentStatus = "PREPARING"
	DeploymentReady     DeploymentStatus = "READY"
	DeploymentFailed    DeploymentStatus = "FAILED"
)

// Deployment is one stored manifest version.
type Deployment struct {
	ID          string
	Fingerprint string
	Status      DeploymentStatus
	Error       string
	Manifest    []byte // canonical JSON encoding
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeploymentRepository persists manifest deployments.
type DeploymentRepository interface {
	Create(ctx context.Context, d *Deployment) (*Deployment, error)
	UpdateStatus(ctx context.Context, id string, status DeploymentStatus, errMsg string) error
	GetByID(ctx context.Context, id string) (*Deployment, error)
	// Latest returns the most recently created deployment with the given
	// status, or the most recent of any status when status is empty.
	Latest(ctx context.Context, status DeploymentStatus) (*Deployment, error)
	List(ctx context.Context, limit int) ([]Deployment, error)
}
