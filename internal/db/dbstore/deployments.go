package dbstore

import "context"

// Deployment is a row of the deployments table.
type Deployment struct {
	ID          string
	Fingerprint string
	Status      string
	Error       string
	Manifest    []byte
	CreatedAt   string
	UpdatedAt   string
}

const deploymentColumns = `id, fingerprint, status, error, manifest, created_at, updated_at`

func scanDeployment(row interface{ Scan(...interface{}) error }) (Deployment, error) {
	var d Deployment
	err := row.Scan(&d.ID, &d.Fingerprint, &d.Status, &d.Error, &d.Manifest, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const createDeployment = `
INSERT INTO deployments (id, fingerprint, status, error, manifest, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + deploymentColumns

// CreateDeploymentParams are the inputs of CreateDeployment.
type CreateDeploymentParams struct {
	ID          string
	Fingerprint string
	Status      string
	Error       string
	Manifest    []byte
	CreatedAt   string
}

// CreateDeployment inserts a deployment row.
func (q *Queries) CreateDeployment(ctx context.Context, arg CreateDeploymentParams) (Deployment, error) {
	row := q.db.QueryRowContext(ctx, createDeployment,
		arg.ID, arg.Fingerprint, arg.Status, arg.Error, arg.Manifest, arg.CreatedAt, arg.CreatedAt)
	return scanDeployment(row)
}

const updateDeploymentStatus = `
UPDATE deployments SET status = ?, error = ?, updated_at = ?
WHERE id = ?`

// UpdateDeploymentStatusParams are the inputs of UpdateDeploymentStatus.
type UpdateDeploymentStatusParams struct {
	Status    string
	Error     string
	UpdatedAt string
	ID        string
}

// UpdateDeploymentStatus sets status and error and returns the number of
// rows changed.
func (q *Queries) UpdateDeploymentStatus(ctx context.Context, arg UpdateDeploymentStatusParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateDeploymentStatus, arg.Status, arg.Error, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getDeploymentByID = `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = ?`

// GetDeploymentByID returns one deployment or sql.ErrNoRows.
func (q *Queries) GetDeploymentByID(ctx context.Context, id string) (Deployment, error) {
	return scanDeployment(q.db.QueryRowContext(ctx, getDeploymentByID, id))
}

const getLatestDeployment = `
SELECT ` + deploymentColumns + ` FROM deployments
WHERE (? = '' OR status = ?)
ORDER BY created_at DESC, rowid DESC
LIMIT 1`

// GetLatestDeployment returns the newest deployment with status, or the
// newest of any status when status is empty.
func (q *Queries) GetLatestDeployment(ctx context.Context, status string) (Deployment, error) {
	return scanDeployment(q.db.QueryRowContext(ctx, getLatestDeployment, status, status))
}

const listDeployments = `
SELECT ` + deploymentColumns + ` FROM deployments
ORDER BY created_at DESC, rowid DESC
LIMIT ?`

// ListDeployments returns up to limit deployments, newest first.
func (q *Queries) ListDeployments(ctx context.Context, limit int64) ([]Deployment, error) {
	rows, err := q.db.QueryContext(ctx, listDeployments, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var items []Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
