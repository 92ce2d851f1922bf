// Package mapper provides conversion functions between domain and database types.
package mapper

import (
	"time"

	dbstore "semlayer/internal/db/dbstore"
	"semlayer/internal/domain"
)

// TimeLayout is how timestamps are stored. It sorts lexicographically.
const TimeLayout = "2006-01-02 15:04:05.000000"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(TimeLayout, s)
	return t
}

// DeploymentFromDB converts a deployments row.
func DeploymentFromDB(d dbstore.Deployment) *domain.Deployment {
	return &domain.Deployment{
		ID:          d.ID,
		Fingerprint: d.Fingerprint,
		Status:      domain.DeploymentStatus(d.Status),
		Error:       d.Error,
		Manifest:    d.Manifest,
		CreatedAt:   parseTime(d.CreatedAt),
		UpdatedAt:   parseTime(d.UpdatedAt),
	}
}

// DeploymentsFromDB converts a slice of deployments rows.
func DeploymentsFromDB(rows []dbstore.Deployment) []domain.Deployment {
	out := make([]domain.Deployment, 0, len(rows))
	for _, r := range rows {
		out = append(out, *DeploymentFromDB(r))
	}
	return out
}
