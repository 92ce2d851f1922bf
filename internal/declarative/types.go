package declarative

import "semlayer/internal/domain"

// SupportedAPIVersion is the only apiVersion accepted in manifest documents.
const SupportedAPIVersion = "semlayer/v1"

// Document kinds.
const (
	DocManifest      = "Manifest"
	DocModel         = "Model"
	DocRelationships = "RelationshipList"
	DocMetric        = "Metric"
)

// Document is the generic envelope parsed first to determine Kind.
type Document struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

// ManifestDoc is the root document of a manifest directory. It may also
// carry inline models, relationships and metrics.
type ManifestDoc struct {
	APIVersion    string                `yaml:"apiVersion"`
	Kind          string                `yaml:"kind"`
	Catalog       string                `yaml:"catalog"`
	Schema        string                `yaml:"schema"`
	Models        []domain.Model        `yaml:"models,omitempty"`
	Relationships []domain.Relationship `yaml:"relationships,omitempty"`
	Metrics       []domain.Metric       `yaml:"metrics,omitempty"`
}

// ModelDoc declares one model, usually in models/<name>.yaml.
type ModelDoc struct {
	APIVersion   string `yaml:"apiVersion"`
	Kind         string `yaml:"kind"`
	domain.Model `yaml:",inline"`
}

// RelationshipListDoc declares the relationships between models.
type RelationshipListDoc struct {
	APIVersion    string                `yaml:"apiVersion"`
	Kind          string                `yaml:"kind"`
	Relationships []domain.Relationship `yaml:"relationships"`
}

// MetricDoc declares one metric, usually in metrics/<name>.yaml.
type MetricDoc struct {
	APIVersion    string `yaml:"apiVersion"`
	Kind          string `yaml:"kind"`
	domain.Metric `yaml:",inline"`
}
