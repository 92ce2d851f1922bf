package query

import (
	"context"

	"semlayer/internal/domain"
	"semlayer/internal/sqlrewrite"
)

// Explanation lists what a query pulls from the manifest.
type Explanation struct {
	Models           []ModelUse        `json:"models"`
	RelationshipCTEs []RelationshipUse `json:"relationshipCtes"`
	Metrics          []string          `json:"metrics"`
	Rollups          []string          `json:"rollups"`
	SQL              string            `json:"sql"`
}

// ModelUse is one injected model definition.
type ModelUse struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

// RelationshipUse is one generated relationship CTE.
type RelationshipUse struct {
	Name   string   `json:"name"`
	Base   string   `json:"base"`
	Path   []string `json:"path"`
	Target string   `json:"target"`
}

// Explain compiles sql against m and reports the definitions the rewrite
// injects, in injection order.
func Explain(sql string, session domain.Session, m *domain.Manifest) (*Explanation, error) {
	res, err := sqlrewrite.Compile(sql, session, m)
	if err != nil {
		return nil, err
	}
	a := res.Analysis

	ex := &Explanation{
		Models:           []ModelUse{},
		RelationshipCTEs: []RelationshipUse{},
		Metrics:          []string{},
		Rollups:          []string{},
		SQL:              res.SQL(),
	}
	for _, d := range a.Models() {
		ex.Models = append(ex.Models, ModelUse{Name: d.Model.Name, DependsOn: d.DependsOn})
	}
	for _, c := range a.RelationshipCTEs() {
		ex.RelationshipCTEs = append(ex.RelationshipCTEs, RelationshipUse{
			Name:   c.Name,
			Base:   c.BaseModel,
			Path:   c.Path,
			Target: c.Target,
		})
	}
	for _, mt := range a.Metrics() {
		ex.Metrics = append(ex.Metrics, mt.Name)
	}
	for _, ru := range a.Rollups() {
		ex.Rollups = append(ex.Rollups, ru.Name())
	}
	return ex, nil
}

// Explain explains req against the active manifest.
func (s *Service) Explain(_ context.Context, req Request) (*Explanation, error) {
	cur, ok := s.manifests.Current()
	if !ok {
		return nil, domain.ErrValidation("no manifest deployed")
	}
	return Explain(req.SQL, s.Session(req, cur.Manifest), cur.Manifest)
}
