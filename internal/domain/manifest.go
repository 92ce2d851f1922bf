package domain

import (
	"slices"
	"strings"
)

// JoinType is the cardinality of a relationship.
type JoinType string

const (
	JoinTypeOneToOne  JoinType = "ONE_TO_ONE"
	JoinTypeOneToMany JoinType = "ONE_TO_MANY"
	JoinTypeManyToOne JoinType = "MANY_TO_ONE"
)

// Valid reports whether t is a supported cardinality.
func (t JoinType) Valid() bool {
	switch t {
	case JoinTypeOneToOne, JoinTypeOneToMany, JoinTypeManyToOne:
		return true
	}
	return false
}

// DateParts a time grain may be rolled up to, in date_trunc spelling.
var DateParts = []string{"YEAR", "QUARTER", "MONTH", "WEEK", "DAY", "HOUR", "MINUTE", "SECOND"}

// Manifest is the complete semantic-layer definition. It is immutable once
// loaded and is shared read-only between concurrent rewrites.
type Manifest struct {
	Catalog       string         `json:"catalog" yaml:"catalog"`
	Schema        string         `json:"schema" yaml:"schema"`
	Models        []Model        `json:"models" yaml:"models"`
	Relationships []Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Metrics       []Metric       `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Model is a logical table defined over base SQL.
type Model struct {
	Name       string   `json:"name" yaml:"name"`
	RefSQL     string   `json:"refSql" yaml:"refSql"`
	PrimaryKey string   `json:"primaryKey" yaml:"primaryKey"`
	Columns    []Column `json:"columns" yaml:"columns"`
}

// ColumnKind distinguishes the three column variants.
type ColumnKind int

const (
	ColumnPlain ColumnKind = iota
	ColumnCalculated
	ColumnRelationship
)

func (k ColumnKind) String() string {
	switch k {
	case ColumnCalculated:
		return "calculated"
	case ColumnRelationship:
		return "relationship"
	default:
		return "plain"
	}
}

// Column is a model column. A column with Relationship set is a navigable
// edge to the model named by Type; a column with Expression set is
// calculated; anything else maps straight onto the base SQL output.
type Column struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	NotNull      bool   `json:"notNull,omitempty" yaml:"notNull,omitempty"`
	Expression   string `json:"expression,omitempty" yaml:"expression,omitempty"`
	Relationship string `json:"relationship,omitempty" yaml:"relationship,omitempty"`
}

// Kind returns the column variant.
func (c Column) Kind() ColumnKind {
	switch {
	case c.Relationship != "":
		return ColumnRelationship
	case c.Expression != "":
		return ColumnCalculated
	default:
		return ColumnPlain
	}
}

// Relationship joins exactly two models. When both models are the same, the
// condition must qualify exactly two columns with the model name, source side
// first: "Emp.manager_id = Emp.id" navigates from an employee to its manager.
type Relationship struct {
	Name      string   `json:"name" yaml:"name"`
	Models    []string `json:"models" yaml:"models"`
	JoinType  JoinType `json:"joinType" yaml:"joinType"`
	Condition string   `json:"condition" yaml:"condition"`
}

// Metric aggregates measures over a model grouped by its dimensions.
type Metric struct {
	Name       string      `json:"name" yaml:"name"`
	BaseObject string      `json:"baseObject" yaml:"baseObject"`
	Dimensions []Column    `json:"dimension" yaml:"dimension"`
	Measures   []Column    `json:"measure" yaml:"measure"`
	TimeGrains []TimeGrain `json:"timeGrain,omitempty" yaml:"timeGrain,omitempty"`
}

// TimeGrain names a time column of a metric's base model that rollups may truncate.
type TimeGrain struct {
	Name      string   `json:"name" yaml:"name"`
	RefColumn string   `json:"refColumn" yaml:"refColumn"`
	DateParts []string `json:"dateParts" yaml:"dateParts"`
}

// MetricRollup is a metric with one extra time dimension truncated to a date part.
type MetricRollup struct {
	Metric    *Metric
	TimeGrain *TimeGrain
	DatePart  string
}

// Name is the name the rollup's definition is injected under.
func (r MetricRollup) Name() string {
	return r.Metric.Name + "_" + r.TimeGrain.Name + "_" + r.DatePart
}

// Session carries caller-scoped name-resolution defaults. The compiler never mutates it.
type Session struct {
	Catalog string
	Schema  string
}

// Model returns the model with the given name. Names are case-sensitive.
func (m *Manifest) Model(name string) (*Model, bool) {
	for i := range m.Models {
		if m.Models[i].Name == name {
			return &m.Models[i], true
		}
	}
	return nil, false
}

// Relationship returns the relationship with the given name.
func (m *Manifest) Relationship(name string) (*Relationship, bool) {
	for i := range m.Relationships {
		if m.Relationships[i].Name == name {
			return &m.Relationships[i], true
		}
	}
	return nil, false
}

// Metric returns the metric with the given name.
func (m *Manifest) Metric(name string) (*Metric, bool) {
	for i := range m.Metrics {
		if m.Metrics[i].Name == name {
			return &m.Metrics[i], true
		}
	}
	return nil, false
}

// Rollup resolves a roll_up(metric, grain, part) invocation. The date part is
// matched case-insensitively and normalised to upper case.
func (m *Manifest) Rollup(metric, grain, part string) (MetricRollup, bool) {
	mt, ok := m.Metric(metric)
	if !ok {
		return MetricRollup{}, false
	}
	tg, ok := mt.TimeGrain(grain)
	if !ok {
		return MetricRollup{}, false
	}
	part = strings.ToUpper(part)
	for _, p := range tg.DateParts {
		if strings.EqualFold(p, part) {
			return MetricRollup{Metric: mt, TimeGrain: tg, DatePart: part}, true
		}
	}
	return MetricRollup{}, false
}

// MetricRollups enumerates every rollup the manifest admits, in declaration order.
func (m *Manifest) MetricRollups() []MetricRollup {
	var out []MetricRollup
	for i := range m.Metrics {
		mt := &m.Metrics[i]
		for j := range mt.TimeGrains {
			tg := &mt.TimeGrains[j]
			for _, p := range tg.DateParts {
				out = append(out, MetricRollup{Metric: mt, TimeGrain: tg, DatePart: strings.ToUpper(p)})
			}
		}
	}
	return out
}

// Column returns the model column with the given name.
func (m *Model) Column(name string) (*Column, bool) {
	for i := range m.Columns {
		if m.Columns[i].Name == name {
			return &m.Columns[i], true
		}
	}
	return nil, false
}

// TimeGrain returns the metric's time grain with the given name.
func (m *Metric) TimeGrain(name string) (*TimeGrain, bool) {
	for i := range m.TimeGrains {
		if m.TimeGrains[i].Name == name {
			return &m.TimeGrains[i], true
		}
	}
	return nil, false
}

// Other returns the participant of r that is not model. For a self
// relationship it returns model.
func (r *Relationship) Other(model string) string {
	if len(r.Models) != 2 {
		return ""
	}
	if r.Models[0] == model {
		return r.Models[1]
	}
	return r.Models[0]
}

// Validate checks structural invariants of the manifest: unique names,
// resolvable references and well-formed columns. It does not parse SQL or
// look for dependency cycles.
func (m *Manifest) Validate() error {
	if m.Catalog == "" {
		return ErrValidation("catalog is required")
	}
	if m.Schema == "" {
		return ErrValidation("schema is required")
	}

	seen := make(map[string]string)
	claim := func(kind, name string) error {
		if name == "" {
			return ErrValidation("%s name is required", kind)
		}
		if prev, ok := seen[name]; ok {
			return ErrValidation("%s name %q is already used by a %s", kind, name, prev)
		}
		seen[name] = kind
		return nil
	}
	for _, mdl := range m.Models {
		if err := claim("model", mdl.Name); err != nil {
			return err
		}
	}
	for _, rel := range m.Relationships {
		if err := claim("relationship", rel.Name); err != nil {
			return err
		}
	}
	for _, mt := range m.Metrics {
		if err := claim("metric", mt.Name); err != nil {
			return err
		}
	}

	for _, rel := range m.Relationships {
		if len(rel.Models) != 2 {
			return ErrValidation("relationship %q must join exactly two models, got %d", rel.Name, len(rel.Models))
		}
		for _, name := range rel.Models {
			if _, ok := m.Model(name); !ok {
				return ErrUnknownModel("relationship %q references unknown model %q", rel.Name, name)
			}
		}
		if !rel.JoinType.Valid() {
			return ErrValidation("relationship %q has invalid join type %q", rel.Name, rel.JoinType)
		}
		if strings.TrimSpace(rel.Condition) == "" {
			return ErrValidation("relationship %q condition is required", rel.Name)
		}
	}

	for i := range m.Models {
		if err := m.validateModel(&m.Models[i]); err != nil {
			return err
		}
	}
	for i := range m.Metrics {
		if err := m.validateMetric(&m.Metrics[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manifest) validateModel(mdl *Model) error {
	if strings.TrimSpace(mdl.RefSQL) == "" {
		return ErrValidation("model %q refSql is required", mdl.Name)
	}
	names := make(map[string]bool, len(mdl.Columns))
	for _, col := range mdl.Columns {
		if col.Name == "" {
			return ErrValidation("model %q has a column without a name", mdl.Name)
		}
		if names[col.Name] {
			return ErrValidation("model %q declares column %q twice", mdl.Name, col.Name)
		}
		names[col.Name] = true

		if col.Kind() != ColumnRelationship {
			continue
		}
		rel, ok := m.Relationship(col.Relationship)
		if !ok {
			return ErrUnknownRelationship("column %s.%s references unknown relationship %q", mdl.Name, col.Name, col.Relationship)
		}
		if !slices.Contains(rel.Models, mdl.Name) {
			return ErrValidation("column %s.%s: relationship %q does not involve model %q", mdl.Name, col.Name, rel.Name, mdl.Name)
		}
		if _, ok := m.Model(col.Type); !ok {
			return ErrUnknownModel("column %s.%s references unknown model %q", mdl.Name, col.Name, col.Type)
		}
		if rel.Other(mdl.Name) != col.Type {
			return ErrValidation("column %s.%s: relationship %q does not lead to model %q", mdl.Name, col.Name, rel.Name, col.Type)
		}
	}

	if mdl.PrimaryKey == "" {
		return ErrValidation("model %q primaryKey is required", mdl.Name)
	}
	pk, ok := mdl.Column(mdl.PrimaryKey)
	if !ok {
		return ErrValidation("model %q primary key %q is not a declared column", mdl.Name, mdl.PrimaryKey)
	}
	if pk.Kind() != ColumnPlain {
		return ErrValidation("model %q primary key %q must be a plain column", mdl.Name, mdl.PrimaryKey)
	}
	return nil
}

func (m *Manifest) validateMetric(mt *Metric) error {
	base, ok := m.Model(mt.BaseObject)
	if !ok {
		return ErrUnknownModel("metric %q references unknown base model %q", mt.Name, mt.BaseObject)
	}
	if len(mt.Measures) == 0 {
		return ErrValidation("metric %q needs at least one measure", mt.Name)
	}
	for _, col := range append(slices.Clone(mt.Dimensions), mt.Measures...) {
		if col.Name == "" {
			return ErrValidation("metric %q has a column without a name", mt.Name)
		}
		if col.Kind() == ColumnRelationship {
			return ErrValidation("metric %q column %q cannot be a relationship", mt.Name, col.Name)
		}
	}
	for _, col := range mt.Measures {
		if col.Expression == "" {
			return ErrValidation("metric %q measure %q needs an aggregate expression", mt.Name, col.Name)
		}
	}
	for _, tg := range mt.TimeGrains {
		if tg.Name == "" {
			return ErrValidation("metric %q has a time grain without a name", mt.Name)
		}
		col, ok := base.Column(tg.RefColumn)
		if !ok || col.Kind() == ColumnRelationship {
			return ErrValidation("metric %q time grain %q references unknown column %q", mt.Name, tg.Name, tg.RefColumn)
		}
		if len(tg.DateParts) == 0 {
			return ErrValidation("metric %q time grain %q needs at least one date part", mt.Name, tg.Name)
		}
		for _, p := range tg.DateParts {
			if !slices.Contains(DateParts, strings.ToUpper(p)) {
				return ErrValidation("metric %q time grain %q has invalid date part %q", mt.Name, tg.Name, p)
			}
		}
	}
	return nil
}
