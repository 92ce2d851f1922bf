package declarative

import (
	"fmt"
	"strings"

	"semlayer/internal/domain"
)

// Diff compares the desired manifest against the currently deployed one
// and returns a Plan describing the changes. A nil actual manifest means
// nothing is deployed yet.
func Diff(desired, actual *domain.Manifest) *Plan {
	if actual == nil {
		actual = &domain.Manifest{}
	}
	if desired == nil {
		desired = &domain.Manifest{}
	}
	plan := &Plan{}
	diffModels(plan, desired.Models, actual.Models)
	diffRelationships(plan, desired.Relationships, actual.Relationships)
	diffMetrics(plan, desired.Metrics, actual.Metrics)
	plan.SortActions()
	return plan
}

// === Helpers ===

func addCreate(plan *Plan, kind ResourceKind, name string) {
	plan.Actions = append(plan.Actions, Action{Operation: OpCreate, ResourceKind: kind, ResourceName: name})
}

func addUpdate(plan *Plan, kind ResourceKind, name string, changes []FieldDiff) {
	plan.Actions = append(plan.Actions, Action{Operation: OpUpdate, ResourceKind: kind, ResourceName: name, Changes: changes})
}

func addDelete(plan *Plan, kind ResourceKind, name string) {
	plan.Actions = append(plan.Actions, Action{Operation: OpDelete, ResourceKind: kind, ResourceName: name})
}

func diffField(changes *[]FieldDiff, field, oldVal, newVal string) {
	if oldVal != newVal {
		*changes = append(*changes, FieldDiff{Field: field, OldValue: oldVal, NewValue: newVal})
	}
}

// diffNamed runs create/update/delete detection over two named lists.
func diffNamed[T any](plan *Plan, kind ResourceKind, desired, actual []T, name func(T) string, fields func(d, a T) []FieldDiff) {
	actualByName := make(map[string]T, len(actual))
	for _, a := range actual {
		actualByName[name(a)] = a
	}
	seen := make(map[string]bool, len(desired))
	for _, d := range desired {
		n := name(d)
		seen[n] = true
		a, ok := actualByName[n]
		if !ok {
			addCreate(plan, kind, n)
			continue
		}
		if changes := fields(d, a); len(changes) > 0 {
			addUpdate(plan, kind, n, changes)
		}
	}
	for _, a := range actual {
		if n := name(a); !seen[n] {
			addDelete(plan, kind, n)
		}
	}
}

func diffModels(plan *Plan, desired, actual []domain.Model) {
	diffNamed(plan, KindModel, desired, actual,
		func(m domain.Model) string { return m.Name },
		func(d, a domain.Model) []FieldDiff {
			var changes []FieldDiff
			diffField(&changes, "refSql", a.RefSQL, d.RefSQL)
			diffField(&changes, "primaryKey", a.PrimaryKey, d.PrimaryKey)
			diffColumns(&changes, "columns", d.Columns, a.Columns)
			return changes
		})
}

func diffRelationships(plan *Plan, desired, actual []domain.Relationship) {
	diffNamed(plan, KindRelationship, desired, actual,
		func(r domain.Relationship) string { return r.Name },
		func(d, a domain.Relationship) []FieldDiff {
			var changes []FieldDiff
			diffField(&changes, "models", strings.Join(a.Models, ","), strings.Join(d.Models, ","))
			diffField(&changes, "joinType", string(a.JoinType), string(d.JoinType))
			diffField(&changes, "condition", a.Condition, d.Condition)
			return changes
		})
}

func diffMetrics(plan *Plan, desired, actual []domain.Metric) {
	diffNamed(plan, KindMetric, desired, actual,
		func(m domain.Metric) string { return m.Name },
		func(d, a domain.Metric) []FieldDiff {
			var changes []FieldDiff
			diffField(&changes, "baseObject", a.BaseObject, d.BaseObject)
			diffColumns(&changes, "dimension", d.Dimensions, a.Dimensions)
			diffColumns(&changes, "measure", d.Measures, a.Measures)
			diffField(&changes, "timeGrain", formatTimeGrains(a.TimeGrains), formatTimeGrains(d.TimeGrains))
			return changes
		})
}

// diffColumns reports added, removed and changed columns as one field
// change each, named "<field>.<column>".
func diffColumns(changes *[]FieldDiff, field string, desired, actual []domain.Column) {
	actualByName := make(map[string]domain.Column, len(actual))
	for _, c := range actual {
		actualByName[c.Name] = c
	}
	seen := make(map[string]bool, len(desired))
	for _, d := range desired {
		seen[d.Name] = true
		oldVal := ""
		if a, ok := actualByName[d.Name]; ok {
			oldVal = formatColumn(a)
		}
		diffField(changes, field+"."+d.Name, oldVal, formatColumn(d))
	}
	for _, a := range actual {
		if !seen[a.Name] {
			diffField(changes, field+"."+a.Name, formatColumn(a), "")
		}
	}
}

// formatColumn returns a stable one-line description of a column.
func formatColumn(c domain.Column) string {
	s := c.Kind().String()
	if c.Type != "" {
		s += " " + c.Type
	}
	switch c.Kind() {
	case domain.ColumnRelationship:
		s += " via " + c.Relationship
	case domain.ColumnCalculated:
		s += " = " + c.Expression
	}
	return s
}

func formatTimeGrains(grains []domain.TimeGrain) string {
	parts := make([]string, 0, len(grains))
	for _, g := range grains {
		parts = append(parts, fmt.Sprintf("%s(%s:%s)", g.Name, g.RefColumn, strings.Join(g.DateParts, "|")))
	}
	return strings.Join(parts, ",")
}
