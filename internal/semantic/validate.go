package semantic

import (
	"strings"

	"semlayer/internal/domain"
	"semlayer/internal/duckdbsql"
)

// ValidateManifest checks a whole manifest up front: structural validation,
// every SQL fragment parses, and no model takes part in a dependency cycle.
// Rewrites only detect cycles among the models a query reaches; this catches
// the rest before a manifest is deployed.
func ValidateManifest(m *domain.Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	for i := range m.Relationships {
		rel := &m.Relationships[i]
		cond, err := duckdbsql.ParseExpr(rel.Condition)
		if err != nil {
			return domain.ErrInvalidModelDefinition(rel.Name, "condition: %v", err)
		}
		if err := checkSelfCondition(rel, cond); err != nil {
			return err
		}
	}

	r := newResolver(m)
	names := make([]string, 0, len(m.Models))
	for _, mdl := range m.Models {
		names = append(names, mdl.Name)
	}
	for _, name := range sortedKeys(setOf(names)) {
		if err := r.require(name); err != nil {
			return err
		}
	}

	for i := range m.Metrics {
		if _, err := ResolveMetric(&m.Metrics[i]); err != nil {
			return err
		}
	}
	for _, ru := range m.MetricRollups() {
		if _, err := ResolveRollup(ru); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRollups rejects roll_up relations in stmt that are malformed or
// that the manifest does not define. It runs before analysis so such input
// surfaces as a validation error rather than an internal inconsistency.
func ValidateRollups(stmt *duckdbsql.SelectStmt, m *domain.Manifest) error {
	var err error
	duckdbsql.Walk(stmt, func(n duckdbsql.Node) bool {
		if err != nil {
			return false
		}
		f, ok := n.(*duckdbsql.FuncTable)
		if !ok || !isRollupCall(f.Func) {
			return true
		}
		args, ok := rollupArgs(f.Func)
		if !ok {
			err = domain.ErrValidation("roll_up expects (metric, time_grain, date_part), got %s", duckdbsql.FormatTableRef(f))
			return false
		}
		if _, ok := m.Rollup(args[0], args[1], args[2]); !ok {
			err = domain.ErrValidation("unknown metric rollup roll_up(%s)", strings.Join(args, ", "))
			return false
		}
		return true
	})
	return err
}

func setOf(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}
