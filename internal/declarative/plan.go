package declarative

import "sort"

// Action represents a single change between two manifests.
type Action struct {
	Operation    Operation
	ResourceKind ResourceKind
	ResourceName string
	Changes      []FieldDiff
}

// FieldDiff describes a single field change within an Update action.
type FieldDiff struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Plan is the ordered list of changes that turns one manifest into another.
type Plan struct {
	Actions []Action
}

// Summary returns counts of creates, updates and deletes.
func (p *Plan) Summary() PlanSummary {
	var s PlanSummary
	for _, a := range p.Actions {
		switch a.Operation {
		case OpCreate:
			s.Creates++
		case OpUpdate:
			s.Updates++
		case OpDelete:
			s.Deletes++
		}
	}
	return s
}

// HasChanges returns true if the plan has any actions.
func (p *Plan) HasChanges() bool {
	return len(p.Actions) > 0
}

// PlanSummary holds counts of planned operations.
type PlanSummary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

// SortActions orders actions by kind, then puts deletes after creates and
// updates, then sorts by name.
func (p *Plan) SortActions() {
	sort.SliceStable(p.Actions, func(i, j int) bool {
		ai, aj := p.Actions[i], p.Actions[j]
		if ai.ResourceKind != aj.ResourceKind {
			return ai.ResourceKind < aj.ResourceKind
		}
		iIsDelete := ai.Operation == OpDelete
		jIsDelete := aj.Operation == OpDelete
		if iIsDelete != jIsDelete {
			return !iIsDelete
		}
		return ai.ResourceName < aj.ResourceName
	})
}
