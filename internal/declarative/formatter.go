package declarative

import (
	"encoding/json"
	"fmt"
	"io"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// FormatText writes a human-readable plan to w.
// If noColor is true, ANSI codes are suppressed.
func FormatText(w io.Writer, plan *Plan, noColor bool) {
	c := func(code string) string {
		if noColor {
			return ""
		}
		return code
	}

	if !plan.HasChanges() {
		fmt.Fprintln(w, "No changes. The deployed manifest is up-to-date.")
		return
	}

	for _, a := range plan.Actions {
		switch a.Operation {
		case OpCreate:
			fmt.Fprintf(w, "  %s+%s %s %q will be created\n", c(colorGreen), c(colorReset), a.ResourceKind, a.ResourceName)
		case OpUpdate:
			fmt.Fprintf(w, "  %s~%s %s %q will be updated\n", c(colorYellow), c(colorReset), a.ResourceKind, a.ResourceName)
			for _, d := range a.Changes {
				fmt.Fprintf(w, "      %s: %q → %q\n", d.Field, d.OldValue, d.NewValue)
			}
		case OpDelete:
			fmt.Fprintf(w, "  %s-%s %s %q will be deleted\n", c(colorRed), c(colorReset), a.ResourceKind, a.ResourceName)
		}
	}

	s := plan.Summary()
	fmt.Fprintf(w, "\nPlan: %d to create, %d to update, %d to delete.\n", s.Creates, s.Updates, s.Deletes)
}

// jsonAction is the JSON rendering of an Action.
type jsonAction struct {
	Operation string      `json:"operation"`
	Kind      string      `json:"kind"`
	Name      string      `json:"name"`
	Changes   []FieldDiff `json:"changes,omitempty"`
}

// FormatJSON writes the plan as indented JSON to w.
func FormatJSON(w io.Writer, plan *Plan) error {
	out := struct {
		Actions []jsonAction `json:"actions"`
		Summary PlanSummary  `json:"summary"`
	}{Actions: []jsonAction{}, Summary: plan.Summary()}
	for _, a := range plan.Actions {
		out.Actions = append(out.Actions, jsonAction{
			Operation: a.Operation.String(),
			Kind:      a.ResourceKind.String(),
			Name:      a.ResourceName,
			Changes:   a.Changes,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
