package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"semlayer/internal/service/query"
)

func newExplainCmd() *cobra.Command {
	var (
		mf      manifestFlags
		showSQL bool
	)

	cmd := &cobra.Command{
		Use:   "explain [SQL|-]",
		Short: "Show which manifest definitions a query uses",
		Long:  "Prints the models, relationship CTEs, metrics and rollups a rewrite injects, in injection order.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(cmd, args)
			if err != nil {
				return err
			}
			m, session, err := mf.load()
			if err != nil {
				return err
			}
			ex, err := query.Explain(sql, session, m)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), ex)
			}
			writeExplanation(cmd.OutOrStdout(), ex, showSQL, colorEnabled(cmd))
			return nil
		},
	}

	mf.register(cmd.Flags())
	cmd.Flags().BoolVar(&showSQL, "sql", false, "Also print the rewritten SQL")
	return cmd
}

func writeExplanation(w io.Writer, ex *query.Explanation, showSQL, colored bool) {
	if len(ex.Models)+len(ex.Metrics)+len(ex.Rollups) == 0 {
		_, _ = fmt.Fprintln(w, "Query references no manifest definitions; it passes through unchanged.")
	}

	if len(ex.Models) > 0 {
		heading(w, colored, "Models:")
		for _, m := range ex.Models {
			if len(m.DependsOn) > 0 {
				_, _ = fmt.Fprintf(w, "  %s (depends on %s)\n", m.Name, strings.Join(m.DependsOn, ", "))
				continue
			}
			_, _ = fmt.Fprintf(w, "  %s\n", m.Name)
		}
	}
	if len(ex.RelationshipCTEs) > 0 {
		heading(w, colored, "Relationship CTEs:")
		for _, c := range ex.RelationshipCTEs {
			_, _ = fmt.Fprintf(w, "  %s: %s -> %s\n", c.Name, strings.Join(c.Path, "."), c.Target)
		}
	}
	if len(ex.Metrics) > 0 {
		heading(w, colored, "Metrics:")
		for _, name := range ex.Metrics {
			_, _ = fmt.Fprintf(w, "  %s\n", name)
		}
	}
	if len(ex.Rollups) > 0 {
		heading(w, colored, "Rollups:")
		for _, name := range ex.Rollups {
			_, _ = fmt.Fprintf(w, "  %s\n", name)
		}
	}
	if showSQL {
		heading(w, colored, "SQL:")
		_, _ = fmt.Fprintf(w, "  %s\n", ex.SQL)
	}
}
