package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"semlayer/internal/semantic"
	"semlayer/internal/service/manifest"
)

func newValidateCmd() *cobra.Command {
	var mf manifestFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a manifest offline",
		Long:  "Checks names and references, parses every model, metric and rollup definition and rejects dependency cycles.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, _, err := mf.load()
			if err != nil {
				return err
			}
			if err := semantic.ValidateManifest(m); err != nil {
				return err
			}
			fp, err := manifest.Fingerprint(m)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"valid":         true,
					"fingerprint":   fp,
					"models":        len(m.Models),
					"relationships": len(m.Relationships),
					"metrics":       len(m.Metrics),
				})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Manifest is valid: %d model(s), %d relationship(s), %d metric(s) (fingerprint %s).\n",
				len(m.Models), len(m.Relationships), len(m.Metrics), fp)
			return err
		},
	}

	mf.register(cmd.Flags())
	return cmd
}
