package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"semlayer/internal/declarative"
	"semlayer/internal/domain"
)

func newDiffCmd() *cobra.Command {
	var (
		desiredPath string
		actualPath  string
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show changes between two manifests",
		Long: "Compares a manifest against a previous version and lists the models, relationships and metrics " +
			"that would be created, updated or deleted. Exits with status 2 when there are changes.",
		Example: `  semlayer diff -m manifest.yaml --against deployed.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desired, err := declarative.LoadManifest(desiredPath)
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			var actual *domain.Manifest
			if actualPath != "" {
				if actual, err = declarative.LoadManifest(actualPath); err != nil {
					return fmt.Errorf("load previous manifest: %w", err)
				}
			}

			plan := declarative.Diff(desired, actual)
			switch getOutputFormat(cmd) {
			case "json":
				if err := declarative.FormatJSON(cmd.OutOrStdout(), plan); err != nil {
					return fmt.Errorf("format plan: %w", err)
				}
			default:
				declarative.FormatText(cmd.OutOrStdout(), plan, !colorEnabled(cmd))
			}

			if plan.HasChanges() {
				return errChanges
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&desiredPath, "manifest", "m", "", "Manifest to apply")
	cmd.Flags().StringVar(&actualPath, "against", "", "Previous manifest (empty means nothing deployed)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}
