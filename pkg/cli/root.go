// Package cli implements the semlayer command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"semlayer/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// errChanges signals a diff with pending changes; it maps to exit code 2.
var errChanges = errors.New("manifest has changes")

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errChanges):
		return 2
	}

	if getOutputFormat(rootCmd) == "json" {
		_ = printJSON(stdout, map[string]string{
			"error": err.Error(),
			"kind":  domain.Kind(err),
		})
		return 1
	}
	noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
	printError(stderr, err, useColor(stderr, noColor))
	return 1
}

func newRootCmd() *cobra.Command {
	var (
		output  string
		noColor bool
	)

	rootCmd := &cobra.Command{
		Use:           "semlayer",
		Short:         "Semantic-layer SQL compiler",
		Long:          "Rewrites SQL written against a semantic manifest of models, relationships and metrics into plain SQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("SEMLAYER_OUTPUT"); v != "" {
					output = v
				}
			}
			return validateOutputFormat(output)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newRewriteCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newExplainCmd())
	rootCmd.AddCommand(newDiffCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
