package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"semlayer/internal/domain"
)

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "text" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'text' or 'json'", output)
	}
	return nil
}

// useColor reports whether w is a terminal that should get ANSI colors.
func useColor(w io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

// colorEnabled resolves --no-color for cmd's output stream.
func colorEnabled(cmd *cobra.Command) bool {
	noColor, _ := cmd.Root().PersistentFlags().GetBool("no-color")
	return useColor(cmd.OutOrStdout(), noColor)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// paint returns a color that is forced on or off, regardless of whether
// stdout is a terminal.
func paint(colored bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// printError writes "Error [Kind]: message", in red on terminals.
func printError(w io.Writer, err error, colored bool) {
	label := paint(colored, color.FgRed, color.Bold)
	kind := paint(colored, color.FgYellow)
	_, _ = label.Fprint(w, "Error")
	if k := domain.Kind(err); k != "Internal" {
		_, _ = kind.Fprintf(w, " [%s]", k)
	}
	_, _ = fmt.Fprintf(w, ": %v\n", err)
}

// heading prints a bold section title.
func heading(w io.Writer, colored bool, title string) {
	_, _ = paint(colored, color.Bold).Fprintln(w, title)
}
