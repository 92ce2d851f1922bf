package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"semlayer/internal/declarative"
	"semlayer/internal/domain"
	"semlayer/internal/sqlrewrite"
	"semlayer/internal/translate"
)

// manifestFlags are shared by the commands that compile against a manifest.
type manifestFlags struct {
	path    string
	catalog string
	schema  string
}

func (f *manifestFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.path, "manifest", "m", "", "Manifest file or directory (JSON or YAML)")
	fs.StringVar(&f.catalog, "catalog", "", "Default catalog (defaults to the manifest's)")
	fs.StringVar(&f.schema, "schema", "", "Default schema (defaults to the manifest's)")
	_ = cobra.MarkFlagRequired(fs, "manifest")
}

func (f *manifestFlags) load() (*domain.Manifest, domain.Session, error) {
	m, err := declarative.LoadManifest(f.path)
	if err != nil {
		return nil, domain.Session{}, fmt.Errorf("load manifest: %w", err)
	}
	session := domain.Session{Catalog: f.catalog, Schema: f.schema}
	if session.Catalog == "" {
		session.Catalog = m.Catalog
	}
	if session.Schema == "" {
		session.Schema = m.Schema
	}
	return m, session, nil
}

// readSQL returns args[0], or stdin when there is no argument or it is "-".
func readSQL(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read sql from stdin: %w", err)
	}
	sql := strings.TrimSpace(string(data))
	if sql == "" {
		return "", domain.ErrValidation("no sql given")
	}
	return sql, nil
}

func newRewriteCmd() *cobra.Command {
	var (
		mf            manifestFlags
		translatorURL string
		read          string
		write         string
	)

	cmd := &cobra.Command{
		Use:   "rewrite [SQL|-]",
		Short: "Rewrite semantic SQL into plain SQL",
		Long:  "Compiles a query against the manifest and prints the rewritten SQL. SQL is read from stdin when omitted or '-'.",
		Example: `  semlayer rewrite -m manifest.yaml "SELECT email FROM People"
  echo "SELECT * FROM Revenue" | semlayer rewrite -m manifest.yaml --translator-url http://localhost:8000/translate --write trino`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(cmd, args)
			if err != nil {
				return err
			}
			m, session, err := mf.load()
			if err != nil {
				return err
			}

			out, err := sqlrewrite.Rewrite(sql, session, m)
			if err != nil {
				return err
			}
			if write == "" {
				write = read
			}
			out, err = translate.New(translatorURL).Translate(cmd.Context(), out, read, write)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"sql": out})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	mf.register(cmd.Flags())
	cmd.Flags().StringVar(&translatorURL, "translator-url", "", "Dialect translation service URL")
	cmd.Flags().StringVar(&read, "read", "duckdb", "Source dialect")
	cmd.Flags().StringVar(&write, "write", "", "Target dialect (defaults to the source dialect)")
	return cmd
}
