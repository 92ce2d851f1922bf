package engine

import (
	"context"
	"fmt"
	"strings"

	"semlayer/internal/config"
	"semlayer/internal/duckdbsql"
)

// Secret names created by ConfigureStorage.
const (
	S3SecretName    = "semlayer_s3"
	GCSSecretName   = "semlayer_gcs"
	AzureSecretName = "semlayer_azure"
)

// ConfigureStorage creates a DuckDB secret for every object store cfg has
// credentials for, so model refSql can read remote files. It returns the
// names of the secrets it created.
func (e *Engine) ConfigureStorage(ctx context.Context, cfg *config.Config) ([]string, error) {
	stmts := storageSecrets(cfg)
	names := make([]string, 0, len(stmts))
	for _, s := range stmts {
		if err := e.Exec(ctx, s.sql); err != nil {
			return names, fmt.Errorf("create secret %q: %w", s.name, err)
		}
		e.logger.Info("storage secret created", "name", s.name)
		names = append(names, s.name)
	}
	return names, nil
}

type secretStmt struct {
	name string
	sql  string
}

func storageSecrets(cfg *config.Config) []secretStmt {
	if cfg == nil {
		return nil
	}
	var out []secretStmt
	if cfg.HasS3Config() {
		endpoint := *cfg.S3Endpoint
		endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
		out = append(out, secretStmt{S3SecretName, createS3Secret(S3SecretName, *cfg.S3KeyID, *cfg.S3Secret, endpoint, *cfg.S3Region, "path")})
	}
	if cfg.GCSKeyFile != "" {
		out = append(out, secretStmt{GCSSecretName, createGCSSecret(GCSSecretName, cfg.GCSKeyFile)})
	}
	if cfg.AzureAccountName != "" && cfg.AzureAccountKey != "" {
		out = append(out, secretStmt{AzureSecretName, createAzureSecret(AzureSecretName, cfg.AzureAccountName, cfg.AzureAccountKey)})
	}
	return out
}

func createS3Secret(name, keyID, secret, endpoint, region, urlStyle string) string {
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE S3,
	KEY_ID %s,
	SECRET %s,
	ENDPOINT %s,
	REGION %s,
	URL_STYLE %s
)`,
		duckdbsql.QuoteIdent(name),
		quoteLiteral(keyID),
		quoteLiteral(secret),
		quoteLiteral(endpoint),
		quoteLiteral(region),
		quoteLiteral(urlStyle),
	)
}

func createGCSSecret(name, keyFilePath string) string {
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE GCS,
	KEY_FILE_PATH %s
)`,
		duckdbsql.QuoteIdent(name),
		quoteLiteral(keyFilePath),
	)
}

func createAzureSecret(name, accountName, accountKey string) string {
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE AZURE,
	ACCOUNT_NAME %s,
	ACCOUNT_KEY %s
)`,
		duckdbsql.QuoteIdent(name),
		quoteLiteral(accountName),
		quoteLiteral(accountKey),
	)
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
