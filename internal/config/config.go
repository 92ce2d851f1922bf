// Package config handles application configuration and environment loading.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds the configuration for the semantic layer server and CLI.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"
	MetaDBPath string // SQLite deployment store (default "semlayer_meta.sqlite")

	// ManifestSource is a local path or an s3://, gs:// or az:// URI.
	ManifestSource string
	// ManifestSyncSchedule is a cron spec; empty disables the resync job.
	ManifestSyncSchedule string

	DefaultCatalog string
	DefaultSchema  string

	// Dialect translation. An empty TranslatorURL passes SQL through.
	TranslatorURL string
	SourceDialect string
	TargetDialect string

	// Query execution. An empty DuckDBPath opens an in-memory database.
	DuckDBPath    string
	QueryMaxRows  int
	DenyFunctions bool

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// CORS
	CORSAllowedOrigins []string

	// S3 fields are optional; nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string

	GCSKeyFile string

	AzureAccountName string
	AzureAccountKey  string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// HasS3Config returns true if all required S3 fields are set.
func (c *Config) HasS3Config() bool {
	return c.S3KeyID != nil && c.S3Secret != nil &&
		c.S3Endpoint != nil && c.S3Region != nil
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:           os.Getenv("LISTEN_ADDR"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		Env:                  os.Getenv("ENV"),
		MetaDBPath:           os.Getenv("META_DB_PATH"),
		ManifestSource:       os.Getenv("MANIFEST_SOURCE"),
		ManifestSyncSchedule: os.Getenv("MANIFEST_SYNC_SCHEDULE"),
		DefaultCatalog:       os.Getenv("DEFAULT_CATALOG"),
		DefaultSchema:        os.Getenv("DEFAULT_SCHEMA"),
		TranslatorURL:        os.Getenv("TRANSLATOR_URL"),
		SourceDialect:        os.Getenv("SOURCE_DIALECT"),
		TargetDialect:        os.Getenv("TARGET_DIALECT"),
		DuckDBPath:           os.Getenv("DUCKDB_PATH"),
		GCSKeyFile:           os.Getenv("GCS_KEY_FILE"),
		AzureAccountName:     os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:      os.Getenv("AZURE_ACCOUNT_KEY"),
	}

	var err error
	if cfg.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = envInt("RATE_LIMIT_BURST", 200); err != nil {
		return nil, err
	}
	if cfg.QueryMaxRows, err = envInt("QUERY_MAX_ROWS", 1000); err != nil {
		return nil, err
	}
	if cfg.DenyFunctions, err = envBool("DENY_DANGEROUS_FUNCTIONS", true); err != nil {
		return nil, err
	}

	// S3 fields are optional; only set if present
	cfg.S3KeyID = optional("S3_KEY_ID")
	cfg.S3Secret = optional("S3_SECRET")
	cfg.S3Endpoint = optional("S3_ENDPOINT")
	cfg.S3Region = optional("S3_REGION")

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "semlayer_meta.sqlite"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.QueryMaxRows <= 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("QUERY_MAX_ROWS=%d is not positive, using 1000", cfg.QueryMaxRows))
		cfg.QueryMaxRows = 1000
	}
	if cfg.ManifestSource == "" {
		cfg.Warnings = append(cfg.Warnings, "MANIFEST_SOURCE not set: the server starts without a manifest until one is deployed")
	}
	if cfg.ManifestSyncSchedule != "" && cfg.ManifestSource == "" {
		cfg.Warnings = append(cfg.Warnings, "MANIFEST_SYNC_SCHEDULE ignored: MANIFEST_SOURCE not set")
		cfg.ManifestSyncSchedule = ""
	}
	if (cfg.SourceDialect != "" || cfg.TargetDialect != "") && cfg.TranslatorURL == "" &&
		!strings.EqualFold(cfg.SourceDialect, cfg.TargetDialect) {
		cfg.Warnings = append(cfg.Warnings, "SOURCE_DIALECT and TARGET_DIALECT differ but TRANSLATOR_URL is not set")
	}
	if strings.HasPrefix(cfg.ManifestSource, "s3://") && !cfg.HasS3Config() {
		return nil, fmt.Errorf("MANIFEST_SOURCE %q requires S3_KEY_ID, S3_SECRET, S3_ENDPOINT and S3_REGION", cfg.ManifestSource)
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func optional(key string) *string {
	if v := os.Getenv(key); v != "" {
		return &v
	}
	return nil
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "":
		return def, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
