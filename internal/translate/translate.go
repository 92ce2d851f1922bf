// Package translate converts rewritten SQL between dialects. It runs after
// the semantic rewrite, never during it.
package translate

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"semlayer/internal/domain"
)

// Dialect names understood by the translation service.
const (
	DialectDuckDB    = "duckdb"
	DialectTrino     = "trino"
	DialectPostgres  = "postgres"
	DialectBigQuery  = "bigquery"
	DialectSnowflake = "snowflake"
)

// Translator converts sql from the source dialect to the target dialect.
type Translator interface {
	Translate(ctx context.Context, sql, source, target string) (string, error)
}

var (
	_ Translator = Identity{}
	_ Translator = (*HTTPTranslator)(nil)
)

// Identity returns sql unchanged when both dialects match and fails
// otherwise.
type Identity struct{}

// Translate implements Translator.
func (Identity) Translate(_ context.Context, sql, source, target string) (string, error) {
	if !strings.EqualFold(source, target) && source != "" && target != "" {
		return "", domain.ErrTranslation("no translator configured for %s to %s", source, target)
	}
	return sql, nil
}

// New returns an HTTPTranslator for url, or Identity when url is empty.
func New(url string) Translator {
	if url == "" {
		return Identity{}
	}
	return NewHTTPTranslator(url, nil)
}

// HTTPTranslator posts SQL to a transpilation service:
//
//	POST <url> {"sql": "...", "read": "duckdb", "write": "trino"}
//	200       {"sql": "..."}
//	4xx/5xx   {"error": "..."}
type HTTPTranslator struct {
	url    string
	client *http.Client
}

// NewHTTPTranslator builds a translator for url. A nil client gets a
// default one with a 10 second timeout.
func NewHTTPTranslator(url string, client *http.Client) *HTTPTranslator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second, Transport: defaultTransport()}
	}
	return &HTTPTranslator{url: strings.TrimRight(url, "/"), client: client}
}

// defaultTransport keeps the proxy, dialer and pool settings of
// http.DefaultTransport and raises the minimum TLS version.
func defaultTransport() *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if tr.TLSClientConfig == nil {
		tr.TLSClientConfig = &tls.Config{}
	}
	tr.TLSClientConfig.MinVersion = tls.VersionTLS12
	return tr
}

type translateRequest struct {
	SQL   string `json:"sql"`
	Read  string `json:"read"`
	Write string `json:"write"`
}

type translateResponse struct {
	SQL   string `json:"sql"`
	Error string `json:"error"`
}

// Translate implements Translator. Matching dialects skip the round trip.
func (t *HTTPTranslator) Translate(ctx context.Context, sql, source, target string) (string, error) {
	if strings.EqualFold(source, target) {
		return sql, nil
	}

	body, err := json.Marshal(translateRequest{SQL: sql, Read: source, Write: target})
	if err != nil {
		return "", fmt.Errorf("encode translate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.ErrTranslation("translation service unreachable: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", domain.ErrTranslation("read translation response: %v", err)
	}
	var out translateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", domain.ErrTranslation("translation service returned status %d with an unreadable body", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", domain.ErrTranslation("%s to %s: %s", source, target, msg)
	}
	if out.SQL == "" {
		return "", domain.ErrTranslation("%s to %s: empty result", source, target)
	}
	return out.SQL, nil
}
