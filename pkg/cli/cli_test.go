package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semlayer/internal/domain"
)

const bookstoreYAML = `
catalog: semlayer
schema: test
models:
  - name: People
    refSql: SELECT * FROM table_people
    primaryKey: id
    columns:
      - name: id
        type: VARCHAR
      - name: email
        type: VARCHAR
      - name: gift
        type: VARCHAR
        expression: wishlist.bookId
      - name: wishlist
        type: WishList
        relationship: WishListPeople
  - name: WishList
    refSql: SELECT * FROM table_wishlist
    primaryKey: id
    columns:
      - name: id
        type: VARCHAR
      - name: bookId
        type: VARCHAR
relationships:
  - name: WishListPeople
    models: [WishList, People]
    joinType: ONE_TO_ONE
    condition: WishList.id = People.id
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestRewriteCmd(t *testing.T) {
	path := writeFile(t, "manifest.yaml", bookstoreYAML)

	res := runCLI(t, "", "rewrite", "-m", path, "SELECT email FROM People")
	require.Equal(t, 0, res.code, res.stderr)
	assert.True(t, strings.HasPrefix(res.stdout, "WITH "))
	assert.Contains(t, res.stdout, "table_people")

	res = runCLI(t, "select 1\n", "rewrite", "-m", path, "-")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "SELECT 1\n", res.stdout)

	res = runCLI(t, "SELECT 1", "rewrite", "-m", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "SELECT 1\n", res.stdout)

	res = runCLI(t, "", "rewrite", "-m", path, "-o", "json", "SELECT 1")
	require.Equal(t, 0, res.code, res.stderr)
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, "SELECT 1", out["sql"])
}

func TestRewriteCmd_Translator(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"sql": "SELECT 1 -- trino"})
	}))
	defer srv.Close()

	path := writeFile(t, "manifest.yaml", bookstoreYAML)
	res := runCLI(t, "", "rewrite", "-m", path, "--translator-url", srv.URL, "--write", "trino", "SELECT 1")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "SELECT 1 -- trino\n", res.stdout)
	assert.Equal(t, map[string]string{"sql": "SELECT 1", "read": "duckdb", "write": "trino"}, got)

	res = runCLI(t, "", "rewrite", "-m", path, "--write", "trino", "SELECT 1")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Error [Translation]:")
}

func TestRewriteCmd_Errors(t *testing.T) {
	path := writeFile(t, "manifest.yaml", bookstoreYAML)

	tests := []struct {
		name       string
		stdin      string
		args       []string
		wantStderr string
	}{
		{"missing manifest flag", "", []string{"rewrite", "SELECT 1"}, `required flag(s) "manifest" not set`},
		{"missing manifest file", "", []string{"rewrite", "-m", filepath.Join(t.TempDir(), "nope.yaml"), "SELECT 1"}, "load manifest"},
		{"syntax", "", []string{"rewrite", "-m", path, "SELEC 1"}, "Error [Syntax]:"},
		{"unknown relationship", "", []string{"rewrite", "-m", path, "SELECT wishlist.id.x FROM People"}, "Error [UnknownRelationship]:"},
		{"empty stdin", "  ", []string{"rewrite", "-m", path}, "no sql given"},
		{"bad output format", "", []string{"rewrite", "-m", path, "-o", "yaml", "SELECT 1"}, "unsupported output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.stdin, tt.args...)
			assert.Equal(t, 1, res.code)
			assert.Contains(t, res.stderr, tt.wantStderr)
			assert.Empty(t, res.stdout)
		})
	}
}

func TestRewriteCmd_JSONError(t *testing.T) {
	path := writeFile(t, "manifest.yaml", bookstoreYAML)
	res := runCLI(t, "", "rewrite", "-m", path, "-o", "json", "SELEC 1")
	assert.Equal(t, 1, res.code)
	assert.Empty(t, res.stderr)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, "Syntax", out["kind"])
	assert.NotEmpty(t, out["error"])
}

func TestValidateCmd(t *testing.T) {
	res := runCLI(t, "", "validate", "-m", writeFile(t, "manifest.yaml", bookstoreYAML))
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Manifest is valid: 2 model(s), 1 relationship(s), 0 metric(s)")

	res = runCLI(t, "", "validate", "-o", "json", "-m", writeFile(t, "manifest.yaml", bookstoreYAML))
	require.Equal(t, 0, res.code, res.stderr)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, true, out["valid"])
	assert.Len(t, out["fingerprint"], 16)

	cyclic := strings.Replace(bookstoreYAML, `      - name: bookId
        type: VARCHAR
`, `      - name: bookId
        type: VARCHAR
      - name: peopleId
        type: VARCHAR
        expression: people.id
      - name: people
        type: People
        relationship: WishListPeople
`, 1)
	res = runCLI(t, "", "validate", "-m", writeFile(t, "cyclic.yaml", cyclic))
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Error [CyclicModelDependency]: found cycle in models")
}

func TestExplainCmd(t *testing.T) {
	path := writeFile(t, "manifest.yaml", bookstoreYAML)

	res := runCLI(t, "", "explain", "-m", path, "--sql", "SELECT wishlist.bookId FROM People")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Models:\n  WishList\n  People (depends on WishList)\n")
	assert.Contains(t, res.stdout, "Relationship CTEs:\n")
	assert.Contains(t, res.stdout, ": People.wishlist -> WishList\n")
	assert.Contains(t, res.stdout, "SQL:\n  WITH ")

	res = runCLI(t, "", "explain", "-m", path, "SELECT 1")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "passes through unchanged")

	res = runCLI(t, "", "explain", "-m", path, "-o", "json", "SELECT email FROM People")
	require.Equal(t, 0, res.code, res.stderr)
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	require.Len(t, out.Models, 2)
	assert.Equal(t, "People", out.Models[1].Name)
}

func TestDiffCmd(t *testing.T) {
	current := writeFile(t, "current.yaml", bookstoreYAML)

	res := runCLI(t, "", "diff", "-m", current)
	assert.Equal(t, 2, res.code, res.stderr)
	assert.Contains(t, res.stdout, `model "People" will be created`)
	assert.Contains(t, res.stdout, "Plan: 3 to create, 0 to update, 0 to delete.")

	res = runCLI(t, "", "diff", "-m", current, "--against", current)
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "No changes.")

	changed := writeFile(t, "changed.yaml", strings.Replace(bookstoreYAML, "table_people", "people_v2", 1))
	res = runCLI(t, "", "diff", "-o", "json", "-m", changed, "--against", current)
	assert.Equal(t, 2, res.code, res.stderr)
	var out struct {
		Summary struct {
			Updates int `json:"updates"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, 1, out.Summary.Updates)
}

func TestVersionCmd(t *testing.T) {
	res := runCLI(t, "", "version")
	require.Equal(t, 0, res.code)
	assert.Equal(t, "semlayer version dev (commit: none)\n", res.stdout)
}

func TestPrintError(t *testing.T) {
	var plain, colored bytes.Buffer
	err := domain.ErrUnknownModel("model %q not found", "X")

	printError(&plain, err, false)
	assert.Equal(t, "Error [UnknownModel]: model \"X\" not found\n", plain.String())

	printError(&colored, err, true)
	assert.Contains(t, colored.String(), "\x1b[")

	plain.Reset()
	printError(&plain, errors.New("boom"), false)
	assert.Equal(t, "Error: boom\n", plain.String())
}

func TestUseColor(t *testing.T) {
	assert.False(t, useColor(&bytes.Buffer{}, false))
	assert.False(t, useColor(os.Stdout, true))
}
