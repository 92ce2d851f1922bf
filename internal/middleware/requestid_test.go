package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveWithID runs RequestID with the given incoming header and returns the ID
// the inner handler saw together with the response.
func serveWithID(t *testing.T, header string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/rewrite", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	return seen, rec
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"missing", "", false},
		{"client id", "rewrite-42_a", true},
		{"max length", strings.Repeat("x", maxRequestIDLen), true},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
		{"newline", "abc\nlevel=ERROR msg=forged", false},
		{"carriage return", "abc\rforged", false},
		{"space", "two words", false},
		{"markup", "<b>id</b>", false},
		{"dot", "v1.2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, rec := serveWithID(t, tt.header)
			assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
			if tt.keep {
				assert.Equal(t, tt.header, seen)
				return
			}
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "replacement should be a uuid")
		})
	}
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	a, _ := serveWithID(t, "")
	b, _ := serveWithID(t, "")
	assert.NotEqual(t, a, b)
}

func TestRequestIDFromContext_Unset(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
