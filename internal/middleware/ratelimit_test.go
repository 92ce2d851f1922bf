package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hit struct {
	remote string
	xff    string
	want   int
}

func limitedServer(cfg RateLimitConfig) http.Handler {
	return RateLimiter(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func send(h http.Handler, remote, xff string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/rewrite", nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter(t *testing.T) {
	const (
		ok      = http.StatusNoContent
		limited = http.StatusTooManyRequests
	)
	cases := []struct {
		name string
		cfg  RateLimitConfig
		hits []hit
	}{
		{
			name: "under the burst",
			cfg:  RateLimitConfig{RequestsPerSecond: 50, Burst: 4},
			hits: []hit{{want: ok}, {want: ok}, {want: ok}, {want: ok}},
		},
		{
			name: "burst exhausted",
			cfg:  RateLimitConfig{RequestsPerSecond: 0.5, Burst: 2},
			hits: []hit{{want: ok}, {want: ok}, {want: limited}},
		},
		{
			name: "clients keyed by address without port",
			cfg:  RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1},
			hits: []hit{
				{remote: "192.0.2.7:4000", want: ok},
				{remote: "192.0.2.7:4001", want: limited},
				{remote: "192.0.2.8:4000", want: ok},
			},
		},
		{
			name: "forwarded header ignored when untrusted",
			cfg:  RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1},
			hits: []hit{
				{remote: "192.0.2.7:4000", xff: "198.51.100.1", want: ok},
				{remote: "192.0.2.7:4000", xff: "198.51.100.2", want: limited},
			},
		},
		{
			name: "forwarded clients get their own bucket",
			cfg:  RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1, TrustForwardedFor: true},
			hits: []hit{
				{remote: "192.0.2.7:4000", xff: "198.51.100.1", want: ok},
				{remote: "192.0.2.7:4000", xff: "198.51.100.1, 10.1.1.1", want: limited},
				{remote: "192.0.2.7:4000", xff: "198.51.100.2", want: ok},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := limitedServer(tc.cfg)
			for i, hh := range tc.hits {
				rec := send(h, hh.remote, hh.xff)
				require.Equalf(t, hh.want, rec.Code, "request %d", i)
				if hh.want == ok {
					assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
				}
			}
		})
	}
}

func TestRateLimiter_RejectionBody(t *testing.T) {
	h := limitedServer(RateLimitConfig{RequestsPerSecond: 0.25, Burst: 1})
	require.Equal(t, http.StatusNoContent, send(h, "", "").Code)

	rec := send(h, "", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Code    int    `json:"code"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "RateLimited", body.Kind)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		remote, xff string
		trust       bool
		want        string
	}{
		{remote: "192.0.2.7:4000", want: "192.0.2.7"},
		{remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{remote: "unix-socket", want: "unix-socket"},
		{remote: "192.0.2.7:4000", xff: "198.51.100.1", want: "192.0.2.7"},
		{remote: "192.0.2.7:4000", xff: " 198.51.100.1 ,10.0.0.1", trust: true, want: "198.51.100.1"},
		{remote: "192.0.2.7:4000", xff: ", 10.0.0.1", trust: true, want: "192.0.2.7"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remote
		if tc.xff != "" {
			req.Header.Set("X-Forwarded-For", tc.xff)
		}
		assert.Equal(t, tc.want, clientIP(req, tc.trust), "remote=%q xff=%q", tc.remote, tc.xff)
	}
}

func TestLimiterSet_Sweep(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	set := &limiterSet{
		cfg:       RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
		clients:   map[string]*clientLimiter{},
		lastSweep: t0,
	}

	idle := set.get("idle", t0)
	busy := set.get("busy", t0)
	assert.Same(t, idle, set.get("idle", t0.Add(time.Second)))

	// Touching busy before the sweep interval passes does not sweep.
	set.get("busy", t0.Add(sweepInterval-time.Second))
	assert.Len(t, set.clients, 2)

	late := t0.Add(idleTimeout + 2*time.Second)
	set.get("fresh", late)

	assert.NotContains(t, set.clients, "idle")
	assert.Same(t, busy, set.get("busy", late))
	assert.Len(t, set.clients, 2)
}
