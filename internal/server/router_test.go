package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/sidekick/internal/backend"
	"github.com/loykin/sidekick/internal/origin"
	"github.com/loykin/sidekick/internal/probe"
	"github.com/loykin/sidekick/internal/supervisor"
)

type staticProber struct {
	outcome probe.Outcome
}

func (p staticProber) Check(_ context.Context, _ string) probe.Result {
	return probe.Result{Outcome: p.outcome, CheckedAt: time.Now()}
}

func testPolicy() origin.Policy {
	return origin.Resolver{}.Resolve(origin.ContextPackaged)
}

func newTestRouter(t *testing.T, base string) (http.Handler, *supervisor.Supervisor) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sup := supervisor.New(supervisor.Config{
		Spec:    backend.Spec{Name: "t", Command: "sleep 30"},
		BaseURL: "http://127.0.0.1:1",
		Policy:  supervisor.RetryPolicy{MaxAttempts: 3, Interval: 10 * time.Millisecond, ProbeTimeout: 5 * time.Millisecond},
		Prober:  staticProber{outcome: probe.OutcomeHealthy},
	})
	r := NewRouter(sup, testPolicy(), base)
	return r.Handler(), sup
}

func doReq(t *testing.T, h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, "/api")
	rec := doReq(t, h, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap supervisor.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.StateName != "not_started" {
		t.Fatalf("expected not_started, got %q", snap.StateName)
	}
}

func TestOriginsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, "")
	rec := doReq(t, h, http.MethodGet, "/origins", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var p origin.Policy
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.BaseURL != "http://127.0.0.1:8001" {
		t.Fatalf("base URL %q", p.BaseURL)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, "/api")
	rec := doReq(t, h, http.MethodGet, "/api/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, "/api")
	rec := doReq(t, h, http.MethodGet, "/api/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStopEndpointIdempotent(t *testing.T) {
	h, _ := newTestRouter(t, "/api")
	for i := 0; i < 2; i++ {
		rec := doReq(t, h, http.MethodPost, "/api/stop", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("stop #%d: expected 200, got %d: %s", i+1, rec.Code, rec.Body.String())
		}
	}
}

func TestRestartEndpointConflict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like shell")
	}
	h, sup := newTestRouter(t, "/api")
	if err := sup.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = sup.Stop() }()

	// While the run is still in flight a restart must be refused.
	rec := doReq(t, h, http.MethodPost, "/api/restart", nil)
	if rec.Code != http.StatusConflict && rec.Code != http.StatusOK {
		t.Fatalf("unexpected code %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	h, _ := newTestRouter(t, "/api")
	rec := doReq(t, h, http.MethodGet, "/api/status", map[string]string{"Origin": "tauri://localhost"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "tauri://localhost" {
		t.Fatalf("expected echoed origin, got %q", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Fatal("expected Vary: Origin")
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	h, _ := newTestRouter(t, "/api")
	rec := doReq(t, h, http.MethodGet, "/api/status", map[string]string{"Origin": "http://evil.example.com"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin must get no CORS header, got %q", got)
	}
}

func TestCORSWildcard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sup := supervisor.New(supervisor.Config{Spec: backend.Spec{Name: "t", Command: "true"}})
	p := origin.Resolver{AllowAll: true}.Resolve(origin.ContextPackaged)
	h := NewRouter(sup, p, "").Handler()
	rec := doReq(t, h, http.MethodGet, "/status", map[string]string{"Origin": "http://anything.example"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t, "/api")
	rec := doReq(t, h, http.MethodOptions, "/api/status", map[string]string{"Origin": "tauri://localhost"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("expected Allow-Methods on preflight")
	}
}

func TestSanitizeBase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"/api", "/api"},
		{"api", "/api"},
		{"/api/", "/api"},
		{"  /api  ", "/api"},
	}
	for _, tt := range tests {
		if got := sanitizeBase(tt.in); got != tt.want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
