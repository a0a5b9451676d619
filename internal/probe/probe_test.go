package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultHealthPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	p := New(time.Second)
	res := p.Check(context.Background(), srv.URL)
	if res.Outcome != OutcomeHealthy {
		t.Fatalf("expected healthy, got %s (err=%v)", res.Outcome, res.Err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if res.Latency <= 0 {
		t.Fatalf("expected positive latency, got %v", res.Latency)
	}
}

func TestCheckMarkerMissing(t *testing.T) {
	// 2xx without the marker means the server is up but not ready yet.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"starting"}`))
	}))
	defer srv.Close()

	res := New(time.Second).Check(context.Background(), srv.URL)
	if res.Outcome != OutcomeErrorStatus {
		t.Fatalf("expected error_status, got %s", res.Outcome)
	}
}

func TestCheckErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("healthy")) // body must not rescue a 5xx
	}))
	defer srv.Close()

	res := New(time.Second).Check(context.Background(), srv.URL)
	if res.Outcome != OutcomeErrorStatus {
		t.Fatalf("expected error_status, got %s", res.Outcome)
	}
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.StatusCode)
	}
}

func TestCheckUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens anymore

	res := New(200 * time.Millisecond).Check(context.Background(), url)
	if res.Outcome != OutcomeUnreachable {
		t.Fatalf("expected unreachable, got %s", res.Outcome)
	}
	if res.Err == nil {
		t.Fatal("expected a transport error")
	}
}

func TestCheckContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := New(time.Second).Check(ctx, srv.URL)
	if res.Outcome != OutcomeUnreachable {
		t.Fatalf("expected unreachable on canceled probe, got %s", res.Outcome)
	}
}

func TestCheckCustomPathAndMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	p := New(time.Second, WithPath("/ping"), WithMarker("pong"))
	res := p.Check(context.Background(), srv.URL)
	if res.Outcome != OutcomeHealthy {
		t.Fatalf("expected healthy on custom path/marker, got %s", res.Outcome)
	}
}

func TestCheckEmptyMarkerAcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := New(time.Second, WithMarker(""))
	res := p.Check(context.Background(), srv.URL)
	if res.Outcome != OutcomeHealthy {
		t.Fatalf("expected healthy with empty marker, got %s", res.Outcome)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{OutcomeUnreachable, "unreachable"},
		{OutcomeErrorStatus, "error_status"},
		{OutcomeHealthy, "healthy"},
		{Outcome(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Fatalf("Outcome(%d).String() = %q, want %q", tt.o, got, tt.want)
		}
	}
}
