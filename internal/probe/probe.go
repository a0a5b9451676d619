package probe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// Outcome classifies a single health check.
type Outcome int

const (
	// OutcomeUnreachable means the request never produced an HTTP response
	// (connection refused, DNS failure, timeout).
	OutcomeUnreachable Outcome = iota
	// OutcomeErrorStatus means the backend answered but is not serving correctly.
	OutcomeErrorStatus
	// OutcomeHealthy means a 2xx response carrying the readiness marker.
	OutcomeHealthy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeErrorStatus:
		return "error_status"
	case OutcomeHealthy:
		return "healthy"
	default:
		return "unknown"
	}
}

// Result is the immutable outcome of one probe.
type Result struct {
	Outcome    Outcome       `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	CheckedAt  time.Time     `json:"checked_at"`
	Err        error         `json:"-"`
}

const (
	// DefaultHealthPath matches the backend's health route.
	DefaultHealthPath = "/api/health"
	// DefaultMarker is the substring a ready backend includes in its health body.
	DefaultMarker = "healthy"

	maxBodyBytes = 4 << 10
)

// Prober issues exactly one request per Check call. Retries belong to the caller.
type Prober struct {
	client *http.Client
	path   string
	marker string
}

// Option configures a Prober.
type Option func(*Prober)

// WithPath overrides the health endpoint path.
func WithPath(path string) Option {
	return func(p *Prober) {
		if path != "" {
			p.path = path
		}
	}
}

// WithMarker overrides the readiness marker. An empty marker accepts any 2xx body.
func WithMarker(marker string) Option {
	return func(p *Prober) { p.marker = marker }
}

// New returns a Prober whose requests are bounded by timeout.
func New(timeout time.Duration, opts ...Option) *Prober {
	p := &Prober{
		client: &http.Client{Timeout: timeout},
		path:   DefaultHealthPath,
		marker: DefaultMarker,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Check performs one GET against <baseURL><path> and classifies the response.
// Network-level failures map to OutcomeUnreachable, responses with status >= 400
// (or a 2xx missing the readiness marker) map to OutcomeErrorStatus.
func (p *Prober) Check(ctx context.Context, baseURL string) Result {
	started := time.Now()
	res := Result{CheckedAt: started}

	url := strings.TrimRight(baseURL, "/") + p.path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Outcome = OutcomeUnreachable
		res.Err = err
		res.Latency = time.Since(started)
		return res
	}

	resp, err := p.client.Do(req)
	res.Latency = time.Since(started)
	if err != nil {
		res.Outcome = OutcomeUnreachable
		res.Err = err
		return res
	}
	defer func() { _ = resp.Body.Close() }()

	res.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Outcome = OutcomeErrorStatus
		return res
	}
	if p.marker == "" {
		res.Outcome = OutcomeHealthy
		return res
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil || !strings.Contains(string(body), p.marker) {
		// Backend is up but not yet answering with a ready body.
		res.Outcome = OutcomeErrorStatus
		return res
	}
	res.Outcome = OutcomeHealthy
	return res
}
