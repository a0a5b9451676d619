package origin

import (
	"fmt"
	"strings"
)

// Context identifies how the frontend is being served.
type Context int

const (
	// ContextPackaged means the frontend is loaded by the packaged desktop shell,
	// which presents a non-http pseudo-origin on outgoing requests.
	ContextPackaged Context = iota
	// ContextDevelopment means the frontend is served by a local dev server.
	ContextDevelopment
)

func (c Context) String() string {
	switch c {
	case ContextPackaged:
		return "packaged"
	case ContextDevelopment:
		return "development"
	default:
		return "unknown"
	}
}

// ParseContext maps a config string onto a Context.
func ParseContext(s string) (Context, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "packaged", "desktop":
		return ContextPackaged, nil
	case "development", "dev":
		return ContextDevelopment, nil
	default:
		return ContextPackaged, fmt.Errorf("unknown execution context %q", s)
	}
}

// Policy is the resolved origin contract between the shell, the frontend and
// the backend. It is computed once per process lifetime and immutable after.
type Policy struct {
	// BaseURL is where the frontend (and the readiness probe) reach the backend.
	// It always targets the loopback address regardless of context.
	BaseURL string `json:"base_url"`
	// AllowedOrigins is the set the backend must accept on cross-origin requests.
	AllowedOrigins []string `json:"allowed_origins"`
	// AllowAll reflects the blunt wildcard fallback; off unless explicitly enabled.
	AllowAll bool `json:"allow_all"`
}

// Allows reports whether the given request origin is acceptable under this policy.
func (p Policy) Allows(o string) bool {
	if p.AllowAll {
		return true
	}
	for _, a := range p.AllowedOrigins {
		if strings.EqualFold(a, o) {
			return true
		}
	}
	return false
}

const (
	// DefaultHost and DefaultPort are the fixed loopback endpoint of the backend.
	DefaultHost = "127.0.0.1"
	DefaultPort = 8001
	// DefaultDevPort is where the frontend dev server listens.
	DefaultDevPort = 3000
)

// Shell pseudo-origins the packaged desktop host presents. Both spellings are
// seen in the wild depending on shell version and platform.
var shellOrigins = []string{"tauri://localhost", "http://tauri.localhost"}

// Resolver computes the Policy for an execution context. It is the single
// place to touch when the deployment topology changes.
type Resolver struct {
	Host     string   // backend loopback host; DefaultHost when empty
	Port     int      // backend port; DefaultPort when <= 0
	DevPort  int      // dev server port; DefaultDevPort when <= 0
	AllowAll bool     // opt into the wildcard fallback
	Extra    []string // additional origins appended verbatim
}

// Resolve computes the origin policy. The base URL is identical in both
// contexts; only the accepted-origin set differs.
func (r Resolver) Resolve(c Context) Policy {
	host := r.Host
	if host == "" {
		host = DefaultHost
	}
	port := r.Port
	if port <= 0 {
		port = DefaultPort
	}
	devPort := r.DevPort
	if devPort <= 0 {
		devPort = DefaultDevPort
	}

	p := Policy{
		BaseURL:  fmt.Sprintf("http://%s:%d", host, port),
		AllowAll: r.AllowAll,
	}
	switch c {
	case ContextDevelopment:
		p.AllowedOrigins = []string{
			fmt.Sprintf("http://localhost:%d", devPort),
			fmt.Sprintf("http://127.0.0.1:%d", devPort),
		}
	default:
		p.AllowedOrigins = append([]string(nil), shellOrigins...)
	}
	p.AllowedOrigins = append(p.AllowedOrigins, r.Extra...)
	return p
}
