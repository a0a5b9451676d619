package env

import (
	"os"
	"strings"
)

// Env composes the environment handed to the backend process: the OS
// environment as base, global overrides on top, then per-process entries.
type Env struct {
	vars map[string]string
	base map[string]string
}

func New() *Env {
	return &Env{vars: make(map[string]string)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	e.base = base
}

// Set adds a global override.
func (e *Env) Set(k, v string) {
	e.vars[k] = v
}

// Merge returns the final environment in "K=V" form. Precedence, lowest
// first: cached OS env, global overrides, perProc entries. ${VAR} references
// in values are expanded against the composed map (single pass).
func (e *Env) Merge(perProc []string) []string {
	m := make(map[string]string, len(e.base)+len(e.vars)+len(perProc))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.vars {
		m[k] = v
	}
	for _, kv := range perProc {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	lookup := func(k string) string { return m[k] }
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+os.Expand(v, lookup))
	}
	return out
}
