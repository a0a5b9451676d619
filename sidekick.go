// Package sidekick supervises the local backend process of a desktop-shell
// application: it spawns the backend, probes its health endpoint under a
// bounded retry budget, resolves the origin contract between shell, dev
// server and backend, and exposes the authoritative lifecycle state.
package sidekick

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/sidekick/internal/backend"
	"github.com/loykin/sidekick/internal/config"
	"github.com/loykin/sidekick/internal/diag"
	"github.com/loykin/sidekick/internal/history"
	"github.com/loykin/sidekick/internal/metrics"
	"github.com/loykin/sidekick/internal/origin"
	"github.com/loykin/sidekick/internal/probe"
	"github.com/loykin/sidekick/internal/supervisor"
)

// Re-export core types for embedding consumers; aliases are zero-cost.

type Spec = backend.Spec

type State = supervisor.State

type Snapshot = supervisor.Snapshot

type RetryPolicy = supervisor.RetryPolicy

type OriginPolicy = origin.Policy

type Config = config.FileConfig

const (
	StateNotStarted = supervisor.StateNotStarted
	StateStarting   = supervisor.StateStarting
	StateReady      = supervisor.StateReady
	StateFailed     = supervisor.StateFailed
	StateStopped    = supervisor.StateStopped
)

// LoadConfig reads and validates sidekick.toml.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Sidecar is the assembled supervisor plus its resolved origin policy.
type Sidecar struct {
	sup      *supervisor.Supervisor
	policy   origin.Policy
	recorder *history.Recorder
}

// New assembles a Sidecar from config. log may be nil.
func New(fc Config, log *slog.Logger) (*Sidecar, error) {
	policy := fc.Resolver().Resolve(fc.ExecutionContext())
	retry := fc.RetryPolicy()

	probeOpts := probeOptions(fc.Backend)

	reporters := []supervisor.Reporter{diag.NewReporter(log)}
	var recorder *history.Recorder
	if fc.History.Enabled {
		sink, err := history.NewSQLiteSink(fc.History.Path)
		if err != nil {
			return nil, err
		}
		recorder = history.NewRecorder(sink)
		reporters = append(reporters, recorder)
	}

	sup := supervisor.New(supervisor.Config{
		Spec:      fc.Spec(),
		BaseURL:   policy.BaseURL,
		Policy:    retry,
		Launcher:  &backend.Launcher{Grace: fc.Backend.GracePeriod, Env: fc.Env},
		Prober:    probe.New(retry.ProbeTimeout, probeOpts...),
		Reporters: reporters,
	})
	return &Sidecar{sup: sup, policy: policy, recorder: recorder}, nil
}

// probeOptions maps the backend section onto prober options. marker_any
// selects the any-2xx mode explicitly; an empty marker alone keeps the
// default so a sparse config still checks for a readiness body.
func probeOptions(b config.BackendConfig) []probe.Option {
	var opts []probe.Option
	if b.HealthPath != "" {
		opts = append(opts, probe.WithPath(b.HealthPath))
	}
	switch {
	case b.MarkerAny:
		opts = append(opts, probe.WithMarker(""))
	case b.Marker != "":
		opts = append(opts, probe.WithMarker(b.Marker))
	}
	return opts
}

// Supervisor returns the underlying supervisor, e.g. for mounting the control router.
func (s *Sidecar) Supervisor() *supervisor.Supervisor { return s.sup }

// Policy returns the resolved origin policy.
func (s *Sidecar) Policy() OriginPolicy { return s.policy }

// Start launches the supervised run; it does not block.
func (s *Sidecar) Start() error { return s.sup.Start() }

// Stop terminates the run and the backend process. Idempotent.
func (s *Sidecar) Stop() error { return s.sup.Stop() }

// Restart re-runs the supervised sequence from scratch.
func (s *Sidecar) Restart() error { return s.sup.Restart() }

// Snapshot returns the current lifecycle view.
func (s *Sidecar) Snapshot() Snapshot { return s.sup.Snapshot() }

// WaitUntilTerminal blocks until Ready, Failed or Stopped.
func (s *Sidecar) WaitUntilTerminal(ctx context.Context) (Snapshot, error) {
	return s.sup.WaitUntilTerminal(ctx)
}

// Close releases the history sink, if any.
func (s *Sidecar) Close() error {
	if s.recorder != nil {
		return s.recorder.Close()
	}
	return nil
}

// RegisterMetrics registers the sidekick collectors with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
