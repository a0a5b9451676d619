// Package diag turns lifecycle transitions into human-actionable status
// lines. It is a pure sink: nothing it does may influence the supervised
// lifecycle, so every failure path here is swallowed.
package diag

import (
	"log/slog"
	"time"

	"github.com/loykin/sidekick/internal/supervisor"
)

// Reporter renders transitions through slog. Safe for concurrent use to the
// extent the underlying handler is.
type Reporter struct {
	log *slog.Logger
}

func NewReporter(log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{log: log}
}

// Report implements supervisor.Reporter. It never panics out of a transition.
func (r *Reporter) Report(t supervisor.Transition) {
	defer func() { _ = recover() }()

	switch t.To {
	case supervisor.StateStarting:
		r.log.Info("waiting for backend",
			"attempt", t.Attempt,
			"of", t.MaxAttempts,
			"elapsed", t.Elapsed.Round(time.Millisecond),
		)
	case supervisor.StateReady:
		args := []any{
			"attempts", t.Attempt,
			"elapsed", t.Elapsed.Round(time.Millisecond),
		}
		if t.Result != nil {
			args = append(args, "latency", t.Result.Latency.Round(time.Millisecond))
		}
		r.log.Info("backend ready", args...)
	case supervisor.StateFailed:
		args := []any{
			"attempts", t.Attempt,
			"of", t.MaxAttempts,
			"elapsed", t.Elapsed.Round(time.Millisecond),
		}
		if t.Reason != "" {
			args = append(args, "reason", t.Reason)
		}
		if t.Result != nil {
			args = append(args, "last_probe", t.Result.Outcome.String())
			if t.Result.StatusCode != 0 {
				args = append(args, "status_code", t.Result.StatusCode)
			}
		}
		if t.ExitCode != nil {
			args = append(args, "exit_code", *t.ExitCode)
		}
		r.log.Error("backend failed to become ready", args...)
	case supervisor.StateStopped:
		r.log.Info("backend stopped", "elapsed", t.Elapsed.Round(time.Millisecond))
	}
}


