package supervisor

import (
	"time"

	"github.com/loykin/sidekick/internal/probe"
)

// State is the authoritative lifecycle state of the supervised backend.
// It only ever advances within one run: NotStarted -> Starting(k) ->
// Starting(k+1) -> {Ready | Failed}, or -> Stopped on external stop.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further probing happens in this state.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateStopped
}

// Snapshot is a read-only view of the supervisor, safe to hand to the host UI.
type Snapshot struct {
	State       State         `json:"state"`
	StateName   string        `json:"state_name"`
	RunID       int           `json:"run_id"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	PID         int           `json:"pid,omitempty"`
	StartedAt   time.Time     `json:"started_at,omitzero"`
	Elapsed     time.Duration `json:"elapsed"`
	LastProbe   *probe.Result `json:"last_probe,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	ExitCode    *int          `json:"exit_code,omitempty"`
}

// Transition is pushed to reporters on every state change.
type Transition struct {
	RunID       int
	From, To    State
	Attempt     int
	MaxAttempts int
	At          time.Time
	Elapsed     time.Duration
	Result      *probe.Result // probe that drove the transition, if any
	Reason      string        // human detail on Failed
	ExitCode    *int          // backend exit code when known
}

// Reporter consumes transitions. Implementations must never influence the
// lifecycle: they cannot return errors and should swallow their own failures.
type Reporter interface {
	Report(t Transition)
}
