package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/loykin/sidekick/internal/backend"
	"github.com/loykin/sidekick/internal/metrics"
	"github.com/loykin/sidekick/internal/probe"
)

// Prober is the single-shot readiness check the retry loop drives.
// *probe.Prober satisfies it; tests substitute scripted results.
type Prober interface {
	Check(ctx context.Context, baseURL string) probe.Result
}

// Config wires a Supervisor.
type Config struct {
	Spec      backend.Spec
	BaseURL   string // resolved by the origin policy; probes target the health path under it
	Policy    RetryPolicy
	Launcher  *backend.Launcher
	Prober    Prober
	Reporters []Reporter
}

// Supervisor owns one backend process end-to-end: spawn, bounded readiness
// probing and shutdown. The retry loop runs on its own goroutine so the host
// is never blocked; probes are strictly sequential within a run.
type Supervisor struct {
	mu        sync.Mutex
	spec      backend.Spec
	baseURL   string
	policy    RetryPolicy
	launcher  *backend.Launcher
	prober    Prober
	reporters []Reporter

	state     State
	attempt   int
	runID     int
	handle    *backend.Handle
	startedAt time.Time
	endedAt   time.Time
	lastProbe *probe.Result
	reason    string
	stopping  bool
	cancel    context.CancelFunc
	runDone   chan struct{}
}

// New builds a Supervisor in StateNotStarted.
func New(cfg Config) *Supervisor {
	launcher := cfg.Launcher
	if launcher == nil {
		launcher = &backend.Launcher{}
	}
	policy := cfg.Policy.Normalize()
	prober := cfg.Prober
	if prober == nil {
		prober = probe.New(policy.ProbeTimeout)
	}
	return &Supervisor{
		spec:      cfg.Spec,
		baseURL:   cfg.BaseURL,
		policy:    policy,
		launcher:  launcher,
		prober:    prober,
		reporters: append([]Reporter(nil), cfg.Reporters...),
		state:     StateNotStarted,
	}
}

// Policy returns the (immutable) retry policy.
func (s *Supervisor) Policy() RetryPolicy { return s.policy }

// Start launches the supervised run on a dedicated goroutine. It fails if a
// run is already in flight or has finished; use Restart for a fresh run.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.state != StateNotStarted {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("supervisor already %s", st)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.runDone = make(chan struct{})
	s.runID++
	done := s.runDone
	// Commit Starting here so a concurrent Start cannot slip in before the
	// run goroutine gets scheduled.
	s.startedAt = time.Now()
	s.endedAt = time.Time{}
	s.attempt = 1
	t, ok := s.transitionLocked(StateStarting, nil, "", nil)
	s.mu.Unlock()
	s.notify(t, ok)

	go func() {
		defer close(done)
		s.run(ctx)
	}()
	return nil
}

// Stop transitions any non-terminal run to Stopped, preempting an in-flight
// sleep or probe, and terminates the backend process. It also tears down a
// Ready backend on shutdown. Calling it on an already stopped or failed
// supervisor is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	switch s.state {
	case StateStopped, StateFailed:
		s.mu.Unlock()
		return nil
	case StateNotStarted:
		t, ok := s.transitionLocked(StateStopped, nil, "", nil)
		s.mu.Unlock()
		s.notify(t, ok)
		return nil
	case StateReady:
		handle := s.handle
		t, ok := s.transitionLocked(StateStopped, nil, "", nil)
		s.mu.Unlock()
		s.notify(t, ok)
		return s.launcher.Stop(handle)
	}
	// Starting: flag first so the run goroutine cannot commit Ready/Failed,
	// then cancel to preempt the sleep or the in-flight probe.
	s.stopping = true
	cancel := s.cancel
	done := s.runDone
	handle := s.handle
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	// The run goroutine may have exited without committing (e.g. a probe
	// outliving the cancellation), and the handle may have appeared after we
	// looked. Re-read both; transition and launcher stop are idempotent.
	s.mu.Lock()
	handle = s.handle
	t, ok := s.transitionLocked(StateStopped, nil, "", nil)
	s.mu.Unlock()
	s.notify(t, ok)
	return s.launcher.Stop(handle)
}

// Restart re-runs the whole sequence from NotStarted. It is only valid once
// the previous run reached a terminal state; a Ready backend is stopped first.
func (s *Supervisor) Restart() error {
	s.mu.Lock()
	if !s.state.Terminal() && s.state != StateNotStarted {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot restart while %s", st)
	}
	handle := s.handle
	ready := s.state == StateReady
	s.mu.Unlock()

	if ready {
		if err := s.launcher.Stop(handle); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.state = StateNotStarted
	s.attempt = 0
	s.handle = nil
	s.lastProbe = nil
	s.reason = ""
	s.stopping = false
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
	s.mu.Unlock()
	return s.Start()
}

// Done returns a channel closed when the current run reaches a terminal
// state. It is nil before the first Start.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runDone
}

// WaitUntilTerminal blocks until the run finishes or ctx expires.
func (s *Supervisor) WaitUntilTerminal(ctx context.Context) (Snapshot, error) {
	done := s.Done()
	if done == nil {
		return s.Snapshot(), errors.New("supervisor not started")
	}
	select {
	case <-done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Snapshot returns the current lifecycle view.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:       s.state,
		StateName:   s.state.String(),
		RunID:       s.runID,
		Attempt:     s.attempt,
		MaxAttempts: s.policy.MaxAttempts,
		LastProbe:   s.lastProbe,
		Reason:      s.reason,
		StartedAt:   s.startedAt,
	}
	if !s.startedAt.IsZero() {
		// Elapsed stops advancing once the run is over.
		end := s.endedAt
		if end.IsZero() {
			end = time.Now()
		}
		snap.Elapsed = end.Sub(s.startedAt)
	}
	if s.handle != nil {
		snap.PID = s.handle.PID()
		if code, ok := s.handle.ExitCode(); ok {
			snap.ExitCode = &code
		}
	}
	return snap
}

// run drives one supervised attempt sequence. It is the only goroutine that
// commits transitions while probing, which keeps probes sequential and the
// attempt counter race-free.
func (s *Supervisor) run(ctx context.Context) {
	s.mu.Lock()
	spec := s.spec
	s.mu.Unlock()

	var t Transition
	var ok bool
	handle, err := s.launcher.Start(spec)
	if err != nil {
		// Spawn failures are fatal: no probe attempts, straight to Failed.
		metrics.IncLaunchFailure(launchKind(err))
		s.mu.Lock()
		t, ok = s.transitionLocked(StateFailed, nil, err.Error(), nil)
		s.mu.Unlock()
		s.notify(t, ok)
		return
	}
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			s.commitStopped(handle)
			return
		}
		pctx, cancel := context.WithTimeout(ctx, s.policy.ProbeTimeout)
		res := s.prober.Check(pctx, s.baseURL)
		cancel()
		metrics.IncProbe(spec.Name, res.Outcome.String())
		metrics.ObserveProbeLatency(spec.Name, res.Latency.Seconds())

		s.mu.Lock()
		s.lastProbe = &res
		if res.Outcome == probe.OutcomeHealthy {
			t, ok = s.transitionLocked(StateReady, &res, "", nil)
			elapsed := time.Since(s.startedAt)
			s.mu.Unlock()
			if ok {
				metrics.ObserveTimeToReady(spec.Name, elapsed.Seconds())
			}
			s.notify(t, ok)
			return
		}
		if attempt >= s.policy.MaxAttempts {
			reason := fmt.Sprintf("no healthy response after %d attempts; check %s", attempt, spec.Addr())
			t, ok = s.transitionLocked(StateFailed, &res, reason, exitCodeOf(handle))
			s.mu.Unlock()
			s.notify(t, ok)
			// A backend that never answered healthy is not left running.
			_ = s.launcher.Stop(handle)
			return
		}
		s.mu.Unlock()

		timer := time.NewTimer(s.policy.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.commitStopped(handle)
			return
		case <-timer.C:
		}

		s.mu.Lock()
		s.attempt = attempt + 1
		t, ok = s.transitionLocked(StateStarting, &res, "", nil)
		s.mu.Unlock()
		s.notify(t, ok)
	}
}

func (s *Supervisor) commitStopped(handle *backend.Handle) {
	s.mu.Lock()
	t, ok := s.transitionLocked(StateStopped, nil, "", nil)
	s.mu.Unlock()
	s.notify(t, ok)
	_ = s.launcher.Stop(handle)
}

// transitionLocked commits a state change if it is legal and records metrics.
// Callers hold s.mu and must pass the returned transition to notify after
// unlocking. While stopping, only the Stopped transition may commit so an
// external stop never loses to a late probe result.
func (s *Supervisor) transitionLocked(to State, res *probe.Result, reason string, exitCode *int) (Transition, bool) {
	from := s.state
	if s.stopping && to != StateStopped {
		return Transition{}, false
	}
	if from.Terminal() && !(from == StateReady && to == StateStopped) {
		return Transition{}, false
	}
	if from == to && to != StateStarting {
		return Transition{}, false
	}
	s.state = to
	if reason != "" {
		s.reason = reason
	}
	t := Transition{
		RunID:       s.runID,
		From:        from,
		To:          to,
		Attempt:     s.attempt,
		MaxAttempts: s.policy.MaxAttempts,
		At:          time.Now(),
		Result:      res,
		Reason:      reason,
		ExitCode:    exitCode,
	}
	if !s.startedAt.IsZero() {
		t.Elapsed = time.Since(s.startedAt)
	}
	if to.Terminal() && s.endedAt.IsZero() {
		s.endedAt = t.At
	}
	name := s.spec.Name
	metrics.RecordStateTransition(name, from.String(), to.String())
	metrics.SetCurrentState(name, from.String(), false)
	metrics.SetCurrentState(name, to.String(), true)
	return t, true
}

func (s *Supervisor) notify(t Transition, ok bool) {
	if !ok {
		return
	}
	for _, r := range s.reporters {
		r.Report(t)
	}
}

func exitCodeOf(h *backend.Handle) *int {
	if h == nil {
		return nil
	}
	if code, ok := h.ExitCode(); ok {
		return &code
	}
	return nil
}

func launchKind(err error) string {
	var le *backend.LaunchError
	if errors.As(err, &le) {
		return le.Kind.String()
	}
	return "unknown"
}
