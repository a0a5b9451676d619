package history

import (
	"context"
	"sync"
	"time"

	"github.com/loykin/sidekick/internal/supervisor"
)

// Event is one recorded lifecycle transition.
type Event struct {
	RunID      int       `json:"run_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Attempt    int       `json:"attempt"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink is a destination for lifecycle events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Recorder adapts sinks to the supervisor's Reporter contract. Sink errors
// are swallowed: history must never abort the supervised lifecycle.
type Recorder struct {
	sinks []Sink
}

func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks}
}

func (r *Recorder) Report(t supervisor.Transition) {
	e := Event{
		RunID:      t.RunID,
		From:       t.From.String(),
		To:         t.To.String(),
		Attempt:    t.Attempt,
		Detail:     t.Reason,
		OccurredAt: t.At.UTC(),
	}
	if t.Result != nil && e.Detail == "" {
		e.Detail = t.Result.Outcome.String()
	}
	for _, s := range r.sinks {
		_ = s.Send(context.Background(), e)
	}
}

func (r *Recorder) Close() error {
	var first error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MemorySink keeps events in memory, mainly for tests and the status API.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) Send(_ context.Context, e Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *MemorySink) Close() error { return nil }
