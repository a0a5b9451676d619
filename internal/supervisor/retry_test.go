package supervisor

import (
	"testing"
	"time"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxAttempts != 15 {
		t.Fatalf("MaxAttempts = %d", p.MaxAttempts)
	}
	if p.Interval != time.Second {
		t.Fatalf("Interval = %v", p.Interval)
	}
	if p.TotalBudget() != 15*time.Second {
		t.Fatalf("TotalBudget = %v", p.TotalBudget())
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   RetryPolicy
		want RetryPolicy
	}{
		{
			name: "zero fills defaults",
			in:   RetryPolicy{},
			want: RetryPolicy{MaxAttempts: 15, Interval: time.Second, ProbeTimeout: 800 * time.Millisecond},
		},
		{
			name: "probe timeout clamped below interval",
			in:   RetryPolicy{MaxAttempts: 5, Interval: 100 * time.Millisecond, ProbeTimeout: 200 * time.Millisecond},
			want: RetryPolicy{MaxAttempts: 5, Interval: 100 * time.Millisecond, ProbeTimeout: 80 * time.Millisecond},
		},
		{
			name: "valid policy untouched",
			in:   RetryPolicy{MaxAttempts: 30, Interval: 2 * time.Second, ProbeTimeout: time.Second},
			want: RetryPolicy{MaxAttempts: 30, Interval: 2 * time.Second, ProbeTimeout: time.Second},
		},
		{
			name: "negative attempts",
			in:   RetryPolicy{MaxAttempts: -1, Interval: time.Second, ProbeTimeout: 100 * time.Millisecond},
			want: RetryPolicy{MaxAttempts: 15, Interval: time.Second, ProbeTimeout: 100 * time.Millisecond},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Fatalf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateNotStarted, "not_started"},
		{StateStarting, "starting"},
		{StateReady, "ready"},
		{StateFailed, "failed"},
		{StateStopped, "stopped"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Fatalf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	if StateNotStarted.Terminal() || StateStarting.Terminal() {
		t.Fatal("pre-run states are not terminal")
	}
	for _, s := range []State{StateReady, StateFailed, StateStopped} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}
