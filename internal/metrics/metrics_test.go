package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndHelpersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncProbe("backend", "unreachable")
	IncProbe("backend", "healthy")
	ObserveProbeLatency("backend", 0.05)
	ObserveTimeToReady("backend", 2.5)
	RecordStateTransition("backend", "starting", "ready")
	SetCurrentState("backend", "ready", true)
	SetCurrentState("backend", "starting", false)
	IncLaunchFailure("executable_not_found")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"sidekick_readiness_probe_attempts_total":    false,
		"sidekick_readiness_probe_latency_seconds":   false,
		"sidekick_readiness_time_to_ready_seconds":   false,
		"sidekick_lifecycle_state_transitions_total": false,
		"sidekick_lifecycle_current_state":           false,
		"sidekick_launch_failures_total":             false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestHandlerServes(t *testing.T) {
	if Handler() == nil {
		t.Fatal("nil handler")
	}
}
