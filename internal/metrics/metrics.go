package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register;
// the recording helpers no-op until then.
var (
	regOK atomic.Bool

	probeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidekick",
			Subsystem: "readiness",
			Name:      "probe_attempts_total",
			Help:      "Health probe attempts by outcome.",
		}, []string{"name", "outcome"},
	)
	probeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sidekick",
			Subsystem: "readiness",
			Name:      "probe_latency_seconds",
			Help:      "Latency of individual health probes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"},
	)
	timeToReady = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sidekick",
			Subsystem: "readiness",
			Name:      "time_to_ready_seconds",
			Help:      "Elapsed time from spawn to the Ready transition.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30},
		}, []string{"name"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidekick",
			Subsystem: "lifecycle",
			Name:      "state_transitions_total",
			Help:      "Lifecycle state transitions.",
		}, []string{"name", "from", "to"},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sidekick",
			Subsystem: "lifecycle",
			Name:      "current_state",
			Help:      "Current lifecycle state (1 = active state, 0 = inactive).",
		}, []string{"name", "state"},
	)
	launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidekick",
			Subsystem: "launch",
			Name:      "failures_total",
			Help:      "Backend spawn failures by kind.",
		}, []string{"kind"},
	)
)

// Register registers all collectors with r. Safe to call multiple times;
// AlreadyRegisteredError from a shared registry is tolerated.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probeAttempts, probeLatency, timeToReady, stateTransitions, currentStates, launchFailures}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer; the caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

func IncProbe(name, outcome string) {
	if regOK.Load() {
		probeAttempts.WithLabelValues(name, outcome).Inc()
	}
}

func ObserveProbeLatency(name string, seconds float64) {
	if regOK.Load() {
		probeLatency.WithLabelValues(name).Observe(seconds)
	}
}

func ObserveTimeToReady(name string, seconds float64) {
	if regOK.Load() {
		timeToReady.WithLabelValues(name).Observe(seconds)
	}
}

func RecordStateTransition(name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(name, from, to).Inc()
	}
}

func SetCurrentState(name, state string, active bool) {
	if regOK.Load() {
		v := 0.0
		if active {
			v = 1.0
		}
		currentStates.WithLabelValues(name, state).Set(v)
	}
}

func IncLaunchFailure(kind string) {
	if regOK.Load() {
		launchFailures.WithLabelValues(kind).Inc()
	}
}
