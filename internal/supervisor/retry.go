package supervisor

import "time"

// A fixed budget of 15 one-second attempts bounds the worst-case wait to 15s,
// so the hosting shell never blocks indefinitely on a hung backend.
const (
	DefaultMaxAttempts  = 15
	DefaultInterval     = time.Second
	DefaultProbeTimeout = 800 * time.Millisecond
)

// RetryPolicy is read-only after construction.
type RetryPolicy struct {
	MaxAttempts  int           `json:"max_attempts" mapstructure:"max_attempts"`
	Interval     time.Duration `json:"interval" mapstructure:"interval"`
	ProbeTimeout time.Duration `json:"probe_timeout" mapstructure:"probe_timeout"`
}

// DefaultRetryPolicy returns the fixed-budget default policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		Interval:     DefaultInterval,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

// Normalize fills zero values and keeps the probe timeout strictly shorter
// than the inter-attempt interval so probes never overlap.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.ProbeTimeout <= 0 || p.ProbeTimeout >= p.Interval {
		p.ProbeTimeout = p.Interval * 4 / 5
	}
	return p
}

// TotalBudget is the worst-case supervision window.
func (p RetryPolicy) TotalBudget() time.Duration {
	return time.Duration(p.MaxAttempts) * p.Interval
}
