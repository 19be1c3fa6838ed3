// Package target holds the per-backend runtime state shared between the
// request pipeline, the selection algorithms and the health-check
// scheduler.
package target

import (
	"net/url"
	"sync/atomic"
	"time"
)

// Target is a single backend endpoint. All five mutable fields are
// touched from concurrent request handlers and from the health-check
// task; each is updated atomically and independently. No compound
// invariant spans two of them.
type Target struct {
	// URL is the absolute http:// address of the backend, already DNS
	// resolved to an IPv4 literal host by the registry. Immutable after
	// construction.
	URL *url.URL

	// Weight is the positive weight used by the WEIGHTED algorithm.
	// Immutable after construction.
	Weight int

	healthy              atomic.Bool
	activeConnections    atomic.Int64
	consecutiveSuccesses atomic.Int64
	consecutiveFailures  atomic.Int64
	lastHealthCheckNanos atomic.Int64
}

// New creates a Target in the initial healthy state required by
// spec.md §4.7: all targets start healthy so requests can flow
// immediately after startup.
func New(u *url.URL, weight int) *Target {
	if weight <= 0 {
		weight = 1
	}
	t := &Target{URL: u, Weight: weight}
	t.healthy.Store(true)
	return t
}

// Healthy reports the target's current health flag.
func (t *Target) Healthy() bool { return t.healthy.Load() }

// SetHealthy forces the health flag; used by the health-check scheduler
// once a threshold transition fires.
func (t *Target) SetHealthy(v bool) { t.healthy.Store(v) }

// ActiveConnections returns the current in-flight request count for this
// target. Never negative.
func (t *Target) ActiveConnections() int64 { return t.activeConnections.Load() }

// IncActiveConnections is called by the pipeline on entry to the
// DISPATCHED state of an upstream attempt.
func (t *Target) IncActiveConnections() { t.activeConnections.Add(1) }

// DecActiveConnections is called by the pipeline on entry to the
// CLASSIFIED state, on every exit path (success, error or timeout).
func (t *Target) DecActiveConnections() { t.activeConnections.Add(-1) }

// IncrementSuccesses records a successful health probe. The reset of the
// opposite counter is not atomic with the increment: a race here can
// produce a single spurious extra increment on consecutiveFailures, which
// is tolerated per spec.md §5 because thresholds eventually converge.
func (t *Target) IncrementSuccesses() int64 {
	t.consecutiveFailures.Store(0)
	return t.consecutiveSuccesses.Add(1)
}

// IncrementFailures records a failed health probe, mirroring
// IncrementSuccesses.
func (t *Target) IncrementFailures() int64 {
	t.consecutiveSuccesses.Store(0)
	return t.consecutiveFailures.Add(1)
}

// ConsecutiveSuccesses and ConsecutiveFailures expose the hysteresis
// counters for the scheduler's threshold comparisons.
func (t *Target) ConsecutiveSuccesses() int64 { return t.consecutiveSuccesses.Load() }
func (t *Target) ConsecutiveFailures() int64  { return t.consecutiveFailures.Load() }

// DueForProbe reports whether at least interval has elapsed since the
// last probe was issued. lastHealthCheckNanos is stamped by
// MarkProbeIssued before the probe fires, so concurrent scheduler ticks
// never double-fire a probe for the same target.
func (t *Target) DueForProbe(now time.Time, interval time.Duration) bool {
	last := t.lastHealthCheckNanos.Load()
	return now.UnixNano()-last >= interval.Nanoseconds()
}

// MarkProbeIssued stamps lastHealthCheckNanos to now. Must be called
// before the probe request is sent.
func (t *Target) MarkProbeIssued(now time.Time) {
	t.lastHealthCheckNanos.Store(now.UnixNano())
}

// BaseURL returns a copy of this target's URL (scheme, host and path
// prefix), used to build the health-check probe URL.
func (t *Target) BaseURL() *url.URL {
	cp := *t.URL
	return &cp
}
