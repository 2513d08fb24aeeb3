package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID uint16

const (
	// MetricFlowStarted counts successful flow-start calls.
	MetricFlowStarted MetricID = iota
	// MetricFlowStartFailed counts flow-start transport failures.
	MetricFlowStartFailed
	// MetricStepSubmitted counts flow-submit calls that reached the provider.
	MetricStepSubmitted
	// MetricStepRejected counts recoverable step rejections.
	MetricStepRejected
	// MetricFlowCompleted counts flows that reached terminal success.
	MetricFlowCompleted
	// MetricFlowFailed counts flows that reached terminal failure.
	MetricFlowFailed
	// MetricProtocolViolation counts ambiguous/empty step responses.
	MetricProtocolViolation
	// MetricEmailVerificationGate counts login attempts stopped on an
	// unverified email.
	MetricEmailVerificationGate
	// MetricVerificationResent counts resend-verification-email requests.
	MetricVerificationResent
	// MetricTOTPSubmitted counts TOTP codes submitted to the provider.
	MetricTOTPSubmitted
	// MetricTOTPRejectedLocal counts codes rejected client-side before any
	// network call.
	MetricTOTPRejectedLocal
	// MetricCredentialChained counts password submissions chained directly
	// onto the identification step.
	MetricCredentialChained
	// MetricBootstrapAuthenticated counts bootstraps that found a session.
	MetricBootstrapAuthenticated
	// MetricBootstrapAnonymous counts bootstraps that resolved anonymous.
	MetricBootstrapAnonymous
	// MetricRefreshApplied counts refresh responses applied to the state.
	MetricRefreshApplied
	// MetricRefreshDiscarded counts stale refresh responses discarded by the
	// generation guard.
	MetricRefreshDiscarded
	// MetricLogout counts logout operations.
	MetricLogout
	// MetricGuardAllowed counts guard admissions.
	MetricGuardAllowed
	// MetricGuardRedirected counts guard redirects to login.
	MetricGuardRedirected
	// MetricGuardForbidden counts role-based denials.
	MetricGuardForbidden
	// MetricStepLatency is the flow-submit round-trip latency histogram.
	MetricStepLatency

	// MetricIDCount is the number of defined metric IDs.
	MetricIDCount
)

// HistogramBuckets is the number of cumulative buckets per histogram,
// including the +Inf bucket.
const HistogramBuckets = 8

// HistogramBoundsMillis are the upper bounds of the first seven buckets; the
// eighth is +Inf.
var HistogramBoundsMillis = [HistogramBuckets - 1]int64{10, 25, 50, 100, 250, 500, 1000}

// Config controls metric collection.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds atomic counters and optional latency histograms. A nil
// *Metrics is valid and inert.
type Metrics struct {
	enabled bool
	latency bool

	counters [MetricIDCount]atomic.Uint64
	buckets  [HistogramBuckets]atomic.Uint64
	hcount   atomic.Uint64
}

// New creates a Metrics instance. When cfg.Enabled is false all operations
// are no-ops.
func New(cfg Config) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatency,
	}
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// ObserveStepLatency records one flow-submit round trip.
func (m *Metrics) ObserveStepLatency(d time.Duration) {
	if m == nil || !m.latency {
		return
	}
	ms := d.Milliseconds()
	idx := HistogramBuckets - 1
	for i, bound := range HistogramBoundsMillis {
		if ms <= bound {
			idx = i
			break
		}
	}
	// Cumulative buckets: every bucket at or above idx is incremented.
	for i := idx; i < HistogramBuckets; i++ {
		m.buckets[i].Add(1)
	}
	m.hcount.Add(1)
}

// Snapshot is a point-in-time deep copy of all metrics.
type Snapshot struct {
	Counters       map[MetricID]uint64
	LatencyBuckets [HistogramBuckets]uint64
	LatencyCount   uint64
}

// Snapshot copies every counter and histogram bucket.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Counters: make(map[MetricID]uint64, MetricIDCount),
	}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		if v := m.counters[id].Load(); v != 0 {
			snap.Counters[id] = v
		}
	}
	for i := range snap.LatencyBuckets {
		snap.LatencyBuckets[i] = m.buckets[i].Load()
	}
	snap.LatencyCount = m.hcount.Load()
	return snap
}
