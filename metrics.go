package authclient

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram of a client's [Metrics].
type MetricID uint16

const (
	// MetricRequest counts logical requests issued through Do.
	MetricRequest MetricID = iota
	// MetricRequestFailure counts ordinary non-2xx responses returned to callers.
	MetricRequestFailure
	// MetricAuthFailure counts 401 responses that entered the refresh flow.
	MetricAuthFailure
	// MetricRefreshStarted counts refresh cycles opened.
	MetricRefreshStarted
	// MetricRefreshSuccess counts refresh cycles that produced a new token pair.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh cycles that failed at the endpoint.
	MetricRefreshFailure
	// MetricRefreshMissingToken counts refresh cycles aborted for lack of a refresh token.
	MetricRefreshMissingToken
	// MetricRefreshQueued counts requests served by another caller's cycle, open or already settled.
	MetricRefreshQueued
	// MetricRequestRetried counts replays after a successful refresh.
	MetricRequestRetried
	// MetricSessionTerminated counts session terminations.
	MetricSessionTerminated
	// MetricBackendUnavailable counts backend-unavailable signals.
	MetricBackendUnavailable
	// MetricRequestLatency is the end-to-end latency histogram of Do.
	MetricRequestLatency
	// MetricRefreshLatency is the duration histogram of refresh cycles, measured
	// by the leader from opening the cycle to settling it.
	MetricRefreshLatency
	metricIDCount
)

// LatencyBuckets are the inclusive upper bounds of the latency histograms.
// Observations above the last bound land in a final overflow bucket.
var LatencyBuckets = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const (
	histBucketCount = len(LatencyBuckets) + 1
	cacheLineSize   = 64
)

// IsHistogram reports whether id names a latency histogram rather than a counter.
func (id MetricID) IsHistogram() bool {
	return id == MetricRequestLatency || id == MetricRefreshLatency
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
	sum     uint64 // nanoseconds
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and latency histograms for one client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histogram buckets are
// per-bucket counts in [LatencyBuckets] order followed by the overflow bucket.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	Sums       map[MetricID]time.Duration
}

// NewMetrics returns metrics configured by cfg. Latency histograms are only
// recorded when counters are enabled too.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id. Safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount || id.IsHistogram() {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram id. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !id.IsHistogram() {
		return
	}
	if d < 0 {
		d = 0
	}

	h := &m.histograms[id]
	atomic.AddUint64(&h.buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&h.sum, uint64(d))
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies the current values. It returns empty maps when metrics are
// disabled, and no histogram entries unless latency histograms are enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
		Sums:       map[MetricID]time.Duration{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id.IsHistogram() {
			if m.enableLatency {
				s.Histograms[id], s.Sums[id] = m.histograms[id].load()
			}
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}

func (h *metricHistogram) load() ([]uint64, time.Duration) {
	buckets := make([]uint64, histBucketCount)
	for i := range buckets {
		buckets[i] = atomic.LoadUint64(&h.buckets[i])
	}
	return buckets, time.Duration(atomic.LoadUint64(&h.sum))
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBuckets {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBuckets)
}
