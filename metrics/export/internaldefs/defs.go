package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/authclient"
)

// Def binds a client metric to its exported name.
type Def struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// AuditDropped is exported alongside the client metrics; its value comes from
// the audit dispatcher rather than the metrics snapshot.
var AuditDropped = Def{
	Name: "authclient_audit_dropped_total",
	Help: "Audit events dropped because the dispatcher buffer was full.",
}

// Counters lists every exported counter in exposition order.
var Counters = []Def{
	{authclient.MetricRequest, "authclient_requests_total", "Logical requests issued through the client."},
	{authclient.MetricRequestFailure, "authclient_request_failures_total", "Non-2xx responses returned to callers without retry."},
	{authclient.MetricAuthFailure, "authclient_auth_failures_total", "401 responses that entered the refresh flow."},
	{authclient.MetricRefreshStarted, "authclient_refresh_started_total", "Refresh cycles opened."},
	{authclient.MetricRefreshSuccess, "authclient_refresh_success_total", "Refresh cycles that produced a new token pair."},
	{authclient.MetricRefreshFailure, "authclient_refresh_failure_total", "Refresh cycles that failed."},
	{authclient.MetricRefreshMissingToken, "authclient_refresh_missing_token_total", "Refresh cycles aborted for lack of a refresh token."},
	{authclient.MetricRefreshQueued, "authclient_refresh_queued_total", "Requests that waited on an in-flight refresh."},
	{authclient.MetricRequestRetried, "authclient_requests_retried_total", "Requests replayed after a successful refresh."},
	{authclient.MetricSessionTerminated, "authclient_session_terminated_total", "Sessions terminated after a failed refresh."},
	{authclient.MetricBackendUnavailable, "authclient_backend_unavailable_total", "Backend-unavailable signals raised."},
}

// Histograms lists every exported histogram.
var Histograms = []Def{
	{authclient.MetricRequestLatency, "authclient_request_latency_seconds", "End-to-end latency of client requests."},
	{authclient.MetricRefreshLatency, "authclient_refresh_duration_seconds", "Duration of refresh cycles from open to settle."},
}

// Bound is one histogram upper bound in its exposition forms.
type Bound struct {
	// Le is the Prometheus "le" label value, "+Inf" for the overflow bucket.
	Le string
	// Suffix is Le made safe for use inside an instrument name.
	Suffix string
}

// Bounds returns the histogram bounds derived from [authclient.LatencyBuckets],
// followed by the overflow bound.
func Bounds() []Bound {
	out := make([]Bound, 0, len(authclient.LatencyBuckets)+1)
	for _, d := range authclient.LatencyBuckets {
		le := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
		out = append(out, Bound{Le: le, Suffix: strings.ReplaceAll(le, ".", "_")})
	}
	return append(out, Bound{Le: "+Inf", Suffix: "inf"})
}

// Point is one histogram as exported: cumulative bucket counts, the total
// count and the sum in seconds.
type Point struct {
	Cumulative []uint64
	Count      uint64
	Sum        float64
}

// HistogramPoint reads histogram id from snapshot. Missing or short bucket
// slices are zero-filled so every point has one entry per bound.
func HistogramPoint(snapshot authclient.MetricsSnapshot, id authclient.MetricID) Point {
	raw := snapshot.Histograms[id]
	p := Point{
		Cumulative: make([]uint64, len(authclient.LatencyBuckets)+1),
		Sum:        snapshot.Sums[id].Seconds(),
	}
	for i := range p.Cumulative {
		if i < len(raw) {
			p.Count += raw[i]
		}
		p.Cumulative[i] = p.Count
	}
	return p
}
