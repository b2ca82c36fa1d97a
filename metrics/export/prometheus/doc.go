// Package prometheus renders authclient metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts an *authclient.Client and exposes an
// [http.Handler]. Counter names are prefixed authclient_*_total; the single
// histogram is authclient_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate client state.
package prometheus
