// Package prometheus renders orchestrator metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an [authflow.Authenticator] and exposes an
// http.Handler serving every counter and the step-latency histogram.
// Counter names are prefixed authflow_*_total; the histogram is
// authflow_step_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate orchestrator state.
package prometheus
