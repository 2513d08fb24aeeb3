// Package otel provides OpenTelemetry metric exporter bindings for the
// orchestrator's counters and latency histogram.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per histogram bucket. A single callback reads
// [authflow.Authenticator.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate orchestrator state.
package otel
