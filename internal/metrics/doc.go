// Package metrics implements lock-free in-process counters and a fixed-bucket
// latency histogram for flow, session, and guard operations.
//
// All instruments are atomic and allocation-free on the hot path; Snapshot
// produces a deep copy for exporters. When disabled, every operation is a
// no-op.
//
// # Architecture boundaries
//
// This package owns counting only. Metric meaning and emission sites belong
// to the root package; rendering belongs to metrics/export.
//
// # What this package must NOT do
//
//   - Import authflow or any sibling internal package.
//   - Perform I/O.
package metrics
