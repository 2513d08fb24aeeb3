// Package audit provides the flow audit event model, pluggable sinks, and an
// asynchronous buffered dispatcher.
//
// Events are emitted at flow boundaries (start, step, completion, failure)
// and session lifecycle points (bootstrap, refresh, logout). Dispatch is
// fire-and-forget: a full buffer either blocks briefly or drops (counted),
// depending on configuration, but never fails an authentication operation.
//
// # Architecture boundaries
//
// This package owns event transport only. It does NOT decide which events
// exist or what they mean — emission sites live in the root package and the
// session store.
//
// # What this package must NOT do
//
//   - Import authflow or session (no upward imports).
//   - Include credentials, codes, or tokens in event payloads.
//   - Block an Emit call indefinitely on a slow sink.
package audit
