// Package wire models the provider's flow contract: the envelopes exchanged
// with flow-start/flow-submit endpoints and the interpretation rules that
// collapse a step response into exactly one outcome.
//
// # Interpretation
//
// A step response may carry any combination of completed, error, and
// challenge. [Interpret] resolves the ambiguity with a fixed precedence:
// completed wins over a residual challenge, a step error wins over a
// challenge, and a response carrying none of the three is a protocol
// violation. Redirect-type challenges are terminal and count as completion.
//
// # Architecture boundaries
//
// This package owns envelope shapes and outcome classification. It does NOT
// perform I/O, hold flow state, or decide transitions — those belong to the
// Client and Engine in the root package.
//
// # What this package must NOT do
//
//   - Import authflow or middleware (no upward imports).
//   - Inspect the contents of flow or recovery tokens.
//   - Mutate a response while classifying it.
package wire
