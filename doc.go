// Package authflow drives provider-hosted, multi-step identification flows
// (login, recovery, signup) to completion from the client side, and keeps the
// process-wide authenticated-session state that route guards consume.
//
// The provider is an opaque stateful service reachable only through its HTTP
// flow contract: every flow is addressed by a server-issued token, and every
// step answers with either the next challenge, a step rejection, or terminal
// completion. authflow never interprets tokens, never persists credentials,
// and never retries a flow call on its own.
//
// # Architecture boundaries
//
// authflow is the public surface. It exposes [Authenticator], [Builder],
// [Engine], [Client], [Config], and value types (Challenge, StepResult,
// Identity, etc.). Internal coordination — wire decoding, audit dispatch,
// metrics counters — lives under internal/ and is never exported. Session
// state is owned by the session subpackage; HTTP enforcement by middleware.
//
// # What this package must NOT do
//
//   - Mint, parse, or validate tokens of any kind (flow tokens, recovery
//     tokens, and session cookies are opaque by contract).
//   - Retry provider calls automatically — transient failure surfaces to the
//     caller.
//   - Mutate session state outside the session.Store operations.
package authflow
