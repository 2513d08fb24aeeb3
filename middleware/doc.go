// Package middleware exposes the HTTP route guard built on the session
// store's snapshot state.
//
// # Guards
//
//   - [Guard] — configurable guard: authentication plus optional any-of roles.
//   - [RequireAuthenticated] — authentication only.
//   - [RequireRoles] — authentication plus roles.
//
// Each guard waits for session bootstrap to resolve, evaluates the snapshot
// with [Decide], and either admits the request (injecting the identity into
// the context), redirects anonymous users to the login page with a "next"
// parameter, or answers 403 for a missing role.
//
// # Architecture boundaries
//
// This package translates session snapshots into HTTP semantics. The policy
// itself is the pure function [Decide]; non-HTTP frontends call it directly.
//
// # What this package must NOT do
//
//   - Call the provider API (the session store owns all I/O).
//   - Inspect cookies or tokens (identity comes from the store snapshot).
//   - Mutate session state.
package middleware
