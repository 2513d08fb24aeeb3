// Package session owns the process-wide authenticated-session state: the
// current [Identity] snapshot, the loading flag, and the lifecycle operations
// (Bootstrap, Refresh, Logout) that are the only writers of that state.
//
// # Ordering
//
// Refresh calls are numbered monotonically. A refresh response is applied
// only if no later refresh has already been applied, so a slow in-flight
// fetch can never regress the state to a stale snapshot. The same generation
// number guards the optional Redis snapshot cache: the cache write is
// compare-and-set on generation inside a Lua script.
//
// # Binary encoding
//
// Cached snapshots are stored in a compact versioned binary format (schema
// v1). The encoder is append-only: future versions add fields but never
// reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns session state and its persistence. It does NOT issue
// provider requests itself (those go through the injected [IdentityClient])
// and it does NOT make admission decisions — that belongs to middleware.
//
// # What this package must NOT do
//
//   - Import authflow or middleware (no upward imports).
//   - Persist credentials — only the already-public identity snapshot is cached.
//   - Surface bootstrap failures as errors to the application shell.
package session
