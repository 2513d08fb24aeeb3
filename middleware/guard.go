package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Lasse-numerous/prisme-saas/session"
)

// Decision is the outcome of evaluating one route against the session state.
type Decision uint8

const (
	// DecisionAllow admits the request.
	DecisionAllow Decision = iota
	// DecisionDefer means the session is still resolving; render nothing
	// yet. A premature redirect here would bounce an authenticated user
	// through the login page on every page load.
	DecisionDefer
	// DecisionRedirect sends the anonymous user to the login page.
	DecisionRedirect
	// DecisionForbid rejects an authenticated user lacking a required role.
	DecisionForbid
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDefer:
		return "defer"
	case DecisionRedirect:
		return "redirect"
	case DecisionForbid:
		return "forbid"
	default:
		return "unknown"
	}
}

// Decide evaluates a session snapshot against a role requirement. It is the
// policy core of the guard, usable directly by non-HTTP frontends.
//
// Role semantics are any-of: an identity holding at least one required role
// passes. An empty requirement needs authentication only.
func Decide(snap session.Snapshot, requiredRoles []string) Decision {
	if snap.Loading {
		return DecisionDefer
	}
	if !snap.Authenticated() {
		return DecisionRedirect
	}
	if len(requiredRoles) > 0 && !snap.User.HasAnyRole(requiredRoles) {
		return DecisionForbid
	}
	return DecisionAllow
}

type identityContextKey struct{}

// IdentityFromContext returns the identity injected by an admitting guard.
func IdentityFromContext(ctx context.Context) (*session.Identity, bool) {
	ident, ok := ctx.Value(identityContextKey{}).(*session.Identity)
	return ident, ok
}

// SessionSource is the session surface the guard reads. *session.Store
// satisfies it.
type SessionSource interface {
	Ready() <-chan struct{}
	Snapshot() session.Snapshot
}

// Options configures a Guard.
type Options struct {
	// LoginPath is the application login page anonymous users are sent to,
	// with the original request URI attached as the "next" query parameter.
	// Defaults to "/login".
	LoginPath string
	// RequiredRoles is the any-of role requirement. Empty requires
	// authentication only.
	RequiredRoles []string
	// OnDecision observes every evaluation, for metrics. Nil means none.
	OnDecision func(Decision)
}

// Guard returns middleware enforcing the session requirement on every
// request. While the session store is still bootstrapping the guard blocks
// on readiness rather than deciding from an indeterminate state; a request
// canceled during that wait gets 503.
func Guard(store SessionSource, opts Options) func(http.Handler) http.Handler {
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-store.Ready():
			case <-r.Context().Done():
				http.Error(w, "session not ready", http.StatusServiceUnavailable)
				return
			}

			snap := store.Snapshot()
			decision := Decide(snap, opts.RequiredRoles)
			if opts.OnDecision != nil {
				opts.OnDecision(decision)
			}

			switch decision {
			case DecisionAllow:
				ctx := context.WithValue(r.Context(), identityContextKey{}, snap.User)
				next.ServeHTTP(w, r.WithContext(ctx))
			case DecisionRedirect:
				http.Redirect(w, r, loginRedirect(opts.LoginPath, r), http.StatusFound)
			case DecisionForbid:
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				// Defer is unreachable after the readiness wait; treat a
				// still-loading snapshot as not ready rather than denying.
				http.Error(w, "session not ready", http.StatusServiceUnavailable)
			}
		})
	}
}

// loginRedirect preserves the originally requested URI so the application
// can return the user there after login.
func loginRedirect(loginPath string, r *http.Request) string {
	target := r.URL.RequestURI()
	if target == "" || target == loginPath {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(target)
}
