package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrAnonymous is returned by IdentityClient.FetchIdentity when the provider
// answers 401. It is the expected unauthenticated case, not a failure.
var ErrAnonymous = errors.New("no authenticated session")

// ErrDisposed is returned by Store operations after Dispose.
var ErrDisposed = errors.New("session store disposed")

// IdentityClient is the provider surface the store needs: a fresh identity
// fetch and a best-effort logout. The root Client satisfies it.
type IdentityClient interface {
	FetchIdentity(ctx context.Context) (*Identity, error)
	Logout(ctx context.Context) error
}

// Options configures a Store.
type Options struct {
	// PublicRoutes are application paths that must not trigger a bootstrap
	// probe (the login page itself, signup, recovery).
	PublicRoutes []string
	// LoginURL is the provider authorization endpoint used by direct-redirect
	// providers. Exposed verbatim through [Store.LoginURL].
	LoginURL string
	// BootstrapRetries is the number of additional attempts for transient
	// bootstrap failures before resolving anonymous. 401 is never retried.
	BootstrapRetries uint64
	// BootstrapBackoff is the base backoff between bootstrap retries.
	BootstrapBackoff time.Duration

	// Cache is an optional cross-process snapshot cache. Nil disables caching.
	Cache *Cache

	// Warnf receives non-fatal diagnostics (swallowed bootstrap failures,
	// cache write errors). Nil means silent.
	Warnf func(format string, args ...any)
	// OnEvent receives lifecycle notifications for audit dispatch.
	// Nil means none.
	OnEvent func(event string, success bool, err error)
}

// Store holds the singleton session state. All mutation goes through
// Bootstrap, Refresh, and Logout; everything else is read-only.
//
// Store instances are safe for concurrent use.
type Store struct {
	client IdentityClient
	opts   Options

	mu       sync.Mutex
	user     *Identity
	inflight int
	booting  bool
	disposed bool
	issued   uint64 // last refresh generation handed out
	applied  uint64 // highest generation whose response was applied
	watchers []func(Snapshot)

	ready     chan struct{}
	readyOnce sync.Once
}

// NewStore creates a Store around the given identity client. The store is
// inert until Bootstrap runs; Snapshot reports Loading=false, no user.
func NewStore(client IdentityClient, opts Options) *Store {
	if opts.BootstrapBackoff <= 0 {
		opts.BootstrapBackoff = 250 * time.Millisecond
	}
	return &Store{
		client: client,
		opts:   opts,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once Bootstrap has resolved, whether or not it found an
// authenticated session. Guards wait on it instead of flashing a denial.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Snapshot returns the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		User:    cloneIdentity(s.user),
		Loading: s.booting || s.inflight > 0,
	}
}

// Watch registers fn to run after every state change, with the new snapshot.
// Callbacks run outside the store lock and may read the store freely.
func (s *Store) Watch(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// LoginURL returns the provider authorization endpoint for direct-redirect
// login. The caller navigates there; the call stack does not return through
// this module.
func (s *Store) LoginURL() string {
	return s.opts.LoginURL
}

// Bootstrap populates the session state at application start.
//
// On a configured public route it resolves immediately without a probe.
// A 401 resolves to anonymous with no error. Any other failure is retried
// with backoff a bounded number of times and then also resolves to
// anonymous — logged through Warnf, never returned — so a transient backend
// hiccup cannot trap the application in a loading state.
func (s *Store) Bootstrap(ctx context.Context, currentPath string) {
	defer s.markReady()

	if s.isPublicRoute(currentPath) {
		return
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.booting = true
	s.issued++
	gen := s.issued
	s.unlockAndNotify()

	var ident *Identity
	backoff := retry.WithMaxRetries(s.opts.BootstrapRetries,
		retry.NewExponential(s.opts.BootstrapBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		got, ferr := s.client.FetchIdentity(ctx)
		if ferr != nil {
			if errors.Is(ferr, ErrAnonymous) {
				return nil
			}
			return retry.RetryableError(ferr)
		}
		ident = got
		return nil
	})
	if err != nil {
		s.warnf("session bootstrap resolved anonymous: %v", err)
	}

	s.mu.Lock()
	s.booting = false
	// The probe response goes through the same generation guard as Refresh:
	// a flow that completed while the probe was on the wire must not have its
	// fresher identity overwritten by the probe's older one.
	stale := gen <= s.applied
	if !s.disposed && !stale {
		s.applied = gen
		if ident != nil {
			s.user = ident
		}
	}
	s.unlockAndNotify()

	if stale {
		s.event("session_bootstrap_discarded", true, nil)
		return
	}
	if ident != nil {
		s.event("session_bootstrap_authenticated", true, nil)
		s.cachePut(ctx, gen, ident)
	} else {
		s.event("session_bootstrap_anonymous", true, nil)
	}
}

// Refresh unconditionally re-fetches the identity. It is safe to call
// concurrently with itself: responses are applied in issue order and a
// late-arriving response from an earlier call is discarded.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.issued++
	gen := s.issued
	s.inflight++
	s.unlockAndNotify()

	ident, err := s.client.FetchIdentity(ctx)

	s.mu.Lock()
	s.inflight--
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if gen <= s.applied {
		// A newer refresh already landed; this response is stale.
		s.unlockAndNotify()
		s.event("session_refresh_discarded", true, nil)
		return nil
	}
	s.applied = gen
	switch {
	case err == nil:
		s.user = ident
	case errors.Is(err, ErrAnonymous):
		s.user = nil
		err = nil
	}
	var cached *Identity
	if err == nil {
		cached = cloneIdentity(s.user)
	}
	s.unlockAndNotify()

	if err != nil {
		s.event("session_refresh", false, err)
		return err
	}
	s.event("session_refresh", true, nil)
	if cached != nil {
		s.cachePut(ctx, gen, cached)
	}
	return nil
}

// Logout calls the provider logout endpoint and clears the local identity
// unconditionally — the local state must never remain authenticated after a
// user-initiated logout, even when the network call fails.
func (s *Store) Logout(ctx context.Context) {
	err := s.client.Logout(ctx)
	if err != nil {
		s.warnf("logout endpoint failed, clearing local session anyway: %v", err)
	}

	s.mu.Lock()
	s.user = nil
	s.issued++ // any in-flight refresh is now stale
	s.applied = s.issued
	s.unlockAndNotify()

	s.event("logout", err == nil, err)
	if s.opts.Cache != nil {
		if derr := s.opts.Cache.Delete(ctx); derr != nil {
			s.warnf("snapshot cache delete failed: %v", derr)
		}
	}
}

// Dispose tears the store down. Further operations return ErrDisposed or
// no-op; watchers are released. Tied to application stop.
func (s *Store) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.user = nil
	s.watchers = nil
	s.mu.Unlock()
	s.markReady()
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) isPublicRoute(path string) bool {
	for _, p := range s.opts.PublicRoutes {
		if p == path {
			return true
		}
	}
	return false
}

// unlockAndNotify snapshots state and watcher list, releases s.mu, then runs
// the callbacks. Must be called with s.mu held.
func (s *Store) unlockAndNotify() {
	snap := s.snapshotLocked()
	watchers := append(make([]func(Snapshot), 0, len(s.watchers)), s.watchers...)
	s.mu.Unlock()
	for _, fn := range watchers {
		fn(snap)
	}
}

func (s *Store) warnf(format string, args ...any) {
	if s.opts.Warnf != nil {
		s.opts.Warnf(format, args...)
	}
}

func (s *Store) event(name string, success bool, err error) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(name, success, err)
	}
}

func (s *Store) cachePut(ctx context.Context, gen uint64, ident *Identity) {
	if s.opts.Cache == nil || ident == nil {
		return
	}
	if err := s.opts.Cache.Put(ctx, gen, ident); err != nil {
		s.warnf("snapshot cache put failed: %v", err)
	}
}
