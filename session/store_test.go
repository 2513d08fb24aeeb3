package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// blockingClient lets a test decide when each FetchIdentity call returns and
// with what.
type blockingClient struct {
	mu        sync.Mutex
	calls     int
	logouts   int
	logoutErr error
	pending   chan fetchReply
}

type fetchReply struct {
	ident *Identity
	err   error
}

func newBlockingClient() *blockingClient {
	return &blockingClient{pending: make(chan fetchReply, 16)}
}

func (c *blockingClient) FetchIdentity(ctx context.Context) (*Identity, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	select {
	case reply := <-c.pending:
		return reply.ident, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *blockingClient) Logout(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logouts++
	return c.logoutErr
}

func (c *blockingClient) fetchCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func ident(id int64, email string) *Identity {
	return &Identity{ID: id, Email: email, Username: email, Active: true}
}

func TestBootstrapSkipsPublicRoutes(t *testing.T) {
	client := newBlockingClient()
	store := NewStore(client, Options{PublicRoutes: []string{"/login", "/"}})

	store.Bootstrap(context.Background(), "/login")

	select {
	case <-store.Ready():
	default:
		t.Fatal("store must be ready after public-route bootstrap")
	}
	if client.fetchCalls() != 0 {
		t.Fatalf("public route must not probe, got %d calls", client.fetchCalls())
	}
	if snap := store.Snapshot(); snap.Authenticated() || snap.Loading {
		t.Fatalf("expected settled anonymous snapshot, got %+v", snap)
	}
}

func TestBootstrapAnonymousOn401(t *testing.T) {
	client := newBlockingClient()
	client.pending <- fetchReply{err: ErrAnonymous}
	store := NewStore(client, Options{})

	store.Bootstrap(context.Background(), "/dashboard")

	if snap := store.Snapshot(); snap.Authenticated() {
		t.Fatalf("expected anonymous, got %+v", snap)
	}
	if client.fetchCalls() != 1 {
		t.Fatalf("401 must not be retried, got %d calls", client.fetchCalls())
	}
}

func TestBootstrapRetriesTransientFailure(t *testing.T) {
	client := newBlockingClient()
	client.pending <- fetchReply{err: errors.New("connection refused")}
	client.pending <- fetchReply{ident: ident(1, "alice@example.com")}
	store := NewStore(client, Options{
		BootstrapRetries: 2,
		BootstrapBackoff: time.Millisecond,
	})

	store.Bootstrap(context.Background(), "/dashboard")

	snap := store.Snapshot()
	if !snap.Authenticated() || snap.User.ID != 1 {
		t.Fatalf("expected authenticated after retry, got %+v", snap)
	}
	if client.fetchCalls() != 2 {
		t.Fatalf("expected 2 fetches, got %d", client.fetchCalls())
	}
}

func TestBootstrapSwallowsPersistentFailure(t *testing.T) {
	var warned bool
	client := newBlockingClient()
	client.pending <- fetchReply{err: errors.New("boom")}
	client.pending <- fetchReply{err: errors.New("boom")}
	store := NewStore(client, Options{
		BootstrapRetries: 1,
		BootstrapBackoff: time.Millisecond,
		Warnf:            func(string, ...any) { warned = true },
	})

	store.Bootstrap(context.Background(), "/dashboard")

	select {
	case <-store.Ready():
	default:
		t.Fatal("store must resolve ready even when bootstrap fails")
	}
	if snap := store.Snapshot(); snap.Authenticated() || snap.Loading {
		t.Fatalf("expected settled anonymous snapshot, got %+v", snap)
	}
	if !warned {
		t.Fatal("swallowed failure must be surfaced through Warnf")
	}
}

// orderedClient assigns each fetch call its own reply channel so a test can
// answer specific in-flight fetches out of order.
type orderedClient struct {
	mu    sync.Mutex
	chans []chan fetchReply
}

func (c *orderedClient) FetchIdentity(ctx context.Context) (*Identity, error) {
	ch := make(chan fetchReply, 1)
	c.mu.Lock()
	c.chans = append(c.chans, ch)
	c.mu.Unlock()
	select {
	case reply := <-ch:
		return reply.ident, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *orderedClient) Logout(context.Context) error { return nil }

func (c *orderedClient) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chans)
}

func (c *orderedClient) reply(call int, r fetchReply) {
	c.mu.Lock()
	ch := c.chans[call]
	c.mu.Unlock()
	ch <- r
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRefreshLastIssuedWins(t *testing.T) {
	client := &orderedClient{}
	var mu sync.Mutex
	var discarded int
	store := NewStore(client, Options{
		OnEvent: func(event string, _ bool, _ error) {
			if event == "session_refresh_discarded" {
				mu.Lock()
				discarded++
				mu.Unlock()
			}
		},
	})

	ctx := context.Background()
	var wg sync.WaitGroup

	// Refresh A is issued first; its response will arrive last.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.Refresh(ctx)
	}()
	waitFor(t, func() bool { return client.inFlight() == 1 })

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.Refresh(ctx)
	}()
	waitFor(t, func() bool { return client.inFlight() == 2 })

	// Newer refresh B lands first, then stale A.
	client.reply(1, fetchReply{ident: ident(2, "newer@example.com")})
	waitFor(t, func() bool { return store.Snapshot().User != nil })
	client.reply(0, fetchReply{ident: ident(1, "older@example.com")})
	wg.Wait()

	snap := store.Snapshot()
	if snap.User == nil || snap.User.ID != 2 {
		t.Fatalf("stale response must be discarded, got %+v", snap.User)
	}
	mu.Lock()
	defer mu.Unlock()
	if discarded != 1 {
		t.Fatalf("expected 1 discarded refresh, got %d", discarded)
	}
}

func TestBootstrapYieldsToNewerRefresh(t *testing.T) {
	client := &orderedClient{}
	var mu sync.Mutex
	var discarded bool
	store := NewStore(client, Options{
		OnEvent: func(event string, _ bool, _ error) {
			if event == "session_bootstrap_discarded" {
				mu.Lock()
				discarded = true
				mu.Unlock()
			}
		},
	})

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Bootstrap(ctx, "/dashboard")
	}()
	waitFor(t, func() bool { return client.inFlight() == 1 })

	// A login completes while the bootstrap probe is still on the wire.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.Refresh(ctx)
	}()
	waitFor(t, func() bool { return client.inFlight() == 2 })
	client.reply(1, fetchReply{ident: ident(2, "fresh@example.com")})
	wg.Wait()

	// The probe's older response lands last; it must not win.
	client.reply(0, fetchReply{ident: ident(1, "stale@example.com")})
	<-done

	snap := store.Snapshot()
	if snap.User == nil || snap.User.ID != 2 {
		t.Fatalf("bootstrap response overwrote a newer refresh: %+v", snap.User)
	}
	mu.Lock()
	defer mu.Unlock()
	if !discarded {
		t.Fatal("expected the stale bootstrap response to be reported discarded")
	}
}

func TestRefreshAnonymousClearsUser(t *testing.T) {
	client := newBlockingClient()
	store := NewStore(client, Options{})

	client.pending <- fetchReply{ident: ident(1, "alice@example.com")}
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if !store.Snapshot().Authenticated() {
		t.Fatal("expected authenticated")
	}

	client.pending <- fetchReply{err: ErrAnonymous}
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("anonymous refresh must not error: %v", err)
	}
	if store.Snapshot().Authenticated() {
		t.Fatal("expected anonymous after 401 refresh")
	}
}

func TestLogoutClearsLocallyWhenProviderFails(t *testing.T) {
	client := newBlockingClient()
	client.logoutErr = errors.New("network down")
	store := NewStore(client, Options{})

	client.pending <- fetchReply{ident: ident(1, "alice@example.com")}
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	store.Logout(context.Background())

	if store.Snapshot().Authenticated() {
		t.Fatal("local state must be cleared even when provider logout fails")
	}
	if client.logouts != 1 {
		t.Fatalf("expected one logout call, got %d", client.logouts)
	}
}

func TestLogoutInvalidatesInFlightRefresh(t *testing.T) {
	client := newBlockingClient()
	store := NewStore(client, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Refresh(context.Background())
	}()
	for client.fetchCalls() == 0 {
		time.Sleep(time.Millisecond)
	}

	store.Logout(context.Background())

	// The refresh response lands after logout; it must be discarded.
	client.pending <- fetchReply{ident: ident(1, "alice@example.com")}
	<-done

	if store.Snapshot().Authenticated() {
		t.Fatal("refresh response from before logout must not resurrect the session")
	}
}

func TestWatchObservesChanges(t *testing.T) {
	client := newBlockingClient()
	store := NewStore(client, Options{})

	var mu sync.Mutex
	var seen []bool
	store.Watch(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap.Authenticated())
		mu.Unlock()
	})

	client.pending <- fetchReply{ident: ident(1, "alice@example.com")}
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("watcher not notified")
	}
	if !seen[len(seen)-1] {
		t.Fatal("final notification must be authenticated")
	}
}

func TestDisposedStoreRejectsRefresh(t *testing.T) {
	client := newBlockingClient()
	store := NewStore(client, Options{})
	store.Dispose()

	if err := store.Refresh(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
	select {
	case <-store.Ready():
	default:
		t.Fatal("dispose must release Ready waiters")
	}
}

func TestSnapshotIsolatesIdentity(t *testing.T) {
	client := newBlockingClient()
	store := NewStore(client, Options{})

	client.pending <- fetchReply{ident: ident(1, "alice@example.com")}
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	snap := store.Snapshot()
	snap.User.Email = "mutated@example.com"
	if store.Snapshot().User.Email != "alice@example.com" {
		t.Fatal("snapshot mutation leaked into store state")
	}
}
