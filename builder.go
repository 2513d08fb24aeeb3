package authflow

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/Lasse-numerous/prisme-saas/internal/audit"
	internalmetrics "github.com/Lasse-numerous/prisme-saas/internal/metrics"
	"github.com/Lasse-numerous/prisme-saas/session"
)

// Builder assembles an [Authenticator]. Configure during initialization,
// call Build once, treat the result as immutable.
type Builder struct {
	config     Config
	httpClient *http.Client
	redis      *redis.Client
	auditSink  AuditSink
	warnf      func(format string, args ...any)
	built      bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the provider API base URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithHTTPClient supplies the http.Client used for every provider call.
// A cookie jar is added if the client has none.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithRedis enables the cross-process session snapshot cache. Optional;
// without it all session state is in-memory only.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination for audit events. Nil with audit
// enabled falls back to a no-op sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process metrics collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the step-latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithWarnf sets the sink for non-fatal diagnostics (swallowed bootstrap
// failures, cache errors). Nil means silent.
func (b *Builder) WithWarnf(fn func(format string, args ...any)) *Builder {
	b.warnf = fn
	return b
}

// Build validates the configuration and wires the Authenticator.
func (b *Builder) Build() (*Authenticator, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := NewClient(cfg.API, b.httpClient)
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	m := NewMetrics(cfg.Metrics)

	var cache *session.Cache
	if b.redis != nil {
		cache = session.NewCache(b.redis, cfg.Session.CachePrefix, cfg.Session.CacheTTL)
	}

	a := &Authenticator{
		cfg:     cfg,
		client:  client,
		audit:   dispatcher,
		metrics: m,
	}

	a.sessions = session.NewStore(client, session.Options{
		PublicRoutes:     cfg.Session.PublicRoutes,
		LoginURL:         client.FederatedLoginURL(cfg.Session.LoginSource),
		BootstrapRetries: cfg.Session.BootstrapRetries,
		BootstrapBackoff: cfg.Session.BootstrapBackoff,
		Cache:            cache,
		Warnf:            b.warnf,
		OnEvent:          a.sessionEvent,
	})

	b.built = true
	return a, nil
}

// Authenticator is the assembled orchestrator: one shared Client, one
// session Store, and the audit/metrics plumbing, from which per-attempt
// flow engines are created.
//
// Safe for concurrent use.
type Authenticator struct {
	cfg      Config
	client   *Client
	sessions *session.Store
	audit    *internalaudit.Dispatcher
	metrics  *internalmetrics.Metrics
}

// NewFlow creates an engine for one flow attempt of the given kind.
func (a *Authenticator) NewFlow(kind FlowKind, opts ...FlowOption) (*Engine, error) {
	if !kind.valid() {
		return nil, ErrUnknownFlowKind
	}
	return newEngine(a.client, kind, a.cfg.Flow, a.cfg.MFA, a.sessions, a.audit, a.metrics, opts...), nil
}

// Sessions returns the singleton session store.
func (a *Authenticator) Sessions() *session.Store { return a.sessions }

// Client returns the underlying provider client.
func (a *Authenticator) Client() *Client { return a.client }

// Bootstrap resolves the initial session state for the given application
// path. Blocks until resolution; failures resolve to anonymous.
func (a *Authenticator) Bootstrap(ctx context.Context, currentPath string) {
	a.sessions.Bootstrap(ctx, currentPath)
}

// Logout ends the session, provider-side best-effort and locally
// unconditionally.
func (a *Authenticator) Logout(ctx context.Context) {
	a.sessions.Logout(ctx)
}

// MetricsSnapshot returns a point-in-time copy of all metrics.
func (a *Authenticator) MetricsSnapshot() MetricsSnapshot {
	return a.metrics.Snapshot()
}

// Metrics exposes the live metrics instance for exporters.
func (a *Authenticator) Metrics() *Metrics { return a.metrics }

// AuditDropped reports audit events dropped due to a full buffer.
func (a *Authenticator) AuditDropped() uint64 { return a.audit.Dropped() }

// Close drains the audit dispatcher and disposes the session store.
func (a *Authenticator) Close() {
	a.sessions.Dispose()
	a.audit.Close()
}

// sessionEvent forwards session store lifecycle events into metrics and
// the audit stream.
func (a *Authenticator) sessionEvent(event string, success bool, err error) {
	switch event {
	case "session_bootstrap_authenticated":
		a.metrics.Inc(MetricBootstrapAuthenticated)
	case "session_bootstrap_anonymous":
		a.metrics.Inc(MetricBootstrapAnonymous)
	case "session_refresh":
		if success {
			a.metrics.Inc(MetricRefreshApplied)
		}
	case "session_refresh_discarded":
		a.metrics.Inc(MetricRefreshDiscarded)
	case "logout":
		a.metrics.Inc(MetricLogout)
	}

	record := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: event,
		Success:   success,
	}
	if err != nil {
		record.Error = err.Error()
	}
	a.audit.Emit(context.Background(), record)
}
