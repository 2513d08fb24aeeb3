package authflow

import (
	"errors"
	"net/url"
	"time"
)

// Config defines every tunable of the orchestrator. Configure once through
// [Builder.WithConfig]; treated as immutable after Build.
type Config struct {
	API     APIConfig
	Flow    FlowConfig
	MFA     MFAConfig
	Session SessionConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the provider-facing backend and bounds each request.
type APIConfig struct {
	// BaseURL is the API base all flow paths are relative to,
	// e.g. "https://app.example.com".
	BaseURL string
	// RequestTimeout bounds every individual provider call. A hung request
	// would otherwise pin the flow in Submitting forever.
	RequestTimeout time.Duration
	// UserAgent is sent on every request when non-empty.
	UserAgent string
}

/*
====================================
FLOW CONFIG
====================================
*/

// FlowConfig tunes the flow engine.
type FlowConfig struct {
	// ChainCredentialSubmit enables the login optimization that submits a
	// pre-collected password immediately after the identification step
	// yields a password challenge, without an extra user interaction.
	ChainCredentialSubmit bool
	// MaxSteps aborts a flow that keeps producing challenges without ever
	// terminating.
	MaxSteps int
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig tunes the TOTP second-factor step.
type MFAConfig struct {
	// CodeDigits is the required one-time code length.
	CodeDigits int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes the session store lifecycle.
type SessionConfig struct {
	// PublicRoutes never trigger a bootstrap probe.
	PublicRoutes []string
	// LoginSource is the federated source used by direct-redirect login
	// (Store.LoginURL), e.g. "github".
	LoginSource string
	// BootstrapRetries is the number of extra attempts for transient
	// bootstrap failures before resolving anonymous.
	BootstrapRetries uint64
	// BootstrapBackoff is the base backoff between bootstrap retries.
	BootstrapBackoff time.Duration
	// CachePrefix namespaces the optional Redis snapshot cache.
	CachePrefix string
	// CacheTTL bounds snapshot staleness in the optional cache.
	CacheTTL time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events (counted) instead of blocking when the
	// buffer is full.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process metrics collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production preset: 15s request timeout, credential
// chaining on, audit and metrics enabled.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			RequestTimeout: 15 * time.Second,
		},
		Flow: FlowConfig{
			ChainCredentialSubmit: true,
			MaxSteps:              16,
		},
		MFA: MFAConfig{
			CodeDigits: 6,
		},
		Session: SessionConfig{
			PublicRoutes:     []string{"/login", "/signup", "/forgot-password", "/reset-password", "/"},
			LoginSource:      "github",
			BootstrapRetries: 1,
			BootstrapBackoff: 250 * time.Millisecond,
			CachePrefix:      "authflow",
			CacheTTL:         time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PublicRoutes = append([]string(nil), cfg.Session.PublicRoutes...)
	return out
}

func (c Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: API.BaseURL is required")
	}
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return errors.New("config: API.BaseURL is not a valid URL")
	}
	if c.API.RequestTimeout < 0 {
		return errors.New("config: API.RequestTimeout must not be negative")
	}
	if c.Flow.MaxSteps <= 0 {
		return errors.New("config: Flow.MaxSteps must be positive")
	}
	if c.MFA.CodeDigits != 6 {
		return errors.New("config: MFA.CodeDigits must be 6 (provider contract)")
	}
	return nil
}
