package authflow

import (
	internalmetrics "github.com/Lasse-numerous/prisme-saas/internal/metrics"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricFlowStarted counts successful flow-start calls.
	MetricFlowStarted = internalmetrics.MetricFlowStarted
	// MetricFlowStartFailed counts flow-start transport failures.
	MetricFlowStartFailed = internalmetrics.MetricFlowStartFailed
	// MetricStepSubmitted counts flow-submit calls that reached the provider.
	MetricStepSubmitted = internalmetrics.MetricStepSubmitted
	// MetricStepRejected counts recoverable step rejections.
	MetricStepRejected = internalmetrics.MetricStepRejected
	// MetricFlowCompleted counts flows that reached terminal success.
	MetricFlowCompleted = internalmetrics.MetricFlowCompleted
	// MetricFlowFailed counts flows that reached terminal failure.
	MetricFlowFailed = internalmetrics.MetricFlowFailed
	// MetricProtocolViolation counts ambiguous/empty step responses.
	MetricProtocolViolation = internalmetrics.MetricProtocolViolation
	// MetricEmailVerificationGate counts logins stopped on an unverified email.
	MetricEmailVerificationGate = internalmetrics.MetricEmailVerificationGate
	// MetricVerificationResent counts resend-verification-email requests.
	MetricVerificationResent = internalmetrics.MetricVerificationResent
	// MetricTOTPSubmitted counts TOTP codes submitted to the provider.
	MetricTOTPSubmitted = internalmetrics.MetricTOTPSubmitted
	// MetricTOTPRejectedLocal counts codes rejected before any network call.
	MetricTOTPRejectedLocal = internalmetrics.MetricTOTPRejectedLocal
	// MetricCredentialChained counts chained password submissions.
	MetricCredentialChained = internalmetrics.MetricCredentialChained
	// MetricBootstrapAuthenticated counts bootstraps that found a session.
	MetricBootstrapAuthenticated = internalmetrics.MetricBootstrapAuthenticated
	// MetricBootstrapAnonymous counts bootstraps that resolved anonymous.
	MetricBootstrapAnonymous = internalmetrics.MetricBootstrapAnonymous
	// MetricRefreshApplied counts refresh responses applied to the state.
	MetricRefreshApplied = internalmetrics.MetricRefreshApplied
	// MetricRefreshDiscarded counts stale refresh responses discarded by the
	// generation guard.
	MetricRefreshDiscarded = internalmetrics.MetricRefreshDiscarded
	// MetricLogout counts logout operations.
	MetricLogout = internalmetrics.MetricLogout
	// MetricGuardAllowed counts guard admissions.
	MetricGuardAllowed = internalmetrics.MetricGuardAllowed
	// MetricGuardRedirected counts guard redirects to login.
	MetricGuardRedirected = internalmetrics.MetricGuardRedirected
	// MetricGuardForbidden counts role-based denials.
	MetricGuardForbidden = internalmetrics.MetricGuardForbidden
	// MetricStepLatency is the flow-submit round-trip latency histogram.
	MetricStepLatency = internalmetrics.MetricStepLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
