package internaldefs

import (
	authflow "github.com/Lasse-numerous/prisme-saas"
)

// CounterDef binds one metric ID to its exported name and help text.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs is the canonical export order for all counters. Both
// exporters iterate this list so their output stays aligned.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricFlowStarted, Name: "authflow_flow_started_total", Help: "Flow attempts started."},
	{ID: authflow.MetricFlowStartFailed, Name: "authflow_flow_start_failed_total", Help: "Flow start calls that failed."},
	{ID: authflow.MetricStepSubmitted, Name: "authflow_step_submitted_total", Help: "Flow steps submitted to the provider."},
	{ID: authflow.MetricStepRejected, Name: "authflow_step_rejected_total", Help: "Recoverable step rejections."},
	{ID: authflow.MetricFlowCompleted, Name: "authflow_flow_completed_total", Help: "Flows that reached terminal success."},
	{ID: authflow.MetricFlowFailed, Name: "authflow_flow_failed_total", Help: "Flows that reached terminal failure."},
	{ID: authflow.MetricProtocolViolation, Name: "authflow_protocol_violation_total", Help: "Step responses carrying no outcome."},
	{ID: authflow.MetricEmailVerificationGate, Name: "authflow_email_verification_gate_total", Help: "Logins stopped on an unverified email."},
	{ID: authflow.MetricVerificationResent, Name: "authflow_verification_resent_total", Help: "Verification email resend requests."},
	{ID: authflow.MetricTOTPSubmitted, Name: "authflow_totp_submitted_total", Help: "One-time codes submitted to the provider."},
	{ID: authflow.MetricTOTPRejectedLocal, Name: "authflow_totp_rejected_local_total", Help: "One-time codes rejected before any network call."},
	{ID: authflow.MetricCredentialChained, Name: "authflow_credential_chained_total", Help: "Password submissions chained onto the identification step."},
	{ID: authflow.MetricBootstrapAuthenticated, Name: "authflow_bootstrap_authenticated_total", Help: "Session bootstraps that found a session."},
	{ID: authflow.MetricBootstrapAnonymous, Name: "authflow_bootstrap_anonymous_total", Help: "Session bootstraps that resolved anonymous."},
	{ID: authflow.MetricRefreshApplied, Name: "authflow_refresh_applied_total", Help: "Identity refresh responses applied."},
	{ID: authflow.MetricRefreshDiscarded, Name: "authflow_refresh_discarded_total", Help: "Stale identity refresh responses discarded."},
	{ID: authflow.MetricLogout, Name: "authflow_logout_total", Help: "Logout operations."},
	{ID: authflow.MetricGuardAllowed, Name: "authflow_guard_allowed_total", Help: "Route guard admissions."},
	{ID: authflow.MetricGuardRedirected, Name: "authflow_guard_redirected_total", Help: "Route guard redirects to login."},
	{ID: authflow.MetricGuardForbidden, Name: "authflow_guard_forbidden_total", Help: "Route guard role denials."},
}

// StepLatencyName is the exported name of the step-latency histogram.
const StepLatencyName = "authflow_step_latency_seconds"

// StepLatencyHelp documents the step-latency histogram.
const StepLatencyHelp = "Flow step round-trip latency."

// HistogramBounds are the upper bounds of the step-latency buckets, in
// seconds, matching the core collector's millisecond bounds.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix provides identifier-safe bucket names for backends
// that cannot carry an le label.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}
