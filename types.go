package authflow

import (
	"io"

	internalaudit "github.com/Lasse-numerous/prisme-saas/internal/audit"
	"github.com/Lasse-numerous/prisme-saas/internal/wire"
	"github.com/Lasse-numerous/prisme-saas/session"
)

// FlowKind selects which provider-hosted flow an Engine drives.
type FlowKind string

const (
	// FlowLogin is the interactive sign-in flow.
	FlowLogin FlowKind = "login"
	// FlowRecovery is the password recovery flow.
	FlowRecovery FlowKind = "recovery"
	// FlowSignup is the self-registration flow.
	FlowSignup FlowKind = "signup"
)

func (k FlowKind) valid() bool {
	switch k {
	case FlowLogin, FlowRecovery, FlowSignup:
		return true
	}
	return false
}

// ChallengeType is the closed discriminant of the next required flow step.
type ChallengeType = wire.ChallengeType

const (
	// ChallengeIdentification asks for the account identifier.
	ChallengeIdentification = wire.ChallengeIdentification
	// ChallengePassword asks for the account password.
	ChallengePassword = wire.ChallengePassword
	// ChallengeTOTPVerify asks for a 6-digit one-time code.
	ChallengeTOTPVerify = wire.ChallengeTOTPVerify
	// ChallengeTOTPSetup carries an otpauth:// provisioning URL.
	ChallengeTOTPSetup = wire.ChallengeTOTPSetup
	// ChallengeEmailVerification gates the flow on a clicked email link.
	ChallengeEmailVerification = wire.ChallengeEmailVerification
	// ChallengeSourceSelection offers federated login sources.
	ChallengeSourceSelection = wire.ChallengeSourceSelection
	// ChallengePasswordReset asks for the replacement password.
	ChallengePasswordReset = wire.ChallengePasswordReset
	// ChallengeRedirect is the provider's terminal redirect step.
	ChallengeRedirect = wire.ChallengeRedirect
	// ChallengeAccessDenied is the provider's terminal denial step.
	ChallengeAccessDenied = wire.ChallengeAccessDenied
	// ChallengeUnknown is any type outside the closed set.
	ChallengeUnknown = wire.ChallengeUnknown
)

// Challenge describes what the next flow step requires: the discriminating
// type, optional field descriptors for form rendering, federated source
// options, and an optional error attached to this step.
type Challenge = wire.Challenge

// ChallengeField describes one input the current challenge requires.
type ChallengeField = wire.Field

// FederatedSource is a federated login option (name plus icon).
type FederatedSource = wire.Source

// Identity is the authenticated user's profile snapshot: id, email,
// username, role set, active flag. Immutable; fetched whole on each refresh.
type Identity = session.Identity

// StepResult is the engine's interpretation of one completed flow: terminal
// success, the resulting identity when the provider returned one, and the
// post-completion redirect target when the provider supplied one.
type StepResult struct {
	Completed  bool
	User       *Identity
	RedirectTo string
}

// FlowState is the engine's explicit state machine value, owned
// independently of any rendering layer.
type FlowState uint8

const (
	// StateInitializing means the flow has not been started yet (or a failed
	// start is being retried).
	StateInitializing FlowState = iota
	// StateAwaitingStep means the engine holds a challenge and waits for
	// step data.
	StateAwaitingStep
	// StateSubmitting means a step request is in flight; input must be
	// disabled and further submissions are rejected.
	StateSubmitting
	// StateCompleted is terminal success.
	StateCompleted
	// StateFailed is terminal failure for this flow attempt.
	StateFailed
)

// String returns the lowercase state name.
func (s FlowState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingStep:
		return "awaiting_step"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "invalid"
}

// Terminal reports whether the state is completed or failed.
func (s FlowState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// AuditEvent is a structured audit record emitted at flow and session
// lifecycle boundaries.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
