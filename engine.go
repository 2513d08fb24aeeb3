package authflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	internalaudit "github.com/Lasse-numerous/prisme-saas/internal/audit"
	internalmetrics "github.com/Lasse-numerous/prisme-saas/internal/metrics"
	"github.com/Lasse-numerous/prisme-saas/internal/wire"
)

// flowAPI is the provider surface the engine drives. *Client satisfies it;
// tests may substitute a stub.
type flowAPI interface {
	StartFlow(ctx context.Context, kind FlowKind) (string, Challenge, error)
	SubmitFlow(ctx context.Context, kind FlowKind, flowToken string, data map[string]any) (wire.StepResponse, error)
	VerifyRecoveryToken(ctx context.Context, token string) (string, error)
	ResendVerificationEmail(ctx context.Context, flowToken string) error
}

// sessionRefresher is the only session operation the engine triggers: a
// refresh after terminal success that returned an identity.
type sessionRefresher interface {
	Refresh(ctx context.Context) error
}

// SuccessFunc is invoked exactly once when a flow reaches terminal success,
// after the session store has been refreshed.
type SuccessFunc func(result StepResult)

// Engine drives one provider flow attempt to completion or terminal error.
//
// The engine owns exactly one flow token and the current challenge at a
// time, replaced wholesale on each step. It is an explicit state machine
// ([FlowState]) independent of any rendering layer; a UI reads State,
// Challenge, and LastRejection and calls Start/Submit.
//
// Engine instances are safe for concurrent use, but the protocol itself is
// sequential: a Submit while another is in flight returns
// [ErrSubmitInFlight] rather than racing.
type Engine struct {
	client    flowAPI
	kind      FlowKind
	attemptID string
	cfg       FlowConfig
	mfa       MFAConfig
	sessions  sessionRefresher
	audit     *internalaudit.Dispatcher
	metrics   *internalmetrics.Metrics
	onSuccess SuccessFunc

	mu        sync.Mutex
	state     FlowState
	token     string
	challenge *Challenge
	stepErr   string
	failure   error
	steps     int
	starting  bool
	result    *StepResult
}

// FlowOption configures one Engine instance.
type FlowOption func(*Engine)

// WithSuccessFunc sets the terminal-success callback.
func WithSuccessFunc(fn SuccessFunc) FlowOption {
	return func(e *Engine) { e.onSuccess = fn }
}

func newEngine(client flowAPI, kind FlowKind, cfg FlowConfig, mfa MFAConfig, sessions sessionRefresher,
	dispatcher *internalaudit.Dispatcher, m *internalmetrics.Metrics, opts ...FlowOption) *Engine {
	e := &Engine{
		client:    client,
		kind:      kind,
		attemptID: uuid.NewString(),
		cfg:       cfg,
		mfa:       mfa,
		sessions:  sessions,
		audit:     dispatcher,
		metrics:   m,
		state:     StateInitializing,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Kind returns the flow kind this engine drives.
func (e *Engine) Kind() FlowKind { return e.kind }

// AttemptID is the engine-local correlation ID used in audit events. It is
// never the provider's flow token.
func (e *Engine) AttemptID() string { return e.attemptID }

// State returns the current state machine value.
func (e *Engine) State() FlowState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// FlowToken returns the provider-issued token for the current attempt, or
// "" before Start succeeds.
func (e *Engine) FlowToken() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// Challenge returns the challenge awaiting input, or nil outside
// [StateAwaitingStep] (the email-verification gate retains its challenge for
// the resend affordance).
func (e *Engine) Challenge() *Challenge {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.challenge == nil {
		return nil
	}
	ch := *e.challenge
	return &ch
}

// LastRejection returns the provider's most recent step rejection message,
// verbatim, or "" when the current challenge has not been rejected.
func (e *Engine) LastRejection() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepErr
}

// Err returns the terminal failure reason when State is [StateFailed].
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}

// Result returns the terminal result when State is [StateCompleted].
func (e *Engine) Result() *StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return nil
	}
	res := *e.result
	return &res
}

// Start begins (or, from [StateFailed], retries) the flow: it requests a
// fresh flow token and the first challenge. A retry replaces the token
// wholesale; nothing of the failed attempt is reused.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.starting {
		e.mu.Unlock()
		return ErrSubmitInFlight
	}
	if e.state != StateInitializing && e.state != StateFailed {
		e.mu.Unlock()
		return ErrFlowTerminated
	}
	e.state = StateInitializing
	e.starting = true
	e.token = ""
	e.challenge = nil
	e.stepErr = ""
	e.failure = nil
	e.steps = 0
	e.mu.Unlock()

	token, ch, err := e.client.StartFlow(ctx, e.kind)

	e.mu.Lock()
	e.starting = false
	if err != nil {
		e.state = StateFailed
		e.failure = err
		e.mu.Unlock()
		e.metrics.Inc(MetricFlowStartFailed)
		e.emit(ctx, "flow_start", false, err, "")
		return err
	}
	e.token = token
	e.mu.Unlock()

	e.metrics.Inc(MetricFlowStarted)
	e.emit(ctx, "flow_start", true, nil, string(ch.Type))
	return e.applyResponse(ctx, wire.StepResponse{Challenge: &ch})
}

// Submit sends one step of data to the provider and applies the resulting
// transition. From [StateAwaitingStep] only; the transient
// [StateSubmitting] rejects overlapping submissions.
//
// A recoverable rejection returns a [*StepRejectionError] and leaves the
// engine in [StateAwaitingStep] with the same token and challenge. A
// transport failure also returns to [StateAwaitingStep], with a generic
// message. Terminal outcomes move to [StateCompleted] or [StateFailed].
func (e *Engine) Submit(ctx context.Context, data map[string]any) error {
	e.mu.Lock()
	switch e.state {
	case StateSubmitting:
		e.mu.Unlock()
		return ErrSubmitInFlight
	case StateCompleted, StateFailed:
		e.mu.Unlock()
		return ErrFlowTerminated
	case StateInitializing:
		e.mu.Unlock()
		return ErrFlowNotReady
	}
	if e.steps >= e.cfg.MaxSteps {
		e.state = StateFailed
		e.failure = ErrStepLimit
		e.mu.Unlock()
		e.metrics.Inc(MetricFlowFailed)
		e.emit(ctx, "flow_failed", false, ErrStepLimit, "")
		return ErrStepLimit
	}
	e.steps++
	e.state = StateSubmitting
	e.stepErr = ""
	token := e.token
	e.mu.Unlock()

	started := time.Now()
	resp, err := e.client.SubmitFlow(ctx, e.kind, token, data)
	e.metrics.ObserveStepLatency(time.Since(started))

	if err != nil {
		e.mu.Lock()
		e.state = StateAwaitingStep
		e.stepErr = "request failed, please try again"
		e.mu.Unlock()
		e.emit(ctx, "flow_step", false, err, "")
		return fmt.Errorf("submit step: %w", err)
	}
	e.metrics.Inc(MetricStepSubmitted)
	return e.applyResponse(ctx, resp)
}

// applyResponse classifies a step response and performs the transition.
// Precedence and the protocol-violation rule live in wire.Interpret; the
// flow-kind-specific gates (email verification, access denied) live here.
func (e *Engine) applyResponse(ctx context.Context, resp wire.StepResponse) error {
	outcome, msg := wire.Interpret(resp)

	switch outcome {
	case wire.OutcomeCompleted:
		return e.complete(ctx, resp, msg)

	case wire.OutcomeRejected:
		e.mu.Lock()
		e.state = StateAwaitingStep
		e.stepErr = msg
		e.mu.Unlock()
		e.metrics.Inc(MetricStepRejected)
		e.emit(ctx, "flow_step", false, nil, "")
		return &StepRejectionError{Message: msg}

	case wire.OutcomeChallenge:
		return e.acceptChallenge(ctx, *resp.Challenge)

	default: // wire.OutcomeViolation
		e.mu.Lock()
		e.state = StateFailed
		e.failure = ErrProtocolViolation
		e.mu.Unlock()
		e.metrics.Inc(MetricProtocolViolation)
		e.metrics.Inc(MetricFlowFailed)
		e.emit(ctx, "flow_failed", false, ErrProtocolViolation, "")
		return ErrProtocolViolation
	}
}

func (e *Engine) complete(ctx context.Context, resp wire.StepResponse, redirectTo string) error {
	res := StepResult{
		Completed:  true,
		RedirectTo: redirectTo,
		User:       resp.User,
	}

	e.mu.Lock()
	e.state = StateCompleted
	e.challenge = nil
	e.result = &res
	cb := e.onSuccess
	e.mu.Unlock()

	e.metrics.Inc(MetricFlowCompleted)
	e.emit(ctx, "flow_completed", true, nil, "")

	// Session refresh happens before the success callback so the callback
	// observes the authenticated state. Completion without a user (recovery
	// mid-flight) skips the refresh but still counts as success.
	if resp.User != nil && e.sessions != nil {
		_ = e.sessions.Refresh(ctx)
	}
	if cb != nil {
		cb(res)
	}
	return nil
}

// acceptChallenge switches exhaustively over the closed challenge set so a
// new provider stage is a visible gap here, not a silent no-op.
func (e *Engine) acceptChallenge(ctx context.Context, ch Challenge) error {
	switch ch.Type.Normalize() {
	case ChallengeEmailVerification:
		if e.kind == FlowLogin {
			// Soft-terminal gate: no further submission can succeed, but the
			// token and challenge are retained so the resend affordance works.
			e.mu.Lock()
			e.state = StateFailed
			e.failure = ErrEmailUnverified
			e.challenge = &ch
			e.mu.Unlock()
			e.metrics.Inc(MetricEmailVerificationGate)
			e.emit(ctx, "flow_failed", false, ErrEmailUnverified, string(ch.Type))
			return ErrEmailUnverified
		}

	case ChallengeAccessDenied:
		err := ErrAccessDenied
		if ch.Error != "" {
			err = fmt.Errorf("%w: %s", ErrAccessDenied, ch.Error)
		}
		e.mu.Lock()
		e.state = StateFailed
		e.failure = err
		e.challenge = nil
		e.mu.Unlock()
		e.metrics.Inc(MetricFlowFailed)
		e.emit(ctx, "flow_failed", false, err, string(ch.Type))
		return err

	case ChallengeIdentification, ChallengePassword, ChallengeTOTPVerify,
		ChallengeTOTPSetup, ChallengeSourceSelection, ChallengePasswordReset,
		ChallengeUnknown:
		// Fall through to the generic awaiting transition below.

	case ChallengeRedirect:
		// Unreachable: wire.Interpret maps redirect to completion.
	}

	e.mu.Lock()
	e.state = StateAwaitingStep
	e.challenge = &ch
	e.mu.Unlock()
	e.emit(ctx, "flow_step", true, nil, string(ch.Type))
	return nil
}

// SubmitIdentifier submits the identification step and, when the provider
// answers with a password challenge and a password was already collected,
// chains the password submission without returning control — the
// credential pre-submission optimization. Flows whose next challenge is
// something else (TOTP, source selection) fall back to the generic
// one-challenge-per-interaction path untouched.
func (e *Engine) SubmitIdentifier(ctx context.Context, identifier, password string) error {
	if err := e.Submit(ctx, map[string]any{"uid_field": identifier}); err != nil {
		return err
	}
	if password == "" || !e.cfg.ChainCredentialSubmit {
		return nil
	}

	e.mu.Lock()
	chain := e.state == StateAwaitingStep &&
		e.challenge != nil &&
		e.challenge.Type.Normalize() == ChallengePassword
	e.mu.Unlock()
	if !chain {
		return nil
	}

	e.metrics.Inc(MetricCredentialChained)
	e.emit(ctx, "credential_chained", true, nil, string(ChallengePassword))
	return e.Submit(ctx, map[string]any{"password": password})
}

// ResendVerificationEmail re-requests the verification email for the
// current flow token. Valid while the engine holds a token and sits on the
// email-verification gate.
func (e *Engine) ResendVerificationEmail(ctx context.Context) error {
	e.mu.Lock()
	token := e.token
	gated := e.challenge != nil && e.challenge.Type.Normalize() == ChallengeEmailVerification
	e.mu.Unlock()
	if token == "" || !gated {
		return ErrFlowNotReady
	}
	if err := e.client.ResendVerificationEmail(ctx, token); err != nil {
		e.emit(ctx, "verification_resend", false, err, "")
		return err
	}
	e.metrics.Inc(MetricVerificationResent)
	e.emit(ctx, "verification_resend", true, nil, "")
	return nil
}

// ResumeRecovery exchanges an emailed recovery token for a flow token and
// places the engine directly on the password-reset step, skipping the
// identification round. Recovery flows only.
func (e *Engine) ResumeRecovery(ctx context.Context, recoveryToken string) error {
	if e.kind != FlowRecovery {
		return ErrFlowNotReady
	}
	e.mu.Lock()
	if e.state != StateInitializing && e.state != StateFailed {
		e.mu.Unlock()
		return ErrFlowTerminated
	}
	e.mu.Unlock()

	token, err := e.client.VerifyRecoveryToken(ctx, recoveryToken)
	if err != nil {
		e.mu.Lock()
		e.state = StateFailed
		e.failure = err
		e.mu.Unlock()
		e.metrics.Inc(MetricFlowStartFailed)
		e.emit(ctx, "recovery_resume", false, err, "")
		return err
	}

	e.mu.Lock()
	e.token = token
	e.failure = nil
	e.stepErr = ""
	e.mu.Unlock()

	e.metrics.Inc(MetricFlowStarted)
	e.emit(ctx, "recovery_resume", true, nil, string(ChallengePasswordReset))
	return e.acceptChallenge(ctx, Challenge{Type: ChallengePasswordReset})
}

func (e *Engine) emit(ctx context.Context, eventType string, success bool, err error, challenge string) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		FlowKind:  string(e.kind),
		FlowID:    e.attemptID,
		RequestID: requestIDFromContext(ctx),
		Challenge: challenge,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	e.audit.Emit(ctx, event)
}
