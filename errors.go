package authflow

import (
	"errors"
	"fmt"

	"github.com/Lasse-numerous/prisme-saas/session"
)

var (
	// ErrAnonymous is returned by identity fetches when no session exists.
	// It is the expected unauthenticated case, not a failure.
	ErrAnonymous = session.ErrAnonymous
	// ErrFlowNotReady is returned when an operation needs a challenge the
	// engine does not currently hold.
	ErrFlowNotReady = errors.New("flow not awaiting a step")
	// ErrSubmitInFlight is returned when a step submission is attempted
	// while another one is still in flight.
	ErrSubmitInFlight = errors.New("step submission already in flight")
	// ErrFlowTerminated is returned when submitting to a completed or
	// failed flow.
	ErrFlowTerminated = errors.New("flow already terminal")
	// ErrStepRejected is the sentinel wrapped by [StepRejectionError].
	ErrStepRejected = errors.New("step rejected")
	// ErrProtocolViolation is returned when a step response carries neither
	// completion, an error, nor a challenge. Fatal for the flow attempt.
	ErrProtocolViolation = errors.New("provider response carried no outcome")
	// ErrEmailUnverified is the soft-terminal login gate: the account exists
	// but its email has not been verified. Recovery is the resend action,
	// not another submission.
	ErrEmailUnverified = errors.New("verify your email before continuing")
	// ErrAccessDenied is returned when the provider terminates the flow
	// with an access-denied stage.
	ErrAccessDenied = errors.New("access denied by provider")
	// ErrInvalidCode rejects a one-time code that is not exactly 6 digits,
	// before any network call.
	ErrInvalidCode = errors.New("code must be exactly 6 digits")
	// ErrStepLimit aborts a flow that keeps producing challenges without
	// ever terminating.
	ErrStepLimit = errors.New("flow exceeded step limit")
	// ErrRequestFailed is the sentinel wrapped by [APIError].
	ErrRequestFailed = errors.New("request failed")
	// ErrBuilderUsed is returned by Build on a consumed builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrUnknownFlowKind is returned for a FlowKind outside the closed set.
	ErrUnknownFlowKind = errors.New("unknown flow kind")
)

// StepRejectionError carries the provider's human-readable rejection of one
// flow step. The step is recoverable: the flow token and challenge are
// preserved and the same step may be retried with corrected input.
type StepRejectionError struct {
	Message string
}

func (e *StepRejectionError) Error() string {
	return e.Message
}

func (e *StepRejectionError) Unwrap() error {
	return ErrStepRejected
}

// APIError is a non-2xx provider response. Detail is the server-provided
// message when present; Error falls back to a generic message embedding the
// status code.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed: %d", e.Status)
}

func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}
