package wire

import "github.com/Lasse-numerous/prisme-saas/session"

// ChallengeType discriminates what the next flow step requires. The set is
// closed: transition logic switches exhaustively over these values and maps
// anything else to [ChallengeUnknown] instead of silently ignoring it.
type ChallengeType string

const (
	// ChallengeIdentification asks for the account identifier (email/username).
	ChallengeIdentification ChallengeType = "identification"
	// ChallengePassword asks for the account password (or a new one during recovery).
	ChallengePassword ChallengeType = "password"
	// ChallengeTOTPVerify asks for a 6-digit time-based one-time code.
	ChallengeTOTPVerify ChallengeType = "totp_verify"
	// ChallengeTOTPSetup carries an otpauth:// provisioning URL for enrolment.
	ChallengeTOTPSetup ChallengeType = "totp_setup"
	// ChallengeEmailVerification gates the flow on a clicked email link.
	ChallengeEmailVerification ChallengeType = "email_verification"
	// ChallengeSourceSelection offers federated login sources.
	ChallengeSourceSelection ChallengeType = "source_selection"
	// ChallengePasswordReset asks for the replacement password during recovery.
	ChallengePasswordReset ChallengeType = "password_reset"
	// ChallengeRedirect is the provider's terminal redirect-to-application step.
	ChallengeRedirect ChallengeType = "redirect"
	// ChallengeAccessDenied is the provider's terminal denial step.
	ChallengeAccessDenied ChallengeType = "access_denied"
	// ChallengeUnknown is any type outside the closed set.
	ChallengeUnknown ChallengeType = "unknown"
)

// Known reports whether t is part of the closed challenge set.
func (t ChallengeType) Known() bool {
	switch t {
	case ChallengeIdentification, ChallengePassword, ChallengeTOTPVerify,
		ChallengeTOTPSetup, ChallengeEmailVerification, ChallengeSourceSelection,
		ChallengePasswordReset, ChallengeRedirect, ChallengeAccessDenied:
		return true
	}
	return false
}

// Normalize maps out-of-set types to [ChallengeUnknown] so switches stay
// exhaustive when the provider grows a new stage component.
func (t ChallengeType) Normalize() ChallengeType {
	if t.Known() {
		return t
	}
	return ChallengeUnknown
}

// Field describes one input the current challenge requires.
type Field struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Source is a federated login option offered by a source-selection challenge.
type Source struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
}

// Challenge is the provider's description of the next required flow step.
type Challenge struct {
	Type           ChallengeType `json:"type"`
	Title          string        `json:"title,omitempty"`
	Fields         []Field       `json:"fields,omitempty"`
	Sources        []Source      `json:"sources,omitempty"`
	PasswordFields bool          `json:"password_fields,omitempty"`
	TOTPURL        string        `json:"totp_url,omitempty"`
	RedirectTo     string        `json:"redirect_to,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// StartResponse is the provider's answer to a flow-start call.
type StartResponse struct {
	FlowToken string    `json:"flow_token"`
	Challenge Challenge `json:"challenge"`
}

// StepResponse is the provider's answer to a flow-submit call.
type StepResponse struct {
	Challenge  *Challenge        `json:"challenge,omitempty"`
	Completed  bool              `json:"completed"`
	User       *session.Identity `json:"user,omitempty"`
	Error      string            `json:"error,omitempty"`
	RedirectTo string            `json:"redirect_to,omitempty"`
}

// SubmitRequest is the body of a flow-submit call.
type SubmitRequest struct {
	FlowToken string         `json:"flow_token"`
	Data      map[string]any `json:"data"`
}

// VerifyTokenRequest is the body of a recovery-token verification call.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse resumes a recovery flow from an emailed token.
type VerifyTokenResponse struct {
	FlowToken string `json:"flow_token"`
}

// ErrorDetail is the provider's non-2xx body shape.
type ErrorDetail struct {
	Detail string `json:"detail"`
}

// Outcome classifies a step response into exactly one continuation signal.
type Outcome uint8

const (
	// OutcomeCompleted is terminal success.
	OutcomeCompleted Outcome = iota
	// OutcomeRejected is a recoverable step rejection; the step may be retried.
	OutcomeRejected
	// OutcomeChallenge continues the flow with the next challenge.
	OutcomeChallenge
	// OutcomeViolation is an ambiguous or empty response; the flow is dead.
	OutcomeViolation
)

// Interpret collapses a step response into one Outcome.
//
// Precedence: completed beats everything (a stray residual challenge is
// ignored), then a step error, then the next challenge. A redirect-type
// challenge is the provider's way of saying the flow finished, so it maps to
// [OutcomeCompleted] with its redirect target. A response carrying none of
// the three signals is [OutcomeViolation].
func Interpret(resp StepResponse) (Outcome, string) {
	if resp.Completed {
		return OutcomeCompleted, resp.RedirectTo
	}
	if resp.Error != "" {
		return OutcomeRejected, resp.Error
	}
	if resp.Challenge != nil {
		if resp.Challenge.Type.Normalize() == ChallengeRedirect {
			to := resp.Challenge.RedirectTo
			if to == "" {
				to = resp.RedirectTo
			}
			return OutcomeCompleted, to
		}
		return OutcomeChallenge, ""
	}
	return OutcomeViolation, ""
}
