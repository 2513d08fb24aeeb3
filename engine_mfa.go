package authflow

import (
	"context"
	"sync"
)

// SubmitTOTP validates a one-time code locally and submits it as the
// current step. Anything other than exactly the configured number of ASCII
// digits is rejected with [ErrInvalidCode] before any network traffic; the
// provider only ever sees well-formed codes.
func (e *Engine) SubmitTOTP(ctx context.Context, code string) error {
	e.mu.Lock()
	onTOTP := e.state == StateAwaitingStep &&
		e.challenge != nil &&
		e.challenge.Type.Normalize() == ChallengeTOTPVerify
	e.mu.Unlock()
	if !onTOTP {
		return ErrFlowNotReady
	}

	if !validTOTPCode(code, e.mfa.CodeDigits) {
		e.metrics.Inc(MetricTOTPRejectedLocal)
		return ErrInvalidCode
	}

	e.metrics.Inc(MetricTOTPSubmitted)
	return e.Submit(ctx, map[string]any{"code": code})
}

func validTOTPCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// CodeCollector assembles a TOTP code from per-keystroke input and
// auto-submits through the engine the moment the final digit arrives.
// Non-digit input is stripped, excess digits are ignored, and each complete
// entry submits exactly once; Reset arms the collector for another attempt
// after a rejection.
//
// Safe for concurrent use, though input is expected from one goroutine.
type CodeCollector struct {
	engine *Engine
	digits int

	mu        sync.Mutex
	buf       []byte
	submitted bool
}

// NewCodeCollector creates a collector bound to the engine's TOTP step.
func (e *Engine) NewCodeCollector() *CodeCollector {
	return &CodeCollector{
		engine: e,
		digits: e.mfa.CodeDigits,
		buf:    make([]byte, 0, e.mfa.CodeDigits),
	}
}

// Code returns the digits collected so far.
func (c *CodeCollector) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.buf)
}

// Push feeds raw input (a keystroke or a paste) into the collector. It
// returns the engine's submission result when this input completed the
// code, and nil otherwise.
func (c *CodeCollector) Push(ctx context.Context, input string) error {
	c.mu.Lock()
	if c.submitted {
		c.mu.Unlock()
		return nil
	}
	for i := 0; i < len(input) && len(c.buf) < c.digits; i++ {
		if input[i] >= '0' && input[i] <= '9' {
			c.buf = append(c.buf, input[i])
		}
	}
	if len(c.buf) < c.digits {
		c.mu.Unlock()
		return nil
	}
	c.submitted = true
	code := string(c.buf)
	c.mu.Unlock()

	return c.engine.SubmitTOTP(ctx, code)
}

// Backspace removes the last collected digit.
func (c *CodeCollector) Backspace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.submitted && len(c.buf) > 0 {
		c.buf = c.buf[:len(c.buf)-1]
	}
}

// Reset clears the collector for a fresh attempt.
func (c *CodeCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = c.buf[:0]
	c.submitted = false
}
