package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/google/uuid"

	"github.com/Lasse-numerous/prisme-saas/internal/wire"
	"github.com/Lasse-numerous/prisme-saas/session"
)

// Client is the thin HTTP wrapper over the provider flow contract. Every
// method is a single request/response: no retries, no token interpretation.
// Session credentials ride on the http.Client's cookie jar; the client never
// manages an auth header itself.
//
// Client instances are safe for concurrent use.
type Client struct {
	base string
	http *http.Client
	ua   string
}

// NewClient creates a Client for the given API base URL. When httpClient is
// nil a dedicated client with a fresh cookie jar and the configured request
// timeout is used; when a client without a jar is supplied, a jar is added
// so ambient session cookies survive across flow steps.
func NewClient(cfg APIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if httpClient.Jar == nil {
		// cookiejar.New only fails on bad options; nil options cannot fail.
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: httpClient,
		ua:   cfg.UserAgent,
	}
}

// StartFlow starts a provider flow of the given kind and returns the issued
// flow token and the first challenge.
func (c *Client) StartFlow(ctx context.Context, kind FlowKind) (string, Challenge, error) {
	var out wire.StartResponse
	path := fmt.Sprintf("/api/auth/flow/%s/start", kind)
	if err := c.post(ctx, path, struct{}{}, &out); err != nil {
		return "", Challenge{}, err
	}
	return out.FlowToken, out.Challenge, nil
}

// SubmitFlow submits one step of data to the flow addressed by flowToken.
func (c *Client) SubmitFlow(ctx context.Context, kind FlowKind, flowToken string, data map[string]any) (wire.StepResponse, error) {
	if data == nil {
		data = map[string]any{}
	}
	var out wire.StepResponse
	path := fmt.Sprintf("/api/auth/flow/%s/submit", kind)
	err := c.post(ctx, path, wire.SubmitRequest{FlowToken: flowToken, Data: data}, &out)
	return out, err
}

// VerifyRecoveryToken exchanges an emailed recovery token for a flow token
// that resumes the recovery flow at the password step.
func (c *Client) VerifyRecoveryToken(ctx context.Context, token string) (string, error) {
	var out wire.VerifyTokenResponse
	err := c.post(ctx, "/api/auth/flow/recovery/verify-token", wire.VerifyTokenRequest{Token: token}, &out)
	if err != nil {
		return "", err
	}
	return out.FlowToken, nil
}

// ResendVerificationEmail asks the provider to resend the signup
// verification email for the given flow.
func (c *Client) ResendVerificationEmail(ctx context.Context, flowToken string) error {
	return c.post(ctx, "/api/auth/flow/signup/resend-email",
		wire.SubmitRequest{FlowToken: flowToken, Data: map[string]any{}}, nil)
}

// FederatedLoginURL returns the browser navigation target for a federated
// source, e.g. "github". Link only; no request is made.
func (c *Client) FederatedLoginURL(source string) string {
	return fmt.Sprintf("%s/api/auth/%s/login", c.base, source)
}

// FetchIdentity fetches the current identity. A 401 answer returns
// [ErrAnonymous]; any identity returned is a fresh, complete snapshot.
func (c *Client) FetchIdentity(ctx context.Context) (*session.Identity, error) {
	var out session.Identity
	if err := c.get(ctx, "/api/auth/me", &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, ErrAnonymous
		}
		return nil, err
	}
	return &out, nil
}

// Logout ends the provider session. Callers treat the result as
// best-effort: local state is cleared regardless.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/api/auth/logout", nil, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	rid := requestIDFromContext(req.Context())
	if rid == "" {
		rid = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", rid)
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var detail wire.ErrorDetail
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		return &APIError{Status: resp.StatusCode, Detail: detail.Detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRequestFailed, err)
	}
	return nil
}
