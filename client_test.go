package authflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(APIConfig{BaseURL: srv.URL, RequestTimeout: 5 * time.Second}, nil)
	return client, srv
}

func TestStartFlowParsesTokenAndChallenge(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/flow/login/start" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		w.Write([]byte(`{"flow_token":"t1","challenge":{"type":"identification","title":"Sign in"}}`))
	}))

	token, ch, err := client.StartFlow(context.Background(), FlowLogin)
	if err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	if token != "t1" {
		t.Fatalf("token = %q", token)
	}
	if ch.Type != ChallengeIdentification || ch.Title != "Sign in" {
		t.Fatalf("challenge = %+v", ch)
	}
}

func TestRequestIDFromContextIsForwarded(t *testing.T) {
	var got string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{"flow_token":"t1","challenge":{"type":"identification"}}`))
	}))

	ctx := WithRequestID(context.Background(), "req-42")
	if _, _, err := client.StartFlow(ctx, FlowLogin); err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	if got != "req-42" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}

func TestErrorDetailIsParsedVerbatim(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"Flow token expired"}`))
	}))

	_, _, err := client.StartFlow(context.Background(), FlowLogin)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", apiErr.Status)
	}
	if apiErr.Error() != "Flow token expired" {
		t.Fatalf("detail not verbatim: %q", apiErr.Error())
	}
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatal("APIError must unwrap to ErrRequestFailed")
	}
}

func TestErrorWithoutDetailFallsBackToStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`<html>gateway says no</html>`))
	}))

	_, _, err := client.StartFlow(context.Background(), FlowLogin)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Error() != "request failed: 503" {
		t.Fatalf("fallback message = %q", apiErr.Error())
	}
}

func TestFetchIdentityMapsUnauthorizedToAnonymous(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"not authenticated"}`))
	}))

	_, err := client.FetchIdentity(context.Background())
	if !errors.Is(err, ErrAnonymous) {
		t.Fatalf("expected ErrAnonymous, got %v", err)
	}
}

func TestFetchIdentityDecodesUser(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":7,"email":"bob@example.com","username":"bob","roles":["admin","member"],"is_active":true}`))
	}))

	ident, err := client.FetchIdentity(context.Background())
	if err != nil {
		t.Fatalf("FetchIdentity failed: %v", err)
	}
	if ident.ID != 7 || ident.Email != "bob@example.com" || !ident.Active {
		t.Fatalf("identity = %+v", ident)
	}
	if !ident.HasRole("admin") {
		t.Fatal("expected admin role")
	}
}

func TestFederatedLoginURL(t *testing.T) {
	client := NewClient(APIConfig{BaseURL: "https://app.example.com/"}, nil)
	got := client.FederatedLoginURL("github")
	want := "https://app.example.com/api/auth/github/login"
	if got != want {
		t.Fatalf("FederatedLoginURL = %q, want %q", got, want)
	}
}

func TestSubmitFlowSendsTokenAndData(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/flow/recovery/submit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"completed":true}`))
	}))

	resp, err := client.SubmitFlow(context.Background(), FlowRecovery, "t9", map[string]any{"password": "x"})
	if err != nil {
		t.Fatalf("SubmitFlow failed: %v", err)
	}
	if !resp.Completed {
		t.Fatal("expected completed response")
	}
}
