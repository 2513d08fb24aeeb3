//go:build integration
// +build integration

package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	authflow "github.com/Lasse-numerous/prisme-saas"
)

// fakeProvider speaks the full multi-step flow contract over real HTTP:
// login with an optional TOTP step, recovery with token resume, signup with
// email verification, cookie sessions, identity fetch, and logout.
type fakeProvider struct {
	mu sync.Mutex

	totpEnrolled  bool
	emailVerified bool

	next     int
	flows    map[string]*flowState
	sessions map[string]bool
	resent   int
}

type flowState struct {
	kind       string
	identified string
	passworded bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		emailVerified: true,
		flows:         make(map[string]*flowState),
		sessions:      make(map[string]bool),
	}
}

const (
	fakeEmail    = "alice@example.com"
	fakePassword = "correct-horse"
	fakeTOTP     = "123456"
	recoveryLink = "emailed-recovery-token"
)

func (p *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	for _, kind := range []string{"login", "signup", "recovery"} {
		kind := kind
		mux.HandleFunc("POST /api/auth/flow/"+kind+"/start", func(w http.ResponseWriter, r *http.Request) {
			p.start(w, kind)
		})
		mux.HandleFunc("POST /api/auth/flow/"+kind+"/submit", func(w http.ResponseWriter, r *http.Request) {
			p.submit(w, r, kind)
		})
	}
	mux.HandleFunc("POST /api/auth/flow/recovery/verify-token", p.verifyToken)
	mux.HandleFunc("POST /api/auth/flow/signup/resend-email", p.resendEmail)
	mux.HandleFunc("GET /api/auth/me", p.me)
	mux.HandleFunc("POST /api/auth/logout", p.logout)
	return mux
}

func (p *fakeProvider) newFlow(kind string) string {
	p.next++
	token := fmt.Sprintf("%s-flow-%d", kind, p.next)
	p.flows[token] = &flowState{kind: kind}
	return token
}

func (p *fakeProvider) start(w http.ResponseWriter, kind string) {
	p.mu.Lock()
	token := p.newFlow(kind)
	p.mu.Unlock()
	writeJSON(w, map[string]any{
		"flow_token": token,
		"challenge":  map[string]any{"type": "identification"},
	})
}

func (p *fakeProvider) submit(w http.ResponseWriter, r *http.Request, kind string) {
	var req struct {
		FlowToken string         `json:"flow_token"`
		Data      map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "bad request")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	flow, ok := p.flows[req.FlowToken]
	if !ok || flow.kind != kind {
		httpError(w, http.StatusNotFound, "Flow token expired")
		return
	}

	if uid, found := req.Data["uid_field"].(string); found {
		flow.identified = uid
		writeJSON(w, map[string]any{
			"completed": false,
			"challenge": map[string]any{"type": "password"},
		})
		return
	}

	if pw, found := req.Data["password"].(string); found {
		if kind == "recovery" {
			// Password reset: accept and finish without an identity payload.
			delete(p.flows, req.FlowToken)
			writeJSON(w, map[string]any{"completed": true})
			return
		}
		if flow.identified != fakeEmail || pw != fakePassword {
			writeJSON(w, map[string]any{"completed": false, "error": "Invalid credentials"})
			return
		}
		if !p.emailVerified {
			writeJSON(w, map[string]any{
				"completed": false,
				"challenge": map[string]any{"type": "email_verification"},
			})
			return
		}
		flow.passworded = true
		if p.totpEnrolled {
			writeJSON(w, map[string]any{
				"completed": false,
				"challenge": map[string]any{"type": "totp_verify"},
			})
			return
		}
		p.completeLocked(w, req.FlowToken)
		return
	}

	if code, found := req.Data["code"].(string); found {
		if !flow.passworded {
			httpError(w, http.StatusUnprocessableEntity, "step out of order")
			return
		}
		if code != fakeTOTP {
			writeJSON(w, map[string]any{"completed": false, "error": "Invalid code"})
			return
		}
		p.completeLocked(w, req.FlowToken)
		return
	}

	writeJSON(w, map[string]any{"completed": false, "error": "unexpected step data"})
}

func (p *fakeProvider) completeLocked(w http.ResponseWriter, flowToken string) {
	delete(p.flows, flowToken)
	sid := "sess-" + flowToken
	p.sessions[sid] = true
	http.SetCookie(w, &http.Cookie{Name: "session", Value: sid, Path: "/"})
	writeJSON(w, map[string]any{"completed": true, "user": fakeUser()})
}

func (p *fakeProvider) verifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token != recoveryLink {
		httpError(w, http.StatusUnprocessableEntity, "Invalid or expired recovery token")
		return
	}
	p.mu.Lock()
	token := p.newFlow("recovery")
	p.mu.Unlock()
	writeJSON(w, map[string]any{"flow_token": token})
}

func (p *fakeProvider) resendEmail(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.resent++
	p.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (p *fakeProvider) me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session")
	p.mu.Lock()
	authed := err == nil && p.sessions[cookie.Value]
	p.mu.Unlock()
	if !authed {
		httpError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, fakeUser())
}

func (p *fakeProvider) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("session"); err == nil {
		p.mu.Lock()
		delete(p.sessions, cookie.Value)
		p.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

func fakeUser() map[string]any {
	return map[string]any{
		"id":        1,
		"email":     fakeEmail,
		"username":  "alice",
		"roles":     []string{"admin"},
		"is_active": true,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func newIntegrationAuth(t *testing.T, provider *fakeProvider) (*authflow.Authenticator, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(provider.handler())
	t.Cleanup(srv.Close)

	cfg := authflow.DefaultConfig()
	cfg.API.BaseURL = srv.URL

	auth, err := authflow.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(auth.Close)

	return auth, srv
}
