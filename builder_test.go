package authflow

import (
	"errors"
	"testing"
)

func TestBuildRequiresBaseURL(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without BaseURL")
	}
}

func TestBuildRejectsReuse(t *testing.T) {
	b := New().WithBaseURL("https://app.example.com")
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestBuildRejectsNonStandardCodeDigits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://app.example.com"
	cfg.MFA.CodeDigits = 4
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected error for non-6 code digits")
	}
}

func TestNewFlowRejectsUnknownKind(t *testing.T) {
	auth, err := New().WithBaseURL("https://app.example.com").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer auth.Close()

	if _, err := auth.NewFlow(FlowKind("sso")); !errors.Is(err, ErrUnknownFlowKind) {
		t.Fatalf("expected ErrUnknownFlowKind, got %v", err)
	}
	engine, err := auth.NewFlow(FlowLogin)
	if err != nil {
		t.Fatalf("NewFlow failed: %v", err)
	}
	if engine.Kind() != FlowLogin {
		t.Fatalf("engine kind = %s", engine.Kind())
	}
	if engine.AttemptID() == "" {
		t.Fatal("expected non-empty attempt ID")
	}
}

func TestLoginURLUsesConfiguredSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://app.example.com"
	cfg.Session.LoginSource = "gitlab"
	auth, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer auth.Close()

	want := "https://app.example.com/api/auth/gitlab/login"
	if got := auth.Sessions().LoginURL(); got != want {
		t.Fatalf("LoginURL = %q, want %q", got, want)
	}
}
