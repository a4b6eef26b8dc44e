package auth

import (
	"testing"
	"time"
)

func TestIssueAndValidateToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.IssueToken("user-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", claims.Subject)
	}
	if claims.ProjectID != "" {
		t.Fatalf("expected no project scoping on a session token, got %s", claims.ProjectID)
	}
}

func TestIssueProjectTokenCarriesProjectID(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.IssueProjectToken("user-1", "project-9")
	if err != nil {
		t.Fatalf("issue project token: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.ProjectID != "project-9" {
		t.Fatalf("expected project-9, got %s", claims.ProjectID)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	token, _ := issuer.IssueToken("user-1")
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Fatal("expected validation to fail with a mismatched secret")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatal("expected verification to succeed with the original password")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Fatal("expected verification to fail with a wrong password")
	}
}
