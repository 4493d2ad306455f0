package auth

import (
	"testing"
	"time"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	token, expiresAt, err := tm.GenerateToken(42, domain.RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("token already expired at issue time")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	userID, err := claims.UserID()
	if err != nil || userID != 42 {
		t.Errorf("subject = %d (%v), want 42", userID, err)
	}
	if claims.Role != domain.RoleOperator {
		t.Errorf("role = %q, want operator", claims.Role)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", 5)
	verifier := NewTokenManager("secret-b", 5)

	token, _, err := issuer.GenerateToken(1, domain.RoleClient)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Error("token signed with another secret was accepted")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	if _, err := tm.ParseToken("not.a.token"); err == nil {
		t.Error("garbage token was accepted")
	}
}
