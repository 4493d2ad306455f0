package service

import (
	"context"
	"testing"

	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/config"
	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		BcryptCost:            4, // minimum cost keeps the test fast
	}
}

func TestRegisterDefaultsToClientRole(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAuthService(testAuthConfig(), users)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "New@Example.com ",
		Name:     "New User",
		Password: "supersecret",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != domain.RoleClient {
		t.Errorf("role = %q, want client", user.Role)
	}
	if user.Email != "new@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if !user.Active {
		t.Error("new accounts should be active")
	}
	if user.PasswordHash == "supersecret" {
		t.Error("password stored in plaintext")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAuthService(testAuthConfig(), newFakeUserRepo())

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"bad email", RegisterInput{Email: "nope", Name: "Name", Password: "supersecret"}},
		{"short name", RegisterInput{Email: "a@b.com", Name: "x", Password: "supersecret"}},
		{"short password", RegisterInput{Email: "a@b.com", Name: "Name", Password: "short"}},
		{"unknown role", RegisterInput{Email: "a@b.com", Name: "Name", Password: "supersecret", Role: "superuser"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tt.input); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	users := newFakeUserRepo(&domain.User{
		ID: 1, Email: "taken@example.com", Name: "First", Role: domain.RoleClient, Active: true,
	})
	svc := NewAuthService(testAuthConfig(), users)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "taken@example.com",
		Name:     "Second",
		Password: "supersecret",
	})
	if code := errCode(t, err); code != "CONFLICT" {
		t.Errorf("code = %q, want CONFLICT", code)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAuthService(testAuthConfig(), users)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{
		Email:    "op@example.com",
		Name:     "Operator",
		Password: "supersecret",
		Role:     domain.RoleOperator,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, token, _, err := svc.Login(ctx, "op@example.com", "supersecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("login user = %d, want %d", user.ID, registered.ID)
	}

	claims, err := svc.TokenManager().ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	userID, err := claims.UserID()
	if err != nil || userID != registered.ID {
		t.Errorf("token subject = %d (%v), want %d", userID, err, registered.ID)
	}
	if claims.Role != domain.RoleOperator {
		t.Errorf("token role = %q, want operator", claims.Role)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAuthService(testAuthConfig(), users)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{
		Email: "op@example.com", Name: "Operator", Password: "supersecret",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, _, err := svc.Login(ctx, "op@example.com", "wrong"); errCode(t, err) != "UNAUTHORIZED" {
		t.Errorf("wrong password should be unauthorized, got %v", err)
	}
	if _, _, _, err := svc.Login(ctx, "ghost@example.com", "supersecret"); errCode(t, err) != "UNAUTHORIZED" {
		t.Errorf("unknown email should be unauthorized, got %v", err)
	}
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	hash, err := auth.HashPassword("supersecret", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := newFakeUserRepo(&domain.User{
		ID: 1, Email: "gone@example.com", Name: "Gone", Role: domain.RoleClient,
		PasswordHash: hash, Active: false,
	})
	svc := NewAuthService(testAuthConfig(), users)

	if _, _, _, err := svc.Login(context.Background(), "gone@example.com", "supersecret"); err == nil {
		t.Error("deactivated account must not log in")
	}
}
