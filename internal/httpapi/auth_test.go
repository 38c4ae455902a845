package httpapi

import (
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"pearstock/backend/internal/domain"
)

func TestIssueAndParseTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager("test-secret-key-with-enough-length!!", time.Hour)
	actor := domain.Actor{UserID: "user-vendedor", Username: "vendedor", Role: domain.RoleSeller}

	token, expiresAt, err := auth.IssueToken(actor)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	got, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != actor {
		t.Fatalf("expected %+v, got %+v", actor, got)
	}
}

func TestParseTokenRejectsOtherSecret(t *testing.T) {
	issuer := NewAuthManager("secret-one-secret-one-secret-one-xx", time.Hour)
	verifier := NewAuthManager("secret-two-secret-two-secret-two-xx", time.Hour)

	token, _, err := issuer.IssueToken(domain.Actor{UserID: "user-admin", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	secret := "test-secret-key-with-enough-length!!"
	auth := NewAuthManager(secret, time.Hour)

	token := signClaims(t, secret, actorClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "user-x",
			Issuer:    tokenIssuer,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "cajero",
	})
	if _, err := auth.ParseToken(token); err == nil || !strings.Contains(err.Error(), "role") {
		t.Fatalf("expected role error, got %v", err)
	}
}

func TestParseTokenRejectsWrongIssuerAndExpired(t *testing.T) {
	secret := "test-secret-key-with-enough-length!!"
	auth := NewAuthManager(secret, time.Hour)

	foreign := signClaims(t, secret, actorClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "user-admin",
			Issuer:    "someone-else",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: domain.RoleAdmin,
	})
	if _, err := auth.ParseToken(foreign); err == nil {
		t.Fatalf("expected foreign issuer to be rejected")
	}

	expired := signClaims(t, secret, actorClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "user-admin",
			Issuer:    tokenIssuer,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: domain.RoleAdmin,
	})
	if _, err := auth.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestIssueTokenRequiresKnownRole(t *testing.T) {
	auth := NewAuthManager("", 0)
	if _, _, err := auth.IssueToken(domain.Actor{UserID: "u-1", Role: "owner"}); err == nil {
		t.Fatalf("expected unknown role to be refused")
	}
	if _, _, err := auth.IssueToken(domain.Actor{Role: domain.RoleAdmin}); err == nil {
		t.Fatalf("expected empty user id to be refused")
	}
}

func signClaims(t *testing.T, secret string, claims actorClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}
