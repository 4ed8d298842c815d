package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	t.Setenv(envAuth0TestMode, "1")
	t.Setenv(envTestJWTSecret, testSecret)
	return NewAuth(nil, "", "")
}

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestUserIDFromAuthHeader(t *testing.T) {
	auth := newTestAuth(t)
	token := signTestToken(t, jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	sub, err := auth.UserIDFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub != "auth0|user-1" {
		t.Fatalf("unexpected subject: %q", sub)
	}
}

func TestUserIDFromAuthHeaderRejectsExpired(t *testing.T) {
	auth := newTestAuth(t)
	token := signTestToken(t, jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(-2 * time.Hour).Unix(),
	})

	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestUserIDFromAuthHeaderRejectsMissingExpiry(t *testing.T) {
	auth := newTestAuth(t)
	token := signTestToken(t, jwt.MapClaims{"sub": "auth0|user-1"})

	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}
}

func TestUserIDFromAuthHeaderRejectsMissingSub(t *testing.T) {
	auth := newTestAuth(t)
	token := signTestToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected token without sub to be rejected")
	}
}

func TestUserIDFromAuthHeaderRejectsBadSignature(t *testing.T) {
	auth := newTestAuth(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected bad signature to be rejected")
	}
}

func TestUserIDFromAuthHeaderValidatesAudienceAndIssuer(t *testing.T) {
	t.Setenv(envAuth0TestMode, "1")
	t.Setenv(envTestJWTSecret, testSecret)
	auth := NewAuth(nil, "https://api.example.com", "https://issuer.example.com/")

	good := signTestToken(t, jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"aud": "https://api.example.com",
		"iss": "https://issuer.example.com/",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	badAud := signTestToken(t, jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"aud": "https://other.example.com",
		"iss": "https://issuer.example.com/",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + badAud); err == nil {
		t.Fatal("expected audience mismatch to be rejected")
	}

	badIss := signTestToken(t, jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"aud": "https://api.example.com",
		"iss": "https://rogue.example.com/",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + badIss); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestBearerTokenFromString(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"missing", "", errMissingAuthorization},
		{"spaces only", "   ", errMissingAuthorization},
		{"no prefix", "token a.b.c", errBadAuthorization},
		{"wrong dot count", "Bearer a.b", errBadAuthorization},
		{"empty token", "Bearer ", errBadAuthorization},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := bearerTokenFromString(tc.header); err != tc.wantErr {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	token, err := bearerTokenFromString("  Bearer a.b.c  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "a.b.c" {
		t.Fatalf("unexpected token: %q", token)
	}
}
