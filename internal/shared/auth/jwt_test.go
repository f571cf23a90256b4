package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENV", "dev")

	token, err := SignJWT(Claims{
		Email:            "owner@example.com",
		Name:             "Owner",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "google:1"},
	})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	claims, err := VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if claims.Subject != "google:1" || claims.Email != "owner@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENV", "dev")

	expired, err := SignJWT(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "google:1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	if _, err := VerifyJWT(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "google:1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := foreign.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign foreign: %v", err)
	}
	if _, err := VerifyJWT(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestSignRequiresSecretInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENV", "production")

	if _, err := SignJWT(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "google:1"}}); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
