package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, userID string, expiry time.Duration) string {
	t.Helper()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuthenticateValidToken(t *testing.T) {
	a := NewJWTAuthenticator("secret")
	tok := signToken(t, "secret", "user-42", time.Hour)
	uid, err := a.Authenticate(tok)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if uid != "user-42" {
		t.Fatalf("expected user-42, got %s", uid)
	}
}

func TestAuthenticateRejectsBadSignature(t *testing.T) {
	a := NewJWTAuthenticator("secret")
	tok := signToken(t, "wrong-secret", "user-42", time.Hour)
	if _, err := a.Authenticate(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateRejectsExpired(t *testing.T) {
	a := NewJWTAuthenticator("secret")
	tok := signToken(t, "secret", "user-42", -time.Minute)
	if _, err := a.Authenticate(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
