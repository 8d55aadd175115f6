package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the opaque auth collaborator: token verification and
// out-of-band challenge delivery. Injected at startup so tests can
// substitute a fake.
type Identity interface {
	Authenticate(token string) (string, error)
	SendChallenge(ctx context.Context, contact string) (string, error)
}

var ErrInvalidToken = errors.New("invalid token")

// Challenger delivers a one-time verification challenge out of band.
type Challenger interface {
	SendChallenge(ctx context.Context, contact string) (string, error)
}

// Provider combines token verification with challenge delivery.
type Provider struct {
	auth *JWTAuthenticator
	ch   Challenger
}

func NewProvider(secret string, ch Challenger) *Provider {
	return &Provider{auth: NewJWTAuthenticator(secret), ch: ch}
}

func (p *Provider) Authenticate(token string) (string, error) {
	return p.auth.Authenticate(token)
}

func (p *Provider) SendChallenge(ctx context.Context, contact string) (string, error) {
	if p.ch == nil {
		return "", errors.New("no challenge sender configured")
	}
	return p.ch.SendChallenge(ctx, contact)
}

// Claims carried in the bearer tokens this service accepts.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HMAC-signed bearer tokens.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// Authenticate parses and verifies the token and returns the user id.
func (a *JWTAuthenticator) Authenticate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: no user id claim", ErrInvalidToken)
	}
	return userID, nil
}
