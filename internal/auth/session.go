package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken covers malformed, unparseable, or expired session tokens.
var ErrInvalidToken = errors.New("invalid_session_token")

const sessionTTL = 24 * time.Hour

// sessionClaims is the JWT claims set for a session token: {sub, iat, exp}.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// SessionSigner mints and verifies bearer session tokens binding a wallet
// address to an expiry, per spec's "HMAC-SHA256 of a compact header+claims
// payload" — a JWT with HS256 is exactly that envelope.
type SessionSigner struct {
	secret []byte
}

func NewSessionSigner(secret string) *SessionSigner {
	return &SessionSigner{secret: []byte(secret)}
}

// Mint issues a session token for wallet, valid for sessionTTL.
func (s *SessionSigner) Mint(wallet string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning the bound wallet
// address. Expiry is checked as part of parsing on every call.
func (s *SessionSigner) Verify(raw string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
