// Package token issues and verifies the relay's HS256 access tokens.
//
// Tokens are self-contained: possession of a token signed with the shared
// secret is the session. Nothing here keeps per-token server state; the
// Sessions map in this package is gateway bookkeeping, never authorization.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL matches the lifetime clients were built around.
const DefaultTTL = 30 * 24 * time.Hour

// Service signs and verifies tokens with a shared HMAC secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService builds a Service. A non-positive ttl falls back to DefaultTTL.
// The secret's strength is enforced at config validation, not here.
func NewService(secret []byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for the player with sub/iat/exp claims. Signing an
// HS256 token over in-memory state cannot fail at runtime; if it does, the
// process is misconfigured beyond recovery and panicking is the honest move.
func (s *Service) Issue(playerID string) string {
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("token: signing failed: %v", err))
	}
	return signed
}

// Verify checks signature, algorithm and expiry, and returns the player id
// from the subject claim. Callers must treat any error as "not authenticated"
// and never surface the reason to the client.
func (s *Service) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
