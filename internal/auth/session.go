// Package auth implements the three-mode credential gateway (spec
// component C12): device mode, user-session mode, and API-key mode.
// Session tokens are HS256 JWTs carrying the user id as the subject
// claim, grounded on the teacher's own jwt.NewWithClaims login handler;
// per spec section 9's design note, this replaces the reference's
// trivially-forgeable "session-for-<id>" shape while preserving the
// property that a valid token resolves 1:1 to a user id.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dosecore/backend/internal/errs"
)

// Sessions issues and verifies HS256 user-session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions constructs a Sessions issuer with the given signing secret
// and token lifetime.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed session token for userID.
func (s *Sessions) Issue(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "failed to sign session token", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token, returning the user id it
// resolves to.
func (s *Sessions) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errs.New(errs.InvalidCredentials, "invalid or expired session token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errs.New(errs.InvalidCredentials, "invalid session token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errs.New(errs.InvalidCredentials, "invalid session token claims")
	}
	return sub, nil
}
