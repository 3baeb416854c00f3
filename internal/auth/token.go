// Package auth validates bearer tokens issued by the external identity
// service. Validation is a pure function of the token and the shared signing
// secret: token in, user id out, no store access.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskloop/taskloop/internal/domain"
)

// TokenValidator validates HS256-signed bearer tokens.
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator creates a validator over the shared signing secret.
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// UserID extracts the authenticated user id from a bearer token.
// Returns domain.ErrUnauthorized for any malformed, expired or
// wrongly-signed token; callers never learn which.
func (v *TokenValidator) UserID(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		return "", domain.ErrUnauthorized
	}

	return claims.Subject, nil
}
