// Package auth issues and validates the bearer tokens host clients use
// against the REST and websocket surfaces. Tokens are HS256-signed JWTs
// validated by signature only, so request handling never blocks on
// storage.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sentinel errors for token handling.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
)

const defaultTokenTTL = 15 * time.Minute

// Claims extends JWT registered claims with the hostbridge session tag.
type Claims struct {
	jwt.RegisteredClaims
	Scope     string `json:"scope"`
	SessionID string `json:"sid"`
}

// GenerateToken creates a signed access token for a host client. A
// non-positive ttl falls back to 15 minutes.
func GenerateToken(clientID, scope, secret string, ttl time.Duration) (string, error) {
	if clientID == "" {
		return "", fmt.Errorf("%w: client id required", ErrTokenInvalid)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope:     scope,
		SessionID: uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature and expiry and returns the claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}
