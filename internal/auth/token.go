// Package auth issues and verifies the bearer tokens that guard the
// bridge's mutating API routes and its WebSocket feed.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the "iss" claim of every token this bridge mints.
const Issuer = "appliancebridge"

// DefaultTokenTTL applies when IssueToken is given a non-positive ttl.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Token scopes.
const (
	// ScopeRead allows the WebSocket property feed.
	ScopeRead = "read"
	// ScopeControl allows property writes and republish, and implies ScopeRead.
	ScopeControl = "control"
)

// ErrTokenInvalid is returned for any token that fails verification.
var ErrTokenInvalid = errors.New("invalid token")

// Claims are carried by bridge bearer tokens.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// Allows reports whether the token grants scope.
func (c *Claims) Allows(scope string) bool {
	return c.Scope == ScopeControl || c.Scope == scope
}

// IssueToken signs an HS256 token for subject with the given scope.
func IssueToken(secret, subject, scope string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing token: empty secret")
	}
	if subject == "" {
		return "", errors.New("signing token: empty subject")
	}
	if !validScope(scope) {
		return "", fmt.Errorf("signing token: unknown scope %q", scope)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: scope,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, expiry, issuer and scope, and returns the
// claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
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
	if !validScope(claims.Scope) {
		return nil, fmt.Errorf("%w: unknown scope %q", ErrTokenInvalid, claims.Scope)
	}
	return claims, nil
}

func validScope(s string) bool {
	return s == ScopeRead || s == ScopeControl
}
