// Package auth implements the bearer token issued and verified for the
// transport accept handshake when the config document's auth.mode is
// "token".
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vibepilot/agentd/internal/errs"
)

// Claims are the JWT claims carried by an agentd bearer token.
type Claims struct {
	jwt.RegisteredClaims
	AgentName string `json:"agent,omitempty"`
}

// Issue creates an HS256-signed token valid for ttl, secured by secret
// (the config document's auth.token, used as the HMAC key).
func Issue(secret, agentName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AgentName: agentName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errs.Userf("sign bearer token", err)
	}
	return signed, nil
}

// Verify checks tokenString against secret and returns its claims.
func Verify(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errs.Userf("verify bearer token", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errs.User("invalid bearer token")
	}
	return claims, nil
}
