package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errEmptyToken     = errors.New("auth: empty token")
	errEmptySecret    = errors.New("auth: empty secret")
	errMissingSubject = errors.New("auth: missing subject")
	errInvalidRole    = errors.New("auth: invalid role")
)

// Claims carries the operator role next to the registered claims. The
// subject names the operator and is recorded as the pump log actor.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseJWT validates an HS256 token. Tokens without exp, sub or a known role
// are rejected.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errEmptyToken
	}
	if len(secret) == 0 {
		return nil, errEmptySecret
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errMissingSubject
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, errInvalidRole
	}
	return claims, nil
}

// IssueToken signs an operator token valid for ttl.
func IssueToken(secret []byte, subject string, role Role, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errEmptySecret
	}
	if subject == "" {
		return "", errMissingSubject
	}
	if _, ok := NormalizeRole(string(role)); !ok {
		return "", errInvalidRole
	}
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}
