package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken     = errors.New("auth: empty token")
	ErrMissingTenant  = errors.New("auth: missing tenant_id")
	ErrMissingSubject = errors.New("auth: missing subject")
	ErrInvalidRole    = errors.New("auth: invalid role")
)

// Claims is the bearer token payload. sub carries the ledger user id.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the request caller.
func (c *Claims) Identity() Identity {
	role, _ := NormalizeRole(c.Role)
	return Identity{TenantID: c.TenantID, Role: role, Subject: c.Subject}
}

// ParseJWT verifies an HS256 token. Expiry is enforced by the parser; the
// tenant, role and subject must all be present. Subject and tenant are
// returned trimmed.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrEmptyToken
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return nil, err
	}
	claims.TenantID = strings.TrimSpace(claims.TenantID)
	claims.Subject = strings.TrimSpace(claims.Subject)
	switch {
	case claims.TenantID == "":
		return nil, ErrMissingTenant
	case claims.Subject == "":
		return nil, ErrMissingSubject
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, ErrInvalidRole
	}
	return claims, nil
}
