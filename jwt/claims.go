package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned by [Inspect] for strings that are not a JWT.
var ErrMalformedToken = errors.New("malformed access token")

// Role is the backend role carried in the access token.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
)

// Claims are the access-token claims the achievement API issues.
//
// Subject holds the user id.
type Claims struct {
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// ExpiresWithin reports whether the token expires within d of now. Tokens
// without an exp claim never expire.
func (c *Claims) ExpiresWithin(d time.Duration, now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !now.Add(d).Before(c.ExpiresAt.Time)
}

// Expired is ExpiresWithin(0, now).
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresWithin(0, now)
}

// Inspect decodes token without verifying its signature.
//
// The result must not be used for authorization decisions.
func Inspect(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Join(ErrMalformedToken, err)
	}
	return claims, nil
}
