package models

import "github.com/golang-jwt/jwt/v5"

// Role is the back-office role carried in the access token.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleSupport Role = "SUPPORT"
)

// JWTClaims is the access token payload. The subject holds the user id.
type JWTClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// ActorID returns the authenticated user id.
func (c *JWTClaims) ActorID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
