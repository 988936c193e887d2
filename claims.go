package moderation

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents structured JWT claims carried through an operation.
// Role checks are set membership, never hierarchy comparisons.
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Role() string
	Status() string
	HasRole(role string) bool
	HasAnyRole(roles ...string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID        string         `json:"uid,omitempty"`
	UserEmail  string         `json:"email,omitempty"`
	UserRole   string         `json:"role,omitempty"`
	UserStatus string         `json:"status,omitempty"`
	Scopes     []string       `json:"scopes,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"` // extension payload
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the account email
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Role returns the account role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// Status returns the account lifecycle status captured at token issuance
func (c *JWTClaims) Status() string {
	if c.UserStatus == "" {
		return string(UserStatusActive)
	}
	return c.UserStatus
}

// HasRole checks if the user has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// HasAnyRole checks membership against an allowed set. An empty set means
// any authenticated role is acceptable.
func (c *JWTClaims) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if c.UserRole == role {
			return true
		}
	}
	return false
}

// ClaimsMetadata exposes metadata extensions for optional context enrichment.
func (c *JWTClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
