package moderation_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	moderation "github.com/goliatone/go-moderation"
	"github.com/stretchr/testify/assert"
)

func TestJWTClaims_Subject(t *testing.T) {
	claims := &moderation.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user123",
		},
	}

	assert.Equal(t, "user123", claims.Subject())
}

func TestJWTClaims_UserID(t *testing.T) {
	t.Run("returns UID when present", func(t *testing.T) {
		claims := &moderation.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "user123",
			},
			UID: "uid456",
		}

		assert.Equal(t, "uid456", claims.UserID())
	})

	t.Run("fallback to subject when UID is empty", func(t *testing.T) {
		claims := &moderation.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "user123",
			},
		}

		assert.Equal(t, "user123", claims.UserID())
	})
}

func TestJWTClaims_Role(t *testing.T) {
	claims := &moderation.JWTClaims{
		UserRole: "admin",
	}

	assert.Equal(t, "admin", claims.Role())
}

func TestJWTClaims_Status(t *testing.T) {
	t.Run("returns stored status", func(t *testing.T) {
		claims := &moderation.JWTClaims{
			UserStatus: "suspended",
		}

		assert.Equal(t, "suspended", claims.Status())
	})

	t.Run("defaults to active when not set", func(t *testing.T) {
		claims := &moderation.JWTClaims{}

		assert.Equal(t, string(moderation.UserStatusActive), claims.Status())
	})
}

func TestJWTClaims_HasRole(t *testing.T) {
	tests := []struct {
		name      string
		userRole  string
		checkRole string
		expected  bool
	}{
		{
			name:      "exact match",
			userRole:  "admin",
			checkRole: "admin",
			expected:  true,
		},
		{
			name:      "different role",
			userRole:  "creator",
			checkRole: "admin",
			expected:  false,
		},
		{
			name:      "empty role never matches",
			userRole:  "",
			checkRole: "admin",
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &moderation.JWTClaims{
				UserRole: tt.userRole,
			}

			assert.Equal(t, tt.expected, claims.HasRole(tt.checkRole))
		})
	}
}

func TestJWTClaims_HasAnyRole(t *testing.T) {
	tests := []struct {
		name     string
		userRole string
		allowed  []string
		expected bool
	}{
		{
			name:     "member of the set",
			userRole: "creator",
			allowed:  moderation.Publishers.Strings(),
			expected: true,
		},
		{
			name:     "outside the set",
			userRole: "consumer",
			allowed:  moderation.Publishers.Strings(),
			expected: false,
		},
		{
			name:     "admin is not implied by membership sets it is absent from",
			userRole: "admin",
			allowed:  []string{"creator", "consumer"},
			expected: false,
		},
		{
			name:     "empty set admits any authenticated role",
			userRole: "consumer",
			allowed:  nil,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &moderation.JWTClaims{
				UserRole: tt.userRole,
			}

			assert.Equal(t, tt.expected, claims.HasAnyRole(tt.allowed...))
		})
	}
}

func TestJWTClaims_Expires(t *testing.T) {
	t.Run("returns expiration time when set", func(t *testing.T) {
		expTime := time.Now().Add(time.Hour)
		claims := &moderation.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(expTime),
			},
		}

		result := claims.Expires()
		assert.WithinDuration(t, expTime, result, time.Second)
	})

	t.Run("returns zero time when not set", func(t *testing.T) {
		claims := &moderation.JWTClaims{}

		result := claims.Expires()
		assert.True(t, result.IsZero())
	})
}

func TestJWTClaims_IssuedAt(t *testing.T) {
	t.Run("returns issued at time when set", func(t *testing.T) {
		issuedTime := time.Now()
		claims := &moderation.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt: jwt.NewNumericDate(issuedTime),
			},
		}

		result := claims.IssuedAt()
		assert.WithinDuration(t, issuedTime, result, time.Second)
	})

	t.Run("returns zero time when not set", func(t *testing.T) {
		claims := &moderation.JWTClaims{}

		result := claims.IssuedAt()
		assert.True(t, result.IsZero())
	})
}

func TestJWTClaims_AuthClaimsInterface(t *testing.T) {
	var _ moderation.AuthClaims = (*moderation.JWTClaims)(nil)

	now := time.Now()
	claims := &moderation.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user123",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID:        "uid456",
		UserEmail:  "user@example.com",
		UserRole:   "admin",
		UserStatus: "active",
	}

	var authClaims moderation.AuthClaims = claims

	assert.Equal(t, "user123", authClaims.Subject())
	assert.Equal(t, "uid456", authClaims.UserID())
	assert.Equal(t, "user@example.com", authClaims.Email())
	assert.Equal(t, "admin", authClaims.Role())
	assert.Equal(t, "active", authClaims.Status())
	assert.True(t, authClaims.HasRole("admin"))
	assert.True(t, authClaims.HasAnyRole(moderation.AdminOnly.Strings()...))
	assert.False(t, authClaims.HasAnyRole("creator", "consumer"))
	assert.WithinDuration(t, now.Add(time.Hour), authClaims.Expires(), time.Second)
	assert.WithinDuration(t, now, authClaims.IssuedAt(), time.Second)
}
