package moderation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	moderation "github.com/goliatone/go-moderation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestIdentity is a simple implementation of Identity interface for testing
type TestIdentity struct {
	id       string
	username string
	email    string
	role     string
	status   moderation.UserStatus
}

func (t TestIdentity) ID() string       { return t.id }
func (t TestIdentity) Username() string { return t.username }
func (t TestIdentity) Email() string    { return t.email }
func (t TestIdentity) Role() string     { return t.role }
func (t TestIdentity) Status() moderation.UserStatus {
	if t.status == "" {
		return moderation.UserStatusActive
	}
	return t.status
}

func newMockConfig() *MockConfig {
	mockConfig := new(MockConfig)
	mockConfig.On("GetSigningKey").Return("test-signing-key")
	mockConfig.On("GetTokenExpiration").Return(24)
	mockConfig.On("GetIssuer").Return("test-issuer")
	mockConfig.On("GetAudience").Return([]string{"test:audience"})
	return mockConfig
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	mockProvider := new(MockIdentityProvider)
	mockConfig := newMockConfig()

	authenticator := moderation.NewAuthenticator(mockProvider, mockConfig)

	t.Run("Successful login", func(t *testing.T) {
		identity := TestIdentity{
			id:       uuid.New().String(),
			username: "testuser",
			email:    "test@example.com",
			role:     "admin",
			status:   moderation.UserStatusActive,
		}

		mockProvider.On("VerifyIdentity", ctx, "test@example.com", "password123").
			Return(identity, nil).Once()

		token, err := authenticator.Login(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotEmpty(t, token)

		parsedToken, err := jwt.ParseWithClaims(token, &moderation.JWTClaims{}, func(t *jwt.Token) (any, error) {
			return []byte("test-signing-key"), nil
		})

		assert.NoError(t, err)
		assert.True(t, parsedToken.Valid)

		claims, ok := parsedToken.Claims.(*moderation.JWTClaims)
		assert.True(t, ok)
		assert.Equal(t, identity.ID(), claims.Subject())
		assert.Equal(t, "test-issuer", claims.RegisteredClaims.Issuer)
		assert.Equal(t, jwt.ClaimStrings{"test:audience"}, claims.RegisteredClaims.Audience)
		assert.NotEmpty(t, claims.RegisteredClaims.ID)

		assert.Equal(t, "admin", claims.UserRole)
		assert.Equal(t, string(moderation.UserStatusActive), claims.UserStatus)
	})

	t.Run("Failed login - invalid credentials", func(t *testing.T) {
		mockProvider.On("VerifyIdentity", ctx, "bad@example.com", "wrongpassword").
			Return(nil, errors.New("invalid credentials")).Once()

		token, err := authenticator.Login(ctx, "bad@example.com", "wrongpassword")

		assert.Error(t, err)
		assert.Empty(t, token)
		assert.Contains(t, err.Error(), "invalid credentials")
	})

	t.Run("Failed login - identity not found", func(t *testing.T) {
		mockProvider.On("VerifyIdentity", ctx, "unknown@example.com", "password123").
			Return(nil, moderation.ErrIdentityNotFound).Once()

		token, err := authenticator.Login(ctx, "unknown@example.com", "password123")

		assert.Error(t, err)
		assert.Empty(t, token)
		assert.Contains(t, err.Error(), "identity not found")
	})

	t.Run("Login blocked when account suspended", func(t *testing.T) {
		identity := TestIdentity{
			id:       uuid.New().String(),
			username: "frozen",
			email:    "suspended@example.com",
			role:     "consumer",
			status:   moderation.UserStatusSuspended,
		}

		mockProvider.On("VerifyIdentity", ctx, identity.email, "password123").
			Return(identity, nil).Once()

		token, err := authenticator.Login(ctx, identity.email, "password123")

		assert.ErrorIs(t, err, moderation.ErrAccountSuspended)
		assert.Empty(t, token)
	})
}

func TestSessionFromToken(t *testing.T) {
	mockProvider := new(MockIdentityProvider)
	mockConfig := newMockConfig()

	authenticator := moderation.NewAuthenticator(mockProvider, mockConfig)

	now := time.Now()
	userID := uuid.New().String()
	expiry := now.Add(24 * time.Hour)

	claims := &moderation.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  []string{"test:audience"},
			Issuer:    "test-issuer",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
		UID:      userID,
		UserRole: "admin",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("test-signing-key"))
	assert.NoError(t, err)

	t.Run("Valid token", func(t *testing.T) {
		session, err := authenticator.SessionFromToken(tokenString)

		assert.NoError(t, err)
		assert.NotNil(t, session)

		assert.Equal(t, userID, session.GetUserID())
		assert.Equal(t, []string{"test:audience"}, session.GetAudience())
		assert.Equal(t, "test-issuer", session.GetIssuer())

		data := session.GetData()
		assert.Equal(t, "admin", data["role"])
	})

	t.Run("Invalid token signature", func(t *testing.T) {
		badToken := tokenString + "tampered"
		session, err := authenticator.SessionFromToken(badToken)

		assert.Error(t, err)
		assert.Nil(t, session)
	})

	t.Run("Expired token", func(t *testing.T) {
		expiredClaims := &moderation.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   userID,
				Audience:  []string{"test:audience"},
				Issuer:    "test-issuer",
				IssuedAt:  jwt.NewNumericDate(now.Add(-48 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-24 * time.Hour)),
			},
			UID:      userID,
			UserRole: "admin",
		}

		expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims)
		expiredTokenString, _ := expiredToken.SignedString([]byte("test-signing-key"))

		session, err := authenticator.SessionFromToken(expiredTokenString)

		assert.Error(t, err)
		assert.Nil(t, session)
		assert.Contains(t, err.Error(), "expired")
	})
}

func TestLoginActivitySink(t *testing.T) {
	ctx := context.Background()
	identity := TestIdentity{
		id:       uuid.New().String(),
		username: "audit-user",
		email:    "audit@example.com",
		role:     "consumer",
		status:   moderation.UserStatusActive,
	}

	t.Run("success event", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		config := newMockConfig()
		sink := new(MockActivitySink)

		authenticator := moderation.NewAuthenticator(provider, config).WithActivitySink(sink)

		provider.On("VerifyIdentity", ctx, identity.Email(), "password").
			Return(identity, nil).Once()

		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt moderation.ActivityEvent) bool {
			return evt.EventType == moderation.ActivityEventLoginSuccess &&
				evt.UserID == identity.ID()
		})).Return(nil).Once()

		_, err := authenticator.Login(ctx, identity.Email(), "password")
		require.NoError(t, err)

		sink.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("failure event", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		config := newMockConfig()
		sink := new(MockActivitySink)

		authenticator := moderation.NewAuthenticator(provider, config).WithActivitySink(sink)

		provider.On("VerifyIdentity", ctx, "unknown@example.com", "password").
			Return(nil, errors.New("boom")).Once()

		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt moderation.ActivityEvent) bool {
			return evt.EventType == moderation.ActivityEventLoginFailure &&
				evt.UserID == "" &&
				evt.Metadata["identifier"] == "unknown@example.com"
		})).Return(nil).Once()

		_, err := authenticator.Login(ctx, "unknown@example.com", "password")
		require.Error(t, err)

		sink.AssertExpectations(t)
		provider.AssertExpectations(t)
	})
}

func TestIdentityFromSession(t *testing.T) {
	ctx := context.Background()
	mockProvider := new(MockIdentityProvider)
	mockConfig := newMockConfig()

	authenticator := moderation.NewAuthenticator(mockProvider, mockConfig)

	userID := uuid.New().String()
	now := time.Now()
	session := &moderation.SessionObject{
		UserID:   userID,
		Audience: []string{"test:audience"},
		Issuer:   "test-issuer",
		IssuedAt: &now,
		Data:     map[string]any{"role": "admin"},
	}

	t.Run("Identity found", func(t *testing.T) {
		identity := TestIdentity{
			id:       userID,
			username: "testuser",
			email:    "test@example.com",
			role:     "admin",
			status:   moderation.UserStatusActive,
		}

		mockProvider.On("FindIdentityByIdentifier", ctx, userID).
			Return(identity, nil).Once()

		result, err := authenticator.IdentityFromSession(ctx, session)

		assert.NoError(t, err)
		assert.Equal(t, identity.ID(), result.ID())
		assert.Equal(t, identity.Username(), result.Username())
		assert.Equal(t, identity.Email(), result.Email())
		assert.Equal(t, identity.Role(), result.Role())
	})

	t.Run("Identity not found", func(t *testing.T) {
		mockProvider.On("FindIdentityByIdentifier", ctx, userID).
			Return(nil, moderation.ErrIdentityNotFound).Once()

		result, err := authenticator.IdentityFromSession(ctx, session)

		assert.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "identity not found")
	})
}

func TestClaimsDecoratorIntegration(t *testing.T) {
	ctx := context.Background()
	mockProvider := new(MockIdentityProvider)
	mockConfig := newMockConfig()

	identity := TestIdentity{
		id:       uuid.New().String(),
		username: "decorator-user",
		email:    "decorator@example.com",
		role:     "admin",
		status:   moderation.UserStatusActive,
	}

	mockProvider.On("VerifyIdentity", ctx, identity.email, "password123").
		Return(identity, nil).Once()

	decorator := moderation.ClaimsDecoratorFunc(func(ctx context.Context, identity moderation.Identity, claims *moderation.JWTClaims) error {
		if claims.Metadata == nil {
			claims.Metadata = map[string]any{}
		}
		claims.Metadata["tenant"] = "acme"
		claims.Scopes = append(claims.Scopes, "contents:write")
		return nil
	})

	authenticator := moderation.NewAuthenticator(mockProvider, mockConfig).
		WithClaimsDecorator(decorator)

	token, err := authenticator.Login(ctx, identity.email, "password123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsedClaims, err := authenticator.TokenService().Validate(token)
	require.NoError(t, err)

	jwtClaims, ok := parsedClaims.(*moderation.JWTClaims)
	require.True(t, ok)
	assert.Equal(t, "acme", jwtClaims.Metadata["tenant"])
	assert.Equal(t, []string{"contents:write"}, jwtClaims.Scopes)

	session, err := authenticator.SessionFromToken(token)
	require.NoError(t, err)
	metadata, ok := session.GetData()["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acme", metadata["tenant"])

	mockProvider.AssertExpectations(t)
}

func TestClaimsDecoratorErrorStopsLogin(t *testing.T) {
	ctx := context.Background()
	mockProvider := new(MockIdentityProvider)
	mockConfig := newMockConfig()

	identity := TestIdentity{
		id:       uuid.New().String(),
		username: "decorator-user",
		email:    "decorator-error@example.com",
		role:     "admin",
		status:   moderation.UserStatusActive,
	}

	mockProvider.On("VerifyIdentity", ctx, identity.email, "password123").
		Return(identity, nil).Once()

	expectedErr := errors.New("decorator boom")
	decorator := moderation.ClaimsDecoratorFunc(func(ctx context.Context, identity moderation.Identity, claims *moderation.JWTClaims) error {
		return expectedErr
	})

	authenticator := moderation.NewAuthenticator(mockProvider, mockConfig).
		WithClaimsDecorator(decorator)

	token, err := authenticator.Login(ctx, identity.email, "password123")
	assert.ErrorIs(t, err, expectedErr)
	assert.Empty(t, token)

	mockProvider.AssertExpectations(t)
}

func TestClaimsDecoratorImmutableGuard(t *testing.T) {
	ctx := context.Background()
	mockProvider := new(MockIdentityProvider)
	mockConfig := newMockConfig()

	identity := TestIdentity{
		id:       uuid.New().String(),
		username: "immutable-user",
		email:    "immutable@example.com",
		role:     "admin",
		status:   moderation.UserStatusActive,
	}

	mockProvider.On("VerifyIdentity", ctx, identity.email, "password123").
		Return(identity, nil).Once()

	decorator := moderation.ClaimsDecoratorFunc(func(ctx context.Context, identity moderation.Identity, claims *moderation.JWTClaims) error {
		claims.RegisteredClaims.Subject = "mutated"
		return nil
	})

	authenticator := moderation.NewAuthenticator(mockProvider, mockConfig).
		WithClaimsDecorator(decorator)

	token, err := authenticator.Login(ctx, identity.email, "password123")
	assert.Error(t, err)
	assert.ErrorIs(t, err, moderation.ErrImmutableClaimMutation)
	assert.Empty(t, token)

	mockProvider.AssertExpectations(t)
}
