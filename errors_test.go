package moderation_test

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	moderation "github.com/goliatone/go-moderation"
	"github.com/stretchr/testify/assert"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Legacy token expired error (string match)",
			err:      errors.New("some wrapper: token is expired"),
			expected: true,
		},
		{
			name:     "Structured token expired error",
			err:      moderation.ErrTokenExpired,
			expected: true,
		},
		{
			name:     "Different structured error",
			err:      moderation.ErrIdentityNotFound,
			expected: false,
		},
		{
			name:     "Different legacy error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := moderation.IsTokenExpiredError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsMalformedError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Legacy malformed error (string match)",
			err:      errors.New("token is malformed"),
			expected: true,
		},
		{
			name:     "Legacy missing JWT error (string match)",
			err:      errors.New("missing or malformed JWT"),
			expected: true,
		},
		{
			name:     "Structured malformed error",
			err:      moderation.ErrTokenMalformed,
			expected: true,
		},
		{
			name:     "Different legacy error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := moderation.IsMalformedError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestStructuredErrorProperties(t *testing.T) {
	t.Run("ErrUnauthenticated", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, moderation.ErrUnauthenticated.Category)
		assert.Equal(t, moderation.TextCodeUnauthenticated, moderation.ErrUnauthenticated.TextCode)
	})

	t.Run("ErrForbidden", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuthz, moderation.ErrForbidden.Category)
		assert.Equal(t, moderation.TextCodeForbidden, moderation.ErrForbidden.TextCode)
	})

	t.Run("ErrInvalidPin", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, moderation.ErrInvalidPin.Category)
		assert.Equal(t, moderation.TextCodeInvalidPin, moderation.ErrInvalidPin.TextCode)
		assert.Equal(t, "invalid or expired pin", moderation.ErrInvalidPin.Message)
	})

	t.Run("ErrAccountSuspended", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, moderation.ErrAccountSuspended.Category)
		assert.Equal(t, moderation.TextCodeAccountSuspended, moderation.ErrAccountSuspended.TextCode)
	})

	t.Run("ErrTooManyLoginAttempts", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, moderation.ErrTooManyLoginAttempts.Category)
		assert.Equal(t, moderation.TextCodeTooManyAttempts, moderation.ErrTooManyLoginAttempts.TextCode)
	})

	t.Run("ErrIdentityNotFound", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryNotFound, moderation.ErrIdentityNotFound.Category)
		assert.Equal(t, "identity not found", moderation.ErrIdentityNotFound.Message)
	})

	t.Run("ErrInvalidTransition", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, moderation.ErrInvalidTransition.Category)
	})

	t.Run("ErrTerminalState", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, moderation.ErrTerminalState.Category)
	})
}
