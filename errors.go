package moderation

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthenticated   = "UNAUTHENTICATED"
	TextCodeForbidden         = "FORBIDDEN"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeInvalidPin        = "INVALID_PIN"
	TextCodeInvalidState      = "INVALID_STATE"
	TextCodeAccountSuspended  = "ACCOUNT_SUSPENDED"
	TextCodeTooManyAttempts   = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeImmutableMutation = "IMMUTABLE_CLAIM_MUTATION"
)

// ErrUnauthenticated is returned when no valid credential accompanies a request.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the caller's role is not in the allowed set.
var ErrForbidden = goerrors.New("insufficient role for this operation", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrTokenExpired is returned for tokens past their expiration claim.
var ErrTokenExpired = goerrors.New("authentication token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed or verified.
var ErrTokenMalformed = goerrors.New("authentication token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidPin is the uniform verification failure. Wrong pin, unknown email,
// and expired pin all produce this same error so callers cannot probe which
// part failed.
var ErrInvalidPin = goerrors.New("invalid or expired pin", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidPin).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountSuspended is returned when a suspended identity tries to authenticate.
var ErrAccountSuspended = goerrors.New("account is suspended", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountSuspended).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while the login attempt cooldown is active.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts, try again later", goerrors.CategoryAuth).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the uniform credential failure for login.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString rejects empty secrets before hashing.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrImmutableClaimMutation is returned when a claims decorator touches a protected claim.
var ErrImmutableClaimMutation = goerrors.New("immutable claim mutated", goerrors.CategoryInternal).
	WithTextCode(TextCodeImmutableMutation).
	WithCode(goerrors.CodeInternal)

// ErrUnableToFindSession is the error when our request has no credential
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT claims
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToParseData parse error
var ErrUnableToParseData = goerrors.New("unable to parse data", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired") ||
		strings.Contains(err.Error(), "token has expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
