package moderation

import (
	"context"

	"github.com/goliatone/go-router"
)

// WSTokenValidator implements go-router's WSTokenValidator interface using the
// TokenService so WebSocket connections authenticate with the same tokens.
type WSTokenValidator struct {
	tokenService TokenService
}

// NewWSTokenValidator creates a new WebSocket token validator using the provided TokenService
func NewWSTokenValidator(tokenService TokenService) *WSTokenValidator {
	return &WSTokenValidator{
		tokenService: tokenService,
	}
}

// Validate validates a token string and returns WebSocket-compatible auth claims
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	claims, err := w.tokenService.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &WSAuthClaimsAdapter{claims: claims}, nil
}

// WSAuthClaimsAdapter adapts AuthClaims to go-router's WSAuthClaims interface.
// The resource-capability methods are answered from role-set membership.
type WSAuthClaimsAdapter struct {
	claims AuthClaims
}

// Subject returns the subject claim
func (w *WSAuthClaimsAdapter) Subject() string {
	return w.claims.Subject()
}

// UserID returns the user ID
func (w *WSAuthClaimsAdapter) UserID() string {
	return w.claims.UserID()
}

// Role returns the user's role
func (w *WSAuthClaimsAdapter) Role() string {
	return w.claims.Role()
}

// CanRead reports whether the caller may subscribe to read streams.
// Every authenticated member may.
func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return w.claims.HasAnyRole(Members.Strings()...)
}

// CanEdit reports whether the caller belongs to the publisher set.
func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	return w.claims.HasAnyRole(Publishers.Strings()...)
}

// CanCreate reports whether the caller belongs to the publisher set.
func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	return w.claims.HasAnyRole(Publishers.Strings()...)
}

// CanDelete reports whether the caller belongs to the admin set.
func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.claims.HasAnyRole(AdminOnly.Strings()...)
}

// HasRole checks if the user has the exact role
func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	return w.claims.HasRole(role)
}

// IsAtLeast answers go-router's minimum-role hook with set membership: each
// named role maps to its capability group and the check is membership in it.
func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	switch UserRole(minRole) {
	case RoleAdmin:
		return w.claims.HasAnyRole(AdminOnly.Strings()...)
	case RoleCreator:
		return w.claims.HasAnyRole(Publishers.Strings()...)
	case RoleConsumer:
		return w.claims.HasAnyRole(Members.Strings()...)
	default:
		return false
	}
}

// NewWSAuthMiddleware creates a fully configured WebSocket authentication
// middleware using the Authenticator's TokenService. Handy for wiring
// notification streams behind the same tokens the HTTP API uses.
func (s *Auther) NewWSAuthMiddleware(config ...router.WSAuthConfig) router.WebSocketMiddleware {
	validator := NewWSTokenValidator(s.tokenService)

	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = validator

	return router.NewWSAuth(cfg)
}

// WSAuthClaimsFromContext retrieves auth claims from a WebSocket context and
// unwraps them back to the package's AuthClaims when possible.
func WSAuthClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok {
		return adapter.claims, true
	}

	return nil, false
}
