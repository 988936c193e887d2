package moderation

import (
	"context"

	"github.com/goliatone/go-router"
)

// Guard is the default AuthorizationGuard. It resolves claims either from the
// standard context (populated by the JWT middleware) or from a raw token, and
// enforces status plus role-set membership. The resolved claims are returned
// to the caller so every operation receives the acting identity explicitly.
type Guard struct {
	validator TokenValidator
	logger    Logger
}

var _ AuthorizationGuard = (*Guard)(nil)

// NewGuard creates a Guard backed by the given token validator.
func NewGuard(validator TokenValidator, opts ...GuardOption) *Guard {
	g := &Guard{
		validator: validator,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// GuardOption customizes guard construction.
type GuardOption func(*Guard)

// WithGuardLogger overrides the guard logger.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Authorize resolves the claims previously attached to the context and checks
// that the caller's role belongs to the allowed set. An empty set admits any
// authenticated identity.
func (g *Guard) Authorize(ctx context.Context, allowed ...UserRole) (AuthClaims, error) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return g.check(claims, allowed)
}

// AuthorizeToken validates a raw bearer token and applies the same checks as
// Authorize. Useful for call sites outside the HTTP middleware chain.
func (g *Guard) AuthorizeToken(token string, allowed ...UserRole) (AuthClaims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	if g.validator == nil {
		g.logger.Error("guard has no token validator configured")
		return nil, ErrUnauthenticated
	}

	claims, err := g.validator.Validate(token)
	if err != nil {
		if IsTokenExpiredError(err) {
			return nil, ErrTokenExpired
		}
		g.logger.Debug("guard token validation failed", "error", err)
		return nil, ErrUnauthenticated
	}

	return g.check(claims, allowed)
}

func (g *Guard) check(claims AuthClaims, allowed []UserRole) (AuthClaims, error) {
	if claims == nil {
		return nil, ErrUnauthenticated
	}

	if claims.Status() == string(UserStatusSuspended) {
		return nil, ErrAccountSuspended
	}

	if len(allowed) == 0 {
		return claims, nil
	}

	if !claims.HasAnyRole(RoleSet(allowed).Strings()...) {
		return nil, ErrForbidden.WithMetadata(map[string]any{
			"user_id": claims.UserID(),
			"role":    claims.Role(),
		})
	}

	return claims, nil
}

// GuardMiddleware enforces role membership on a protected route. The claims
// are stored in the standard context so handlers can hand them to operations.
func GuardMiddleware(guard AuthorizationGuard, allowed ...UserRole) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			claims, err := resolveRouterClaims(ctx, guard, allowed...)
			if err != nil {
				return err
			}
			ctx.SetContext(WithClaimsContext(ctx.Context(), claims))
			return hf(ctx)
		}
	}
}

func resolveRouterClaims(ctx router.Context, guard AuthorizationGuard, allowed ...UserRole) (AuthClaims, error) {
	// The JWT middleware stores claims in router locals before the standard
	// context is enriched, check both.
	if claims, ok := GetRouterClaims(ctx, ""); ok {
		return guard.Authorize(WithClaimsContext(ctx.Context(), claims), allowed...)
	}
	return guard.Authorize(ctx.Context(), allowed...)
}
