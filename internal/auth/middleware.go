package auth

import (
	"context"
	"net/http"
	"strings"

	"comanda/internal/httpx"
	"comanda/internal/models"
)

type claimsKey struct{}

// WithClaims stores the authenticated staff member in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// RoleFrom returns the acting role, or "" for anonymous requests.
func RoleFrom(ctx context.Context) models.Role {
	if c, ok := ClaimsFrom(ctx); ok {
		return c.Role
	}
	return ""
}

// Actor names who performed an operation, for status history and events.
func Actor(ctx context.Context) string {
	if c, ok := ClaimsFrom(ctx); ok {
		return c.Email
	}
	return "system"
}

// Authenticate requires a valid "Bearer <token>" Authorization header
func (m *TokenManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httpx.WriteErrorResponse(w, r, http.StatusUnauthorized, "No Authorization header provided")
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			httpx.WriteErrorResponse(w, r, http.StatusUnauthorized, "Invalid Authorization format")
			return
		}

		claims, err := m.Verify(token)
		if err != nil {
			httpx.WriteErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRoles lets through only staff whose role is listed. It must run after Authenticate.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok {
				httpx.WriteErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !allowed[claims.Role] {
				httpx.WriteErrorResponse(w, r, http.StatusForbidden, "Your role is not allowed to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guards are the route guards handlers attach with chi's With.
type Guards struct {
	Authenticated func(http.Handler) http.Handler
	Partner       func(http.Handler) http.Handler
	Waiter        func(http.Handler) http.Handler
	Kitchen       func(http.Handler) http.Handler
}

func (m *TokenManager) Guards() Guards {
	only := func(roles ...models.Role) func(http.Handler) http.Handler {
		require := RequireRoles(roles...)
		return func(next http.Handler) http.Handler {
			return m.Authenticate(require(next))
		}
	}
	return Guards{
		Authenticated: m.Authenticate,
		Partner:       only(models.PartnerRoles...),
		Waiter:        only(models.WaiterRoles...),
		Kitchen:       only(models.KitchenRoles...),
	}
}
