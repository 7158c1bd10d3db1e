// Package policy connects the permission gate to the database and to the
// HTTP layer.
package policy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/gate"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// AuthGate is the central authorization point: a cached profile resolver and
// the echo middleware built on it.
type AuthGate struct {
	Resolver *gate.CachedResolver
}

// NewAuthGate resolves profiles from db, caching up to size users for ttl.
func NewAuthGate(db *gorm.DB, size int, ttl time.Duration) *AuthGate {
	return &AuthGate{Resolver: gate.NewCachedResolver(NewDBProfileResolver(db), size, ttl)}
}

// Authorize checks the caller attached to ctx.
func (ag *AuthGate) Authorize(ctx context.Context, resourceType string, action gate.Action) error {
	userID, _ := auth.UserIDFromContext(ctx)
	return toHTTPError(gate.Authorize(ctx, ag.Resolver, userID, resourceType, action))
}

// Can is Authorize as a bool.
func (ag *AuthGate) Can(ctx context.Context, resourceType string, action gate.Action) bool {
	return ag.Authorize(ctx, resourceType, action) == nil
}

// Invalidate clears the cached profile of one user. Call it when the user's
// profile changes.
func (ag *AuthGate) Invalidate(userID uint) {
	ag.Resolver.Invalidate(userID)
}

// InvalidateAll clears the whole cache, e.g. after permission edits.
func (ag *AuthGate) InvalidateAll() {
	ag.Resolver.InvalidateAll()
}

// RequirePermission returns middleware that rejects callers whose profile
// lacks resourceType:action.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := ag.Authorize(c.Request().Context(), resourceType, action); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireAdmin only lets through profiles holding "*:*".
func (ag *AuthGate) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID, ok := auth.UserIDFromContext(ctx)
			if !ok {
				return toHTTPError(gate.ErrUnauthorized)
			}
			profile, err := ag.Resolver.Resolve(ctx, userID)
			if err != nil {
				return err
			}
			if profile == nil || !profile.HasPermission(gate.PermissionSuperAdmin) {
				return toHTTPError(gate.ErrForbidden)
			}
			return next(c)
		}
	}
}

func toHTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gate.ErrUnauthorized):
		return httperror.NewHTTPError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, gate.ErrForbidden):
		return httperror.NewHTTPError(http.StatusForbidden, "permission denied")
	default:
		return err
	}
}
