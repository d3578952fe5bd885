package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"taskhub/internal/cache"
	"taskhub/internal/model"
)

// PresenceTTL is how long a user counts as active after their last request.
const PresenceTTL = 5 * time.Minute

const identityContextKey = "identity"

// Identity is the authenticated caller, threaded explicitly into every scoped
// service operation.
type Identity struct {
	UserID uint
	Email  string
	Role   model.Role
}

// IsSuperAdmin reports whether the caller holds the super_admin role.
func (i Identity) IsSuperAdmin() bool { return i.Role == model.RoleSuperAdmin }

// IsClient reports whether the caller holds the client role.
func (i Identity) IsClient() bool { return i.Role == model.RoleClient }

// IsDeveloper reports whether the caller holds the developer role.
func (i Identity) IsDeveloper() bool { return i.Role == model.RoleDeveloper }

// IdentityMiddleware turns the echo-jwt token into an Identity on the echo
// context and records the caller's presence for the dashboard's active-user
// count. It must run after the JWT middleware.
func IdentityMiddleware(presence *cache.Client) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			claims, ok := token.Claims.(*Claims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			identity := Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}
			c.Set(identityContextKey, identity)

			ctx := c.Request().Context()
			_ = presence.Set(ctx, PresenceKey(identity.UserID), []byte("1"), PresenceTTL)

			return next(c)
		}
	}
}

// CurrentIdentity returns the Identity set by IdentityMiddleware.
func CurrentIdentity(c echo.Context) (Identity, error) {
	identity, ok := c.Get(identityContextKey).(Identity)
	if !ok {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return identity, nil
}

// PresenceKey is the redis key marking a user as recently active.
func PresenceKey(userID uint) string {
	return fmt.Sprintf("presence:%d", userID)
}

// PresencePattern matches all presence keys.
const PresencePattern = "presence:*"
