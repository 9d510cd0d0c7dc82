package auth

import (
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
)

// HeaderUserID carries the caller's user id.
const HeaderUserID = "X-User-ID"

// contextKey is the type for context keys to avoid collisions.
type contextKey string

// userIDKey is the Echo context key of the authenticated user id.
const userIDKey contextKey = "authenticated_user_id"

var userIDRe = regexp.MustCompile(`^[A-Za-z0-9_.@-]{1,128}$`)

// ValidUserID reports whether id is an acceptable user id.
func ValidUserID(id string) bool {
	return userIDRe.MatchString(id)
}

// IdentityMiddleware creates an Echo middleware that reads the caller's user
// id from the X-User-ID header and stores it in the Echo context.
//
// Returns 401 Unauthorized with a JSON error when the header is missing or
// malformed.
//
// Example usage:
//
//	v1 := e.Group("/api/v1", auth.IdentityMiddleware())
//	v1.POST("/conversations/:id/messages", handler)
func IdentityMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderUserID)
			if id == "" {
				return unauthorized(c, "missing "+HeaderUserID+" header")
			}
			if !ValidUserID(id) {
				return unauthorized(c, "malformed "+HeaderUserID+" header")
			}
			c.Set(string(userIDKey), id)
			return next(c)
		}
	}
}

// UserID returns the user id set by IdentityMiddleware, or "".
func UserID(c echo.Context) string {
	id, _ := c.Get(string(userIDKey)).(string)
	return id
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "unauthenticated",
			"message": msg,
		},
	})
}
