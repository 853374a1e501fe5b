package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casedocs/internal/authz"
	"github.com/localnerve/casedocs/internal/types"
)

// UserContext resolves the authenticated principal from the trusted gateway
// headers and installs it on the request context. The service sits behind an
// authenticating proxy, so the headers are taken at face value.
func UserContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-User-Id")
		if id == "" {
			return c.Next()
		}
		user := authz.User{
			ID:       id,
			FullName: c.Get("X-User-Name"),
			Roles:    splitRoles(c.Get("X-User-Roles")),
		}
		c.Locals("user", user)
		c.SetUserContext(authz.WithUser(c.UserContext(), user))
		return c.Next()
	}
}

// RequireUser rejects requests that carry no principal.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals("user").(authz.User); !ok {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: "No authenticated user on request",
				Type:    "authorization",
			}
		}
		return c.Next()
	}
}

// RequireAdmin rejects requests whose principal lacks the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals("user").(authz.User)
		if !ok || !user.IsAdmin() {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: "Administrator role required",
				Type:    "authorization",
			}
		}
		return c.Next()
	}
}

func splitRoles(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}
