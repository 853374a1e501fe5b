package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casedocs/internal/types"
)

// CurrentAPIVersion is the version served by this build.
const CurrentAPIVersion = "1.0.0"

// APIVersion negotiates the X-Api-Version header. An absent header means the
// current version; a requested major other than 1 is refused. The served
// version is echoed back on every response.
func APIVersion() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requested := c.Get("X-Api-Version", CurrentAPIVersion)
		if major, _, _ := strings.Cut(requested, "."); major != "1" {
			return &types.CustomError{
				Code:    fiber.StatusBadRequest,
				Message: "unsupported api version " + requested,
				Type:    "version",
			}
		}
		c.Locals("apiVersion", requested)
		c.Set("X-Api-Version", CurrentAPIVersion)
		return c.Next()
	}
}
