package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/projecthub-dev/projecthub/internal/utils"
)

// Protected authenticates the request from a bearer token (Authorization
// header, falling back to the ph_token cookie set by the OAuth flow) and
// stashes userId/role in locals for downstream handlers.
func Protected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := ""
		if auth := c.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			tokenStr = strings.TrimPrefix(auth, "Bearer ")
		}
		if tokenStr == "" {
			tokenStr = c.Cookies("ph_token")
		}
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}

		claims, err := utils.ParseJWT(secret, tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		uid := strings.TrimSpace(claims.UserID)
		if uid == "" {
			return fiber.ErrUnauthorized
		}

		c.Locals("userId", uid)
		c.Locals("role", strings.ToLower(strings.TrimSpace(claims.Role)))
		return c.Next()
	}
}
