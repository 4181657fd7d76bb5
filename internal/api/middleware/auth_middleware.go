package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/maheshrc27/xpilot/pkg/utils"
)

type AuthMiddleware struct {
	cfg *config.Config
}

func NewAuthMiddleware(cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg}
}

// AuthMiddleware accepts an HS256 bearer token issued to the external scheduler.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success":  false,
				"error":    "Missing bearer token",
				"trace_id": c.Locals(TraceIDKey),
			})
		}

		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			logger.FromContext(c.UserContext()).WithError(err).Warn("token validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success":  false,
				"error":    "Invalid or expired token",
				"trace_id": c.Locals(TraceIDKey),
			})
		}

		c.Locals("caller", claims.Caller)
		return c.Next()
	}
}
