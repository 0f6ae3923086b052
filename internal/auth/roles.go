package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/ticket-engine/internal/domain"
	apperrors "github.com/campusdesk/ticket-engine/pkg/util"
)

// RequireRole ensures the admin has one of the allowed roles.
func RequireRole(allowed ...domain.AdminRole) fiber.Handler {
	allowedSet := make(map[domain.AdminRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		admin, ok := AdminFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[admin.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
