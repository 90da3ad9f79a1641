package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/domain"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// RequireRole admits callers whose current role is one of allowed. It must
// run after AuthMiddleware.Handle.
func RequireRole(allowed ...domain.AccountRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		for _, role := range allowed {
			if principal.Role() == role {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient role")
	}
}

// RequireStaff admits moderators and admins.
func RequireStaff() fiber.Handler {
	return RequireRole(domain.AccountRoleModerator, domain.AccountRoleAdmin)
}

// RequireAdmin admits admins only.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.AccountRoleAdmin)
}
