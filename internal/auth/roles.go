package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the caller is an administrator. The lifecycle engine
// re-checks roles itself; this guard just keeps admin routes off-limits at
// the transport edge.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || !principal.Actor.IsAdmin {
			return apperrors.NewForbidden("administrator required")
		}
		return c.Next()
	}
}
