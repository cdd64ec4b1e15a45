package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

// RequireActor ensures the gateway vouched for a caller.
func RequireActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ActorFromContext(c); !ok {
			return apperrors.NewUnauthorized("actor required")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the caller administers the tenant.
func RequireAdmin(policy *Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("actor required")
		}
		if !policy.HasAdmin(actor) {
			return apperrors.NewPermissionDenied("administrator required")
		}
		return c.Next()
	}
}
