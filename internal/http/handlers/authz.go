package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tradein/internal/domain"
	applog "tradein/internal/log"
	"tradein/internal/services"
)

// Identify attaches the logged-in user, if any, to the request. Requests
// without a valid session continue as guests.
func Identify(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sid := c.Cookies("sid"); sid != "" {
			if u, err := auth.CurrentUser(c.UserContext(), sid); err == nil && u != nil {
				c.Locals("user", u)
				c.Locals("user_id", u.ID)
			}
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// owner resolves the caller into a quote owner.
func owner(c *fiber.Ctx) domain.Owner {
	return currentUser(c).AsOwner()
}

// RequireUser rejects guests.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody(c, "unauthenticated", "log in first"))
		}
		return c.Next()
	}
}

// RequireStaff rejects anyone but staff accounts.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := currentUser(c)
		if u == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody(c, "unauthenticated", "log in first"))
		}
		if !u.IsStaff() {
			applog.Security(c, "access.denied.staff", map[string]any{"role": u.Role})
			return c.Status(fiber.StatusForbidden).JSON(errorBody(c, "forbidden", "staff only"))
		}
		return c.Next()
	}
}
