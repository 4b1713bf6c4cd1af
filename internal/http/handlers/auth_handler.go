package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	applog "tradein/internal/log"
	"tradein/internal/services"
	"tradein/internal/validate"
)

type AuthHandler struct {
	Auth *services.AuthService
}

func ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   false,
		})
	}
	return sid
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_input", "malformed body")
	}
	sid := ensureSID(c)
	if _, ok := validate.Email(req.Email); !ok {
		applog.Security(c, "auth.login.fail", map[string]any{"email": req.Email, "reason": "bad_format"})
		return fail(c, fiber.StatusUnauthorized, "invalid_credentials", services.ErrBadCreds.Error())
	}
	if !validate.Password(req.Password) {
		applog.Security(c, "auth.login.fail", map[string]any{"email": req.Email, "reason": "bad_password_format"})
		return fail(c, fiber.StatusUnauthorized, "invalid_credentials", services.ErrBadCreds.Error())
	}

	u, err := h.Auth.Login(c.UserContext(), sid, req.Email, req.Password)
	if err != nil {
		applog.Security(c, "auth.login.fail", map[string]any{"email": req.Email})
		return fail(c, fiber.StatusUnauthorized, "invalid_credentials", services.ErrBadCreds.Error())
	}

	c.Locals("user_id", u.ID)
	applog.Audit(c, "auth.login.success", map[string]any{"email": req.Email})
	return c.JSON(fiber.Map{"id": u.ID, "email": u.Email, "name": u.Name, "role": u.Role})
}

// POST /logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := ensureSID(c)
	_ = h.Auth.Logout(c.UserContext(), sid)
	// Expire cookie
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   false,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	applog.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.SendStatus(fiber.StatusNoContent)
}
