package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tradein/internal/domain"
	applog "tradein/internal/log"
)

const genericFailure = "Something went wrong. Please try again."

// kindStatus maps expected failure kinds onto HTTP statuses. Kinds missing
// here are state-machine rejections and answer 409.
var kindStatus = map[domain.Kind]int{
	domain.KindNotFound:         fiber.StatusNotFound,
	domain.KindUnknownVariant:   fiber.StatusNotFound,
	domain.KindUnknownCondition: fiber.StatusNotFound,
	domain.KindItemNotFound:     fiber.StatusNotFound,
	domain.KindInvalidInput:     fiber.StatusBadRequest,
	domain.KindQuoteExpired:     fiber.StatusGone,
}

func requestID(c *fiber.Ctx) string {
	rid, _ := c.Locals("requestid").(string)
	return rid
}

func errorBody(c *fiber.Ctx, kind, message string) fiber.Map {
	return fiber.Map{"error": kind, "message": message, "request_id": requestID(c)}
}

// fail answers with a client error of the given kind.
func fail(c *fiber.Ctx, status int, kind domain.Kind, message string) error {
	return c.Status(status).JSON(errorBody(c, string(kind), message))
}

// respondError surfaces expected failures verbatim and hides everything else
// behind a generic 500 after logging it.
func respondError(c *fiber.Ctx, action string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		status, ok := kindStatus[de.Kind]
		if !ok {
			status = fiber.StatusConflict
		}
		msg := de.Message
		if msg == "" {
			msg = string(de.Kind)
		}
		return c.Status(status).JSON(errorBody(c, string(de.Kind), msg))
	}
	applog.Error(c, action+".fail", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody(c, "internal", genericFailure))
}

// ErrorHandler is the fiber-level fallback for errors no handler answered,
// such as unknown routes, oversized bodies and panics recovered upstream.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		kind := "request_rejected"
		switch fe.Code {
		case fiber.StatusNotFound:
			kind = string(domain.KindNotFound)
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnprocessableEntity:
			kind = string(domain.KindInvalidInput)
		}
		return c.Status(fe.Code).JSON(errorBody(c, kind, fe.Message))
	}
	applog.Error(c, "server.error", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody(c, "internal", genericFailure))
}
