package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tradein/internal/domain"
	applog "tradein/internal/log"
	"tradein/internal/services"
	"tradein/internal/validate"
)

type CarrierHandler struct {
	Orders *services.OrderService
}

type carrierEvent struct {
	TrackingNumber string `json:"trackingNumber"`
	OrderNumber    string `json:"orderNumber"`
	EventType      string `json:"eventType"`
	Timestamp      string `json:"timestamp"`
}

// POST /carrier/events
func (h *CarrierHandler) Event(c *fiber.Ctx) error {
	var ev carrierEvent
	if err := c.BodyParser(&ev); err != nil {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "malformed body")
	}
	number, ok := validate.OrderNumber(ev.OrderNumber)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "orderNumber"})
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid order number")
	}
	eventType, ok := validate.EventType(ev.EventType)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "eventType"})
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid event type")
	}

	res, err := h.Orders.OnCarrierEvent(c.UserContext(), number, eventType)
	if err != nil {
		return respondError(c, "carrier.event", err)
	}
	applog.Info(c, "carrier.event", map[string]any{
		"order": number, "event_type": eventType, "tracking": ev.TrackingNumber, "outcome": res.Outcome,
	})
	return c.JSON(res)
}
