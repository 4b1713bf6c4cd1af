package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"tradein/internal/domain"
	applog "tradein/internal/log"
	"tradein/internal/services"
	"tradein/internal/validate"
)

type OrderHandler struct {
	Orders      *services.OrderService
	Inspections *services.InspectionService
}

func orderNumber(c *fiber.Ctx) (string, bool) {
	number, ok := validate.OrderNumber(c.Params("number"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "number"})
	}
	return number, ok
}

// GET /orders/:number
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	number, ok := orderNumber(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid order number")
	}
	v, err := h.Orders.Get(c.UserContext(), number)
	if err != nil {
		return respondError(c, "order.get", err)
	}
	return c.JSON(v)
}

// GET /orders (staff)
func (h *OrderHandler) Recent(c *fiber.Ctx) error {
	limit := validate.Page(c.Query("limit", "100"))
	vs, err := h.Orders.ListRecent(c.UserContext(), limit)
	if err != nil {
		return respondError(c, "order.list", err)
	}
	return c.JSON(fiber.Map{"orders": vs})
}

// GET /me/orders
func (h *OrderHandler) Mine(c *fiber.Ctx) error {
	vs, err := h.Orders.ListForOwner(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return respondError(c, "order.list", err)
	}
	return c.JSON(fiber.Map{"orders": vs})
}

// transition wraps the order operations that only need the order number.
func (h *OrderHandler) transition(action string, op func(ctx context.Context, number string) (domain.Order, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number, ok := orderNumber(c)
		if !ok {
			return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid order number")
		}
		o, err := op(c.UserContext(), number)
		if err != nil {
			return respondError(c, action, err)
		}
		applog.Audit(c, action, map[string]any{
			"order": number, "status": string(o.Status), "payout": string(o.PayoutStatus),
		})
		return c.JSON(domain.NewOrderView(o, nil))
	}
}

// POST /orders/:number/ship
func (h *OrderHandler) Ship(c *fiber.Ctx) error {
	return h.transition("order.ship", h.Orders.MarkShipped)(c)
}

// POST /orders/:number/receive
func (h *OrderHandler) Receive(c *fiber.Ctx) error {
	return h.transition("order.receive", h.Orders.MarkReceived)(c)
}

// POST /orders/:number/finalize
func (h *OrderHandler) Finalize(c *fiber.Ctx) error {
	return h.transition("order.finalize", h.Orders.Finalize)(c)
}

// POST /orders/:number/payout/start
func (h *OrderHandler) StartPayout(c *fiber.Ctx) error {
	return h.transition("payout.start", h.Orders.StartPayout)(c)
}

// POST /orders/:number/payout/paid
func (h *OrderHandler) MarkPaid(c *fiber.Ctx) error {
	return h.transition("payout.paid", h.Orders.MarkPaid)(c)
}

// POST /orders/:number/payout/retry
func (h *OrderHandler) RetryPayout(c *fiber.Ctx) error {
	return h.transition("payout.retry", h.Orders.RetryPayout)(c)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func parseReason(c *fiber.Ctx) (string, bool) {
	var req reasonRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return "", false
		}
	}
	return validate.Reason(req.Reason)
}

// POST /orders/:number/payout/failed
func (h *OrderHandler) PayoutFailed(c *fiber.Ctx) error {
	reason, ok := parseReason(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid reason")
	}
	return h.transition("payout.failed", func(ctx context.Context, number string) (domain.Order, error) {
		return h.Orders.MarkPayoutFailed(ctx, number, reason)
	})(c)
}

// POST /orders/:number/cancel
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	reason, ok := parseReason(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid reason")
	}
	return h.transition("order.cancel", func(ctx context.Context, number string) (domain.Order, error) {
		return h.Orders.Cancel(ctx, number, reason)
	})(c)
}

type inspectRequest struct {
	ProfileID     string           `json:"profileId"`
	OverridePrice *decimal.Decimal `json:"overridePrice"`
}

// POST /orders/:number/items/:itemId/inspect
func (h *OrderHandler) Inspect(c *fiber.Ctx) error {
	number, ok := orderNumber(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid order number")
	}
	line, ok := validate.Line(c.Params("itemId"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "itemId"})
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid item id")
	}
	var req inspectRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "malformed body")
	}

	o, err := h.Inspections.Record(c.UserContext(), number, line, req.ProfileID, req.OverridePrice)
	if err != nil {
		return respondError(c, "order.inspect", err)
	}
	fields := map[string]any{"order": number, "line": line, "profile": req.ProfileID, "status": string(o.Status)}
	if req.OverridePrice != nil {
		fields["override"] = req.OverridePrice.String()
	}
	applog.Audit(c, "order.inspect", fields)
	return c.JSON(domain.NewOrderView(o, nil))
}
