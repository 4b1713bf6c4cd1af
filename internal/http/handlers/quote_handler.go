package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tradein/internal/domain"
	applog "tradein/internal/log"
	"tradein/internal/services"
	"tradein/internal/validate"
)

type QuoteHandler struct {
	Quotes *services.QuoteService
}

type createQuoteRequest struct {
	Items []services.Selection `json:"items"`
}

// POST /quotes
func (h *QuoteHandler) Create(c *fiber.Ctx) error {
	var req createQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "malformed body")
	}
	for i, it := range req.Items {
		id, ok := validate.ID(it.VariantID)
		if !ok {
			return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid variantId")
		}
		req.Items[i].VariantID = id
	}

	q, err := h.Quotes.Create(c.UserContext(), owner(c), req.Items)
	if err != nil {
		return respondError(c, "quote.create", err)
	}
	applog.Audit(c, "quote.create", map[string]any{
		"quote": q.Number, "items": len(q.Items), "total": q.TotalOfferAmount.String(),
	})
	return c.Status(fiber.StatusCreated).JSON(q)
}

func quoteNumber(c *fiber.Ctx) (string, bool) {
	return validate.QuoteNumber(c.Params("number"))
}

// GET /quotes/:number
func (h *QuoteHandler) Get(c *fiber.Ctx) error {
	number, ok := quoteNumber(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid quote number")
	}
	q, err := h.Quotes.Get(c.UserContext(), number)
	if err != nil {
		return respondError(c, "quote.get", err)
	}
	return c.JSON(q)
}

// POST /quotes/:number/accept
func (h *QuoteHandler) Accept(c *fiber.Ctx) error {
	number, ok := quoteNumber(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid quote number")
	}
	o, err := h.Quotes.Accept(c.UserContext(), number)
	if err != nil {
		return respondError(c, "quote.accept", err)
	}
	applog.Audit(c, "quote.accept", map[string]any{"quote": number, "order": o.Number})
	return c.Status(fiber.StatusCreated).JSON(domain.NewOrderView(o, nil))
}

// POST /quotes/:number/decline
func (h *QuoteHandler) Decline(c *fiber.Ctx) error {
	number, ok := quoteNumber(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid quote number")
	}
	q, err := h.Quotes.Decline(c.UserContext(), number)
	if err != nil {
		return respondError(c, "quote.decline", err)
	}
	applog.Audit(c, "quote.decline", map[string]any{"quote": number})
	return c.JSON(q)
}

// POST /quotes/:number/claim
func (h *QuoteHandler) Claim(c *fiber.Ctx) error {
	number, ok := quoteNumber(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid quote number")
	}
	q, err := h.Quotes.Claim(c.UserContext(), number, currentUser(c).ID)
	if err != nil {
		return respondError(c, "quote.claim", err)
	}
	applog.Audit(c, "quote.claim", map[string]any{"quote": number})
	return c.JSON(q)
}

// GET /me/quotes
func (h *QuoteHandler) Mine(c *fiber.Ctx) error {
	qs, err := h.Quotes.ListForOwner(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return respondError(c, "quote.list", err)
	}
	return c.JSON(fiber.Map{"quotes": qs})
}
