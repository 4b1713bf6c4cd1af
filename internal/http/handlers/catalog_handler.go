package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tradein/internal/catalogfeed"
	"tradein/internal/domain"
	applog "tradein/internal/log"
	"tradein/internal/services"
	"tradein/internal/validate"
)

type CatalogHandler struct {
	Catalog *services.CatalogService
}

// GET /catalog/models?brand=&page=
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	brand, ok := validate.Brand(c.Query("brand"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "brand"})
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid brand")
	}
	page := validate.Page(c.Query("page", "1"))
	models, err := h.Catalog.ListModels(c.UserContext(), brand, page, 24)
	if err != nil {
		return respondError(c, "catalog.list", err)
	}
	return c.JSON(fiber.Map{"models": models, "page": page})
}

// GET /catalog/models/:slug
func (h *CatalogHandler) Detail(c *fiber.Ctx) error {
	slug, ok := validate.Slug(c.Params("slug"))
	if !ok {
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "invalid slug")
	}
	m, err := h.Catalog.GetModel(c.UserContext(), slug)
	if err != nil {
		return respondError(c, "catalog.detail", err)
	}
	return c.JSON(m)
}

// POST /catalog/import (staff). The body is a YAML or JSON feed document.
func (h *CatalogHandler) Import(c *fiber.Ctx) error {
	records, err := catalogfeed.Parse(c.Body())
	if err != nil {
		applog.Security(c, "validation.fail", map[string]any{"field": "catalog"})
		return fail(c, fiber.StatusBadRequest, domain.KindInvalidInput, "catalog feed could not be decoded")
	}
	res, err := h.Catalog.Ingest(c.UserContext(), records)
	if err != nil {
		return respondError(c, "catalog.import", err)
	}
	applog.Audit(c, "catalog.import", map[string]any{
		"version": res.Version, "models": res.Models, "prices_changed": res.PricesChanged,
	})
	return c.JSON(res)
}
