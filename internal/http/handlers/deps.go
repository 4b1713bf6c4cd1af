package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/jmoiron/sqlx"

	"tradein/internal/config"
	applog "tradein/internal/log"
	"tradein/internal/metrics"
	"tradein/internal/repos"
	"tradein/internal/services"
)

type Deps struct {
	Auth        *services.AuthService
	Catalog     *services.CatalogService
	Quotes      *services.QuoteService
	Orders      *services.OrderService
	Inspections *services.InspectionService

	AuthHandler    *AuthHandler
	QuoteHandler   *QuoteHandler
	OrderHandler   *OrderHandler
	CatalogHandler *CatalogHandler
	CarrierHandler *CarrierHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config) *Deps {
	store := repos.NewStore(db)
	userRepo := repos.NewUserRepo(db)

	pricing := services.NewPricingResolver(store.Catalog)
	authSvc := services.NewAuthService(userRepo)
	catalogSvc := services.NewCatalogService(store)
	quoteSvc := services.NewQuoteService(store, pricing, cfg.QuoteTTL, cfg.Currency)
	orderSvc := services.NewOrderService(store)
	inspectSvc := services.NewInspectionService(store, pricing)

	return &Deps{
		Auth:        authSvc,
		Catalog:     catalogSvc,
		Quotes:      quoteSvc,
		Orders:      orderSvc,
		Inspections: inspectSvc,

		AuthHandler:    &AuthHandler{Auth: authSvc},
		QuoteHandler:   &QuoteHandler{Quotes: quoteSvc},
		OrderHandler:   &OrderHandler{Orders: orderSvc, Inspections: inspectSvc},
		CatalogHandler: &CatalogHandler{Catalog: catalogSvc},
		CarrierHandler: &CarrierHandler{Orders: orderSvc},
	}
}

// Mount registers the API routes. Global middleware (request id, access log,
// helmet, global limiter) is the caller's business.
func (d *Deps) Mount(app *fiber.App) {
	app.Use(Identify(d.Auth))

	// Health & metrics
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", metrics.Handler())

	// Auth routes (login throttled)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return fail(c, fiber.StatusTooManyRequests, "rate_limited", "Too many attempts. Please try again later.")
		},
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)

	// Catalog
	app.Get("/catalog/models", d.CatalogHandler.List)
	app.Get("/catalog/models/:slug", d.CatalogHandler.Detail)
	app.Post("/catalog/import", RequireStaff(), d.CatalogHandler.Import)

	// Quotes
	app.Post("/quotes", d.QuoteHandler.Create)
	app.Get("/quotes/:number", d.QuoteHandler.Get)
	app.Post("/quotes/:number/accept", d.QuoteHandler.Accept)
	app.Post("/quotes/:number/decline", d.QuoteHandler.Decline)
	app.Post("/quotes/:number/claim", RequireUser(), d.QuoteHandler.Claim)

	// Orders
	app.Get("/orders/:number", d.OrderHandler.Get)
	app.Post("/orders/:number/cancel", d.OrderHandler.Cancel)

	staff := RequireStaff()
	app.Get("/orders", staff, d.OrderHandler.Recent)
	app.Post("/orders/:number/ship", staff, d.OrderHandler.Ship)
	app.Post("/orders/:number/receive", staff, d.OrderHandler.Receive)
	app.Post("/orders/:number/items/:itemId/inspect", staff, d.OrderHandler.Inspect)
	app.Post("/orders/:number/finalize", staff, d.OrderHandler.Finalize)
	app.Post("/orders/:number/payout/start", staff, d.OrderHandler.StartPayout)
	app.Post("/orders/:number/payout/paid", staff, d.OrderHandler.MarkPaid)
	app.Post("/orders/:number/payout/failed", staff, d.OrderHandler.PayoutFailed)
	app.Post("/orders/:number/payout/retry", staff, d.OrderHandler.RetryPayout)

	// Account
	app.Get("/me/quotes", RequireUser(), d.QuoteHandler.Mine)
	app.Get("/me/orders", RequireUser(), d.OrderHandler.Mine)

	// Carrier webhook
	carrierLimiter := limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|carrier"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.carrier.hit", nil)
			return fail(c, fiber.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry soon")
		},
	})
	app.Post("/carrier/events", carrierLimiter, d.CarrierHandler.Event)

	// 404
	app.Use(func(c *fiber.Ctx) error {
		return fail(c, fiber.StatusNotFound, "not_found", "route not found")
	})
}
