package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradein/internal/domain"
	"tradein/internal/repos"
	"tradein/internal/services"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	store       *repos.Store
	clock       *fakeClock
	catalog     *services.CatalogService
	pricing     *services.PricingResolver
	quotes      *services.QuoteService
	orders      *services.OrderService
	inspections *services.InspectionService
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func prices(flawless, good, fair, broken string) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for k, v := range map[string]string{"flawless": flawless, "good": good, "fair": fair, "broken": broken} {
		if v != "" {
			out[k] = dec(v)
		}
	}
	return out
}

func fixtureCatalog() []domain.CatalogRecord {
	return []domain.CatalogRecord{
		{
			Brand: "Apple", ModelID: "iphone-13", Name: "iPhone 13", Slug: "iphone-13", Year: 2021,
			Variants: []domain.CatalogVariantRecord{
				{Storage: "128GB", LockState: "unlocked", PricesByCondition: prices("100", "80", "60", "20")},
				{Storage: "128GB", LockState: "locked", PricesByCondition: prices("85", "65", "45", "15")},
			},
		},
		{
			Brand: "Google", ModelID: "pixel-7", Name: "Pixel 7", Slug: "pixel-7",
			Variants: []domain.CatalogVariantRecord{
				{Storage: "128GB", LockState: "unlocked", PricesByCondition: prices("70", "50", "35", "10")},
			},
		},
		{
			Brand: "Samsung", ModelID: "galaxy-s22", Name: "Galaxy S22", Slug: "galaxy-s22",
			Variants: []domain.CatalogVariantRecord{
				{Storage: "128GB", LockState: "unlocked", PricesByCondition: prices("90", "75", "60", "15")},
				{Storage: "256GB", LockState: "unlocked", PricesByCondition: prices("110", "90", "", "20")},
			},
		},
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repos.NewStore(db)
	clock := newFakeClock()
	pricing := services.NewPricingResolver(store.Catalog)

	e := &env{
		store:       store,
		clock:       clock,
		catalog:     services.NewCatalogService(store),
		pricing:     pricing,
		quotes:      services.NewQuoteService(store, pricing, services.DefaultQuoteTTL, "USD"),
		orders:      services.NewOrderService(store),
		inspections: services.NewInspectionService(store, pricing),
	}
	e.catalog.Now = clock.Now
	e.quotes.Now = clock.Now
	e.orders.Now = clock.Now
	e.inspections.Now = clock.Now

	_, err = e.catalog.Ingest(context.Background(), fixtureCatalog())
	require.NoError(t, err)
	return e
}

// variant finds a fixture variant id by model slug, storage and lock state.
func (e *env) variant(t *testing.T, slug, storage string, lock domain.LockState) string {
	t.Helper()
	m, err := e.catalog.GetModel(context.Background(), slug)
	require.NoError(t, err)
	for _, v := range m.Variants {
		if v.Storage == storage && v.LockState == lock {
			return v.ID
		}
	}
	t.Fatalf("variant %s/%s/%s not in fixture", slug, storage, lock)
	return ""
}

func (e *env) iphone(t *testing.T) string {
	return e.variant(t, "iphone-13", "128GB", domain.LockStateUnlocked)
}

func (e *env) pixel(t *testing.T) string {
	return e.variant(t, "pixel-7", "128GB", domain.LockStateUnlocked)
}

func (e *env) galaxy(t *testing.T) string {
	return e.variant(t, "galaxy-s22", "128GB", domain.LockStateUnlocked)
}

// threeItemOrder creates the $100/$50/$75 order and brings it to inspection.
func (e *env) threeItemOrder(t *testing.T) domain.Order {
	t.Helper()
	ctx := context.Background()
	q, err := e.quotes.Create(ctx, domain.GuestOwner(), []services.Selection{
		{VariantID: e.iphone(t), Condition: domain.ConditionFlawless},
		{VariantID: e.pixel(t), Condition: domain.ConditionGood},
		{VariantID: e.galaxy(t), Condition: domain.ConditionGood},
	})
	require.NoError(t, err)
	o, err := e.quotes.Accept(ctx, q.Number)
	require.NoError(t, err)
	_, err = e.orders.MarkShipped(ctx, o.Number)
	require.NoError(t, err)
	o, err = e.orders.MarkReceived(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, domain.OrderInspectionPending, o.Status)
	return o
}

// finalizedOrder inspects every line at its declared condition and finalizes.
func (e *env) finalizedOrder(t *testing.T) domain.Order {
	t.Helper()
	ctx := context.Background()
	o := e.threeItemOrder(t)
	for _, it := range o.Items {
		_, err := e.inspections.Record(ctx, o.Number, it.Line, string(it.DeclaredCondition), nil)
		require.NoError(t, err)
	}
	o, err := e.orders.Finalize(ctx, o.Number)
	require.NoError(t, err)
	return o
}
