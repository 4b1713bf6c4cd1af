package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradein/internal/domain"
	"tradein/internal/services"
)

func TestCatalog_IngestCountsAndVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v, err := e.catalog.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	res, err := e.catalog.Ingest(ctx, fixtureCatalog())
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Version)
	require.Equal(t, 3, res.Models)
	require.Equal(t, 5, res.Variants)
	require.Equal(t, 0, res.PricesChanged)

	// Re-ingesting updates in place instead of duplicating variants.
	m, err := e.catalog.GetModel(ctx, "iphone-13")
	require.NoError(t, err)
	require.Len(t, m.Variants, 2)
}

func TestCatalog_PriceChangeDoesNotTouchIssuedQuotes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	before, err := e.pricing.Resolve(ctx, e.pixel(t), domain.ConditionGood)
	require.NoError(t, err)
	require.True(t, before.Equal(dec("50")))

	q, err := e.quotes.Create(ctx, domain.GuestOwner(), []services.Selection{
		{VariantID: e.pixel(t), Condition: domain.ConditionGood},
	})
	require.NoError(t, err)

	recs := fixtureCatalog()
	recs[1].Variants[0].PricesByCondition = prices("70", "45", "35", "10")
	res, err := e.catalog.Ingest(ctx, recs)
	require.NoError(t, err)
	require.Equal(t, 1, res.PricesChanged)

	after, err := e.pricing.Resolve(ctx, e.pixel(t), domain.ConditionGood)
	require.NoError(t, err)
	require.True(t, after.Equal(dec("45")))

	got, err := e.quotes.Get(ctx, q.Number)
	require.NoError(t, err)
	require.True(t, got.Items[0].OfferAmount.Equal(dec("50")))
	require.Equal(t, int64(1), got.CatalogVersion)
}

func TestCatalog_IngestRejectsBadRecords(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.catalog.Ingest(ctx, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	cases := map[string]domain.CatalogRecord{
		"no brand": {ModelID: "x", Name: "X", Slug: "x"},
		"no slug":  {Brand: "Acme", ModelID: "x", Name: "X"},
		"bad lock": {Brand: "Acme", ModelID: "x", Name: "X", Slug: "x", Variants: []domain.CatalogVariantRecord{
			{Storage: "64GB", LockState: "sim-free"},
		}},
		"bad tier": {Brand: "Acme", ModelID: "x", Name: "X", Slug: "x", Variants: []domain.CatalogVariantRecord{
			{Storage: "64GB", LockState: "unlocked", PricesByCondition: map[string]decimal.Decimal{"mint": dec("10")}},
		}},
		"duplicate tier": {Brand: "Acme", ModelID: "x", Name: "X", Slug: "x", Variants: []domain.CatalogVariantRecord{
			{Storage: "64GB", LockState: "unlocked", PricesByCondition: map[string]decimal.Decimal{"Good": dec("10"), " good": dec("20")}},
		}},
		"negative": {Brand: "Acme", ModelID: "x", Name: "X", Slug: "x", Variants: []domain.CatalogVariantRecord{
			{Storage: "64GB", LockState: "unlocked", PricesByCondition: prices("-5", "", "", "")},
		}},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.catalog.Ingest(ctx, []domain.CatalogRecord{rec})
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	// A rejected batch leaves the catalog untouched.
	v, err := e.catalog.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
	_, err = e.catalog.GetModel(ctx, "x")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_ListAndDetail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	all, err := e.catalog.ListModels(ctx, "", 1, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Apple", all[0].Brand)

	google, err := e.catalog.ListModels(ctx, "google", 1, 0)
	require.NoError(t, err)
	require.Len(t, google, 1)
	require.Equal(t, "pixel-7", google[0].Slug)

	page2, err := e.catalog.ListModels(ctx, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)

	m, err := e.catalog.GetModel(ctx, "galaxy-s22")
	require.NoError(t, err)
	require.Len(t, m.Variants, 2)
	for _, v := range m.Variants {
		if v.Storage == "256GB" {
			_, ok := v.Prices[domain.ConditionFair]
			require.False(t, ok)
			require.True(t, v.Prices[domain.ConditionGood].Equal(dec("90")))
		}
	}

	_, err = e.catalog.GetModel(ctx, "nokia-3310")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPricing_Resolve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	unlocked := e.iphone(t)
	locked := e.variant(t, "iphone-13", "128GB", domain.LockStateLocked)

	for range 3 {
		p, err := e.pricing.Resolve(ctx, unlocked, domain.ConditionFair)
		require.NoError(t, err)
		require.True(t, p.Equal(dec("60")))
	}
	p, err := e.pricing.Resolve(ctx, locked, domain.ConditionFair)
	require.NoError(t, err)
	require.True(t, p.Equal(dec("45")))

	_, err = e.pricing.Resolve(ctx, "no-such-variant", domain.ConditionGood)
	require.ErrorIs(t, err, domain.ErrUnknownVariant)

	_, err = e.pricing.Resolve(ctx, unlocked, domain.Condition("mint"))
	require.ErrorIs(t, err, domain.ErrUnknownCondition)

	_, err = e.pricing.Resolve(ctx, e.variant(t, "galaxy-s22", "256GB", domain.LockStateUnlocked), domain.ConditionFair)
	require.ErrorIs(t, err, domain.ErrUnknownCondition)
}
