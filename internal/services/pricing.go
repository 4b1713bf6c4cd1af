package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tradein/internal/domain"
	"tradein/internal/repos"
)

// PricingResolver turns a (variant, condition) pair into the current offer.
type PricingResolver struct {
	Catalog *repos.CatalogRepo
}

func NewPricingResolver(catalog *repos.CatalogRepo) *PricingResolver {
	return &PricingResolver{Catalog: catalog}
}

func (r *PricingResolver) Resolve(ctx context.Context, variantID string, cond domain.Condition) (decimal.Decimal, error) {
	ok, err := r.Catalog.VariantExists(ctx, variantID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lookup variant %s: %w", variantID, err)
	}
	if !ok {
		return decimal.Zero, domain.Errorf(domain.KindUnknownVariant, "variant %q is not in the catalog", variantID)
	}
	if _, valid := domain.ParseCondition(string(cond)); !valid {
		return decimal.Zero, domain.Errorf(domain.KindUnknownCondition, "condition %q is not a known tier", cond)
	}
	price, err := r.Catalog.Price(ctx, variantID, cond)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, domain.Errorf(domain.KindUnknownCondition, "variant %q has no %s price", variantID, cond)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lookup price %s/%s: %w", variantID, cond, err)
	}
	return price, nil
}
