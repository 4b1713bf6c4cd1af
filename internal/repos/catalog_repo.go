package repos

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"tradein/internal/domain"
)

type CatalogRepo struct{ db sqlx.ExtContext }

func NewCatalogRepo(db sqlx.ExtContext) *CatalogRepo { return &CatalogRepo{db: db} }

// UpsertModel inserts the model or overrides its descriptive fields, keyed
// by ModelID. The internal id never changes once assigned.
func (r *CatalogRepo) UpsertModel(ctx context.Context, m domain.DeviceModel, now time.Time) (string, error) {
	var id string
	err := sqlx.GetContext(ctx, r.db, &id, `SELECT id FROM device_models WHERE model_id = ?`, m.ModelID)
	switch {
	case err == nil:
		_, err = r.db.ExecContext(ctx, `
			UPDATE device_models
			SET brand = ?, name = ?, slug = ?, image_url = ?, year = ?, updated_at = ?
			WHERE id = ?
		`, m.Brand, m.Name, m.Slug, m.ImageURL, m.Year, formatTime(now), id)
		return id, err
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO device_models(id, brand, model_id, name, slug, image_url, year, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, m.Brand, m.ModelID, m.Name, m.Slug, m.ImageURL, m.Year, formatTime(now))
		return id, err
	default:
		return "", err
	}
}

// UpsertVariant returns the id of the (model, storage, color, lock state)
// variant, creating it when missing.
func (r *CatalogRepo) UpsertVariant(ctx context.Context, modelID string, v domain.DeviceVariant, now time.Time) (string, error) {
	var id string
	err := sqlx.GetContext(ctx, r.db, &id, `
		SELECT id FROM device_variants
		WHERE model_id = ? AND storage = ? AND color = ? AND lock_state = ?
	`, modelID, v.Storage, v.Color, string(v.LockState))
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO device_variants(id, model_id, storage, color, lock_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, modelID, v.Storage, v.Color, string(v.LockState), formatTime(now))
	return id, err
}

// SetPrice overrides the price of one condition tier and appends the change
// to price_history. It reports false when the price was already current.
func (r *CatalogRepo) SetPrice(ctx context.Context, variantID string, cond domain.Condition, price decimal.Decimal, version int64, now time.Time) (bool, error) {
	var existing decimal.Decimal
	err := sqlx.GetContext(ctx, r.db, &existing, `
		SELECT price FROM condition_prices WHERE variant_id = ? AND condition = ?
	`, variantID, string(cond))
	if err == nil && existing.Equal(price) {
		return false, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO condition_prices(variant_id, condition, price, version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(variant_id, condition) DO UPDATE
		SET price = excluded.price, version = excluded.version, updated_at = excluded.updated_at
	`, variantID, string(cond), price.String(), version, formatTime(now)); err != nil {
		return false, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO price_history(variant_id, condition, price, version, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, variantID, string(cond), price.String(), version, formatTime(now))
	return err == nil, err
}

// Price returns sql.ErrNoRows when the variant has no entry for cond.
func (r *CatalogRepo) Price(ctx context.Context, variantID string, cond domain.Condition) (decimal.Decimal, error) {
	var p decimal.Decimal
	err := sqlx.GetContext(ctx, r.db, &p, `
		SELECT price FROM condition_prices WHERE variant_id = ? AND condition = ?
	`, variantID, string(cond))
	return p, err
}

func (r *CatalogRepo) VariantExists(ctx context.Context, variantID string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM device_variants WHERE id = ?`, variantID)
	return n > 0, err
}

func (r *CatalogRepo) ModelBySlug(ctx context.Context, slug string) (domain.DeviceModel, error) {
	var m domain.DeviceModel
	err := sqlx.GetContext(ctx, r.db, &m, `
	  SELECT id, brand, model_id, name, slug, image_url, year, created_at, updated_at
	  FROM device_models
	  WHERE slug = ?
	`, slug)
	return m, err
}

func (r *CatalogRepo) ListModels(ctx context.Context, brand string, limit, offset int) ([]domain.DeviceModel, error) {
	where := `1 = 1`
	args := []any{}
	if brand != "" {
		where += ` AND LOWER(brand) = ?`
		args = append(args, strings.ToLower(brand))
	}
	args = append(args, limit, offset)

	out := []domain.DeviceModel{}
	err := sqlx.SelectContext(ctx, r.db, &out, `
	  SELECT id, brand, model_id, name, slug, image_url, year, created_at, updated_at
	  FROM device_models
	  WHERE `+where+`
	  ORDER BY brand, name
	  LIMIT ? OFFSET ?
	`, args...)
	return out, err
}

// VariantsForModel returns the variants of a model with their price tables.
func (r *CatalogRepo) VariantsForModel(ctx context.Context, modelID string) ([]domain.DeviceVariant, error) {
	variants := []domain.DeviceVariant{}
	if err := sqlx.SelectContext(ctx, r.db, &variants, `
	  SELECT id, model_id, storage, color, lock_state
	  FROM device_variants
	  WHERE model_id = ?
	  ORDER BY storage, color, lock_state
	`, modelID); err != nil {
		return nil, err
	}

	var prices []domain.ConditionPrice
	if err := sqlx.SelectContext(ctx, r.db, &prices, `
	  SELECT cp.variant_id, cp.condition, cp.price, cp.version
	  FROM condition_prices cp
	  JOIN device_variants v ON v.id = cp.variant_id
	  WHERE v.model_id = ?
	`, modelID); err != nil {
		return nil, err
	}
	byVariant := make(map[string]map[domain.Condition]decimal.Decimal, len(variants))
	for _, p := range prices {
		if byVariant[p.VariantID] == nil {
			byVariant[p.VariantID] = map[domain.Condition]decimal.Decimal{}
		}
		byVariant[p.VariantID][p.Condition] = p.Price
	}
	for i := range variants {
		variants[i].Prices = byVariant[variants[i].ID]
	}
	return variants, nil
}
