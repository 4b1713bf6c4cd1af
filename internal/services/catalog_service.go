package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tradein/internal/domain"
	applog "tradein/internal/log"
	"tradein/internal/metrics"
	"tradein/internal/repos"
)

const catalogSequence = "catalog"

type CatalogService struct {
	Store *repos.Store
	Now   Clock
}

func NewCatalogService(store *repos.Store) *CatalogService {
	return &CatalogService{Store: store}
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	Version       int64 `json:"version"`
	Models        int   `json:"models"`
	Variants      int   `json:"variants"`
	PricesChanged int   `json:"pricesChanged"`
}

// Ingest applies a batch of feed records in one transaction. Models,
// variants and prices are inserted or overridden; nothing is deleted.
func (s *CatalogService) Ingest(ctx context.Context, records []domain.CatalogRecord) (IngestResult, error) {
	if len(records) == 0 {
		return IngestResult{}, domain.Errorf(domain.KindInvalidInput, "catalog batch is empty")
	}
	for i, rec := range records {
		if err := validateRecord(rec); err != nil {
			return IngestResult{}, domain.Errorf(domain.KindInvalidInput, "record %d (%s): %s", i, rec.ModelID, err)
		}
	}

	now := s.Now.now()
	var res IngestResult
	err := s.Store.InTx(ctx, func(tx *repos.Store) error {
		version, err := tx.Sequences.Next(ctx, catalogSequence)
		if err != nil {
			return fmt.Errorf("bump catalog version: %w", err)
		}
		res = IngestResult{Version: version}

		for _, rec := range records {
			modelID, err := tx.Catalog.UpsertModel(ctx, domain.DeviceModel{
				Brand:    strings.TrimSpace(rec.Brand),
				ModelID:  strings.TrimSpace(rec.ModelID),
				Name:     strings.TrimSpace(rec.Name),
				Slug:     strings.TrimSpace(rec.Slug),
				ImageURL: rec.Image,
				Year:     rec.Year,
			}, now)
			if err != nil {
				return fmt.Errorf("upsert model %s: %w", rec.ModelID, err)
			}
			res.Models++

			for _, vr := range rec.Variants {
				lock, _ := domain.ParseLockState(vr.LockState)
				variantID, err := tx.Catalog.UpsertVariant(ctx, modelID, domain.DeviceVariant{
					Storage:   strings.TrimSpace(vr.Storage),
					Color:     strings.TrimSpace(vr.Color),
					LockState: lock,
				}, now)
				if err != nil {
					return fmt.Errorf("upsert variant %s/%s: %w", rec.ModelID, vr.Storage, err)
				}
				res.Variants++

				for raw, price := range vr.PricesByCondition {
					cond, _ := domain.ParseCondition(raw)
					changed, err := tx.Catalog.SetPrice(ctx, variantID, cond, price, version, now)
					if err != nil {
						return fmt.Errorf("set price %s/%s: %w", variantID, cond, err)
					}
					if changed {
						res.PricesChanged++
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}

	metrics.CatalogPrices.Add(float64(res.PricesChanged))
	applog.L().Info("catalog.ingest",
		zap.Int64("version", res.Version),
		zap.Int("models", res.Models),
		zap.Int("variants", res.Variants),
		zap.Int("prices_changed", res.PricesChanged),
	)
	return res, nil
}

func validateRecord(rec domain.CatalogRecord) error {
	switch {
	case strings.TrimSpace(rec.Brand) == "":
		return errors.New("brand is required")
	case strings.TrimSpace(rec.ModelID) == "":
		return errors.New("modelId is required")
	case strings.TrimSpace(rec.Name) == "":
		return errors.New("name is required")
	case strings.TrimSpace(rec.Slug) == "":
		return errors.New("slug is required")
	}
	for _, v := range rec.Variants {
		if strings.TrimSpace(v.Storage) == "" {
			return errors.New("variant storage is required")
		}
		if _, ok := domain.ParseLockState(v.LockState); !ok {
			return fmt.Errorf("unknown lock state %q", v.LockState)
		}
		seen := make(map[domain.Condition]string, len(v.PricesByCondition))
		for raw, price := range v.PricesByCondition {
			cond, ok := domain.ParseCondition(raw)
			if !ok {
				return fmt.Errorf("unknown condition %q", raw)
			}
			if other, dup := seen[cond]; dup {
				return fmt.Errorf("conditions %q and %q both name %s for %s", other, raw, cond, v.Storage)
			}
			seen[cond] = raw
			if price.IsNegative() {
				return fmt.Errorf("negative %s price for %s", raw, v.Storage)
			}
		}
	}
	return nil
}

// Version returns the current catalog version, 0 before the first ingestion.
func (s *CatalogService) Version(ctx context.Context) (int64, error) {
	return s.Store.Sequences.Current(ctx, catalogSequence)
}

func (s *CatalogService) ListModels(ctx context.Context, brand string, page, pageSize int) ([]domain.DeviceModel, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 24
	}
	offset := (page - 1) * pageSize
	return s.Store.Catalog.ListModels(ctx, brand, pageSize, offset)
}

// GetModel returns the model with its variants and price tables.
func (s *CatalogService) GetModel(ctx context.Context, slug string) (domain.ModelDetail, error) {
	m, err := s.Store.Catalog.ModelBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ModelDetail{}, domain.Errorf(domain.KindNotFound, "model %q not found", slug)
	}
	if err != nil {
		return domain.ModelDetail{}, fmt.Errorf("load model %s: %w", slug, err)
	}
	variants, err := s.Store.Catalog.VariantsForModel(ctx, m.ID)
	if err != nil {
		return domain.ModelDetail{}, fmt.Errorf("load variants of %s: %w", slug, err)
	}
	return domain.ModelDetail{DeviceModel: m, Variants: variants}, nil
}
