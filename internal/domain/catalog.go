package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Condition is a declared or inspected grade of a device.
type Condition string

const (
	ConditionFlawless Condition = "flawless"
	ConditionGood     Condition = "good"
	ConditionFair     Condition = "fair"
	ConditionBroken   Condition = "broken"
)

// Conditions lists every tier from best to worst.
var Conditions = []Condition{ConditionFlawless, ConditionGood, ConditionFair, ConditionBroken}

func ParseCondition(s string) (Condition, bool) {
	c := Condition(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ConditionFlawless, ConditionGood, ConditionFair, ConditionBroken:
		return c, true
	}
	return "", false
}

// LockState is part of a variant's identity: a locked and an unlocked unit
// of the same model are priced independently.
type LockState string

const (
	LockStateLocked   LockState = "locked"
	LockStateUnlocked LockState = "unlocked"
)

func ParseLockState(s string) (LockState, bool) {
	l := LockState(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LockStateLocked, LockStateUnlocked:
		return l, true
	}
	return "", false
}

type DeviceModel struct {
	ID        string `db:"id" json:"-"`
	Brand     string `db:"brand" json:"brand"`
	ModelID   string `db:"model_id" json:"modelId"`
	Name      string `db:"name" json:"name"`
	Slug      string `db:"slug" json:"slug"`
	ImageURL  string `db:"image_url" json:"image,omitempty"`
	Year      int    `db:"year" json:"year,omitempty"`
	CreatedAt string `db:"created_at" json:"-"`
	UpdatedAt string `db:"updated_at" json:"-"`
}

type DeviceVariant struct {
	ID        string                        `db:"id" json:"id"`
	ModelID   string                        `db:"model_id" json:"-"`
	Storage   string                        `db:"storage" json:"storage"`
	Color     string                        `db:"color" json:"color,omitempty"`
	LockState LockState                     `db:"lock_state" json:"lockState"`
	Prices    map[Condition]decimal.Decimal `db:"-" json:"prices,omitempty"`
}

type ConditionPrice struct {
	VariantID string          `db:"variant_id"`
	Condition Condition       `db:"condition"`
	Price     decimal.Decimal `db:"price"`
	Version   int64           `db:"version"`
}

// ModelDetail is a model together with its variants and their price tables.
type ModelDetail struct {
	DeviceModel
	Variants []DeviceVariant `json:"variants"`
}

// CatalogRecord is the shape produced by any catalog ingestion feed.
type CatalogRecord struct {
	Brand    string                 `json:"brand" yaml:"brand"`
	ModelID  string                 `json:"modelId" yaml:"modelId"`
	Name     string                 `json:"name" yaml:"name"`
	Slug     string                 `json:"slug" yaml:"slug"`
	Image    string                 `json:"image,omitempty" yaml:"image,omitempty"`
	Year     int                    `json:"year,omitempty" yaml:"year,omitempty"`
	Variants []CatalogVariantRecord `json:"variants" yaml:"variants"`
}

type CatalogVariantRecord struct {
	Storage           string                     `json:"storage" yaml:"storage"`
	Color             string                     `json:"color,omitempty" yaml:"color,omitempty"`
	LockState         string                     `json:"lockState" yaml:"lockState"`
	PricesByCondition map[string]decimal.Decimal `json:"pricesByCondition" yaml:"pricesByCondition"`
}
