package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OwnerKind string

const (
	OwnerGuest OwnerKind = "guest"
	OwnerUser  OwnerKind = "user"
)

// Owner is either a guest or a known user. A guest owner has no UserID.
// Only the kind is ever rendered.
type Owner struct {
	Kind   OwnerKind `json:"kind"`
	UserID string    `json:"-"`
}

func GuestOwner() Owner { return Owner{Kind: OwnerGuest} }

func UserOwner(id string) Owner { return Owner{Kind: OwnerUser, UserID: id} }

func (o Owner) IsGuest() bool { return o.Kind != OwnerUser }

type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pending"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteDeclined QuoteStatus = "declined"
	QuoteExpired  QuoteStatus = "expired"
)

type Quote struct {
	ID               string          `json:"-"`
	Number           string          `json:"number"`
	Owner            Owner           `json:"owner"`
	Status           QuoteStatus     `json:"status"`
	Currency         string          `json:"currency"`
	CatalogVersion   int64           `json:"catalogVersion"`
	CreatedAt        time.Time       `json:"createdAt"`
	ExpiresAt        time.Time       `json:"expiresAt"`
	DecidedAt        *time.Time      `json:"decidedAt,omitempty"`
	Items            []QuoteItem     `json:"items"`
	TotalOfferAmount decimal.Decimal `json:"totalOfferAmount"`
}

// QuoteItem holds the offer resolved when the quote was issued. OfferAmount
// is a snapshot and is never recomputed from the live catalog.
type QuoteItem struct {
	Line        int             `json:"line"`
	VariantID   string          `json:"variantId"`
	Condition   Condition       `json:"condition"`
	OfferAmount decimal.Decimal `json:"offerAmount"`
}

// AddItem appends an item, numbers it, and recomputes the total.
func (q *Quote) AddItem(variantID string, cond Condition, offer decimal.Decimal) {
	q.Items = append(q.Items, QuoteItem{
		Line:        len(q.Items) + 1,
		VariantID:   variantID,
		Condition:   cond,
		OfferAmount: offer,
	})
	q.TotalOfferAmount = SumOffers(q.Items)
}

func SumOffers(items []QuoteItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.OfferAmount)
	}
	return total
}

func (q Quote) IsExpired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// QuoteView is the read model handed to callers. Status is left as stored;
// EffectiveStatus reports expired for a pending quote past its expiry.
type QuoteView struct {
	Quote
	IsExpired       bool        `json:"isExpired"`
	EffectiveStatus QuoteStatus `json:"effectiveStatus"`
}

func NewQuoteView(q Quote, now time.Time) QuoteView {
	v := QuoteView{Quote: q, IsExpired: q.IsExpired(now), EffectiveStatus: q.Status}
	if q.Status == QuotePending && v.IsExpired {
		v.EffectiveStatus = QuoteExpired
	}
	return v
}
