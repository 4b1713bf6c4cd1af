package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                 string              `json:"-"`
	Number             string              `json:"number"`
	QuoteNumber        string              `json:"quoteNumber"`
	Owner              Owner               `json:"owner"`
	Status             OrderStatus         `json:"status"`
	PayoutStatus       PayoutStatus        `json:"payoutStatus"`
	Currency           string              `json:"currency"`
	TotalOriginalOffer decimal.Decimal     `json:"totalOriginalOffer"`
	TotalFinalOffer    decimal.NullDecimal `json:"totalFinalOffer"`
	CancelReason       string              `json:"cancelReason,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	ShippedAt          *time.Time          `json:"shippedAt,omitempty"`
	ReceivedAt         *time.Time          `json:"receivedAt,omitempty"`
	InspectedAt        *time.Time          `json:"inspectedAt,omitempty"`
	FinalizedAt        *time.Time          `json:"finalizedAt,omitempty"`
	PaidAt             *time.Time          `json:"paidAt,omitempty"`
	ClosedAt           *time.Time          `json:"closedAt,omitempty"`
	CancelledAt        *time.Time          `json:"cancelledAt,omitempty"`
	Items              []OrderItem         `json:"items"`
}

// OrderItem mirrors one QuoteItem. The inspection fields stay null until
// staff record an inspection for the line.
type OrderItem struct {
	Line                        int                 `json:"line"`
	VariantID                   string              `json:"variantId"`
	DeclaredCondition           Condition           `json:"declaredCondition"`
	OriginalOfferAmount         decimal.Decimal     `json:"originalOfferAmount"`
	InspectedConditionProfileID *string             `json:"inspectedConditionProfileId"`
	FinalOfferAmount            decimal.NullDecimal `json:"finalOfferAmount"`
	PriceOverridden             bool                `json:"priceOverridden"`
	InspectedAt                 *time.Time          `json:"inspectedAt,omitempty"`
}

func (o Order) Item(line int) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.Line == line {
			return it, true
		}
	}
	return OrderItem{}, false
}

// AllItemsFinal reports whether every item carries a final amount.
func (o Order) AllItemsFinal() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if !it.FinalOfferAmount.Valid {
			return false
		}
	}
	return true
}

// SumFinal totals the final amounts; only meaningful once AllItemsFinal.
func (o Order) SumFinal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		if it.FinalOfferAmount.Valid {
			total = total.Add(it.FinalOfferAmount.Decimal)
		}
	}
	return total
}

// OrderEvent is one row of an order's transition history.
type OrderEvent struct {
	Kind      string    `json:"kind"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderView is the read model exposed to callers. Display joins the two
// state machines for presentation only.
type OrderView struct {
	Order
	Display string       `json:"display"`
	History []OrderEvent `json:"history,omitempty"`
}

func NewOrderView(o Order, history []OrderEvent) OrderView {
	return OrderView{Order: o, Display: DisplayStatus(o.Status, o.PayoutStatus), History: history}
}
