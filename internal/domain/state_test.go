package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionOrder(t *testing.T) {
	legal := [][2]OrderStatus{
		{OrderPendingShipment, OrderInTransit},
		{OrderPendingShipment, OrderCancelled},
		{OrderInTransit, OrderInspectionPending},
		{OrderInTransit, OrderCancelled},
		{OrderInspectionPending, OrderInspectionComplete},
		{OrderInspectionPending, OrderCancelled},
		{OrderInspectionComplete, OrderFinalized},
		{OrderInspectionComplete, OrderCancelled},
		{OrderFinalized, OrderClosed},
	}
	for _, tr := range legal {
		require.True(t, CanTransitionOrder(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]OrderStatus{
		{OrderPendingShipment, OrderPendingShipment},
		{OrderPendingShipment, OrderInspectionPending},
		{OrderInTransit, OrderPendingShipment},
		{OrderInspectionPending, OrderFinalized},
		{OrderFinalized, OrderCancelled},
		{OrderClosed, OrderCancelled},
		{OrderCancelled, OrderPendingShipment},
		{OrderClosed, OrderFinalized},
	}
	for _, tr := range illegal {
		require.False(t, CanTransitionOrder(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestCanTransitionPayout(t *testing.T) {
	require.True(t, CanTransitionPayout(PayoutUnpaid, PayoutProcessing))
	require.True(t, CanTransitionPayout(PayoutProcessing, PayoutPaid))
	require.True(t, CanTransitionPayout(PayoutProcessing, PayoutFailed))
	require.True(t, CanTransitionPayout(PayoutFailed, PayoutProcessing))

	require.False(t, CanTransitionPayout(PayoutUnpaid, PayoutPaid))
	require.False(t, CanTransitionPayout(PayoutPaid, PayoutProcessing))
	require.False(t, CanTransitionPayout(PayoutFailed, PayoutPaid))
	require.False(t, CanTransitionPayout(PayoutProcessing, PayoutProcessing))
}

func TestDisplayStatus(t *testing.T) {
	require.Equal(t, "Awaiting shipment", DisplayStatus(OrderPendingShipment, PayoutUnpaid))
	require.Equal(t, "Being inspected", DisplayStatus(OrderInspectionPending, PayoutUnpaid))
	require.Equal(t, "Offer finalized (payout processing)", DisplayStatus(OrderFinalized, PayoutProcessing))
	require.Equal(t, "Offer finalized (payout failed)", DisplayStatus(OrderFinalized, PayoutFailed))
	require.Equal(t, "Closed (paid)", DisplayStatus(OrderClosed, PayoutPaid))
	require.Equal(t, "Cancelled", DisplayStatus(OrderCancelled, PayoutUnpaid))
	require.Equal(t, "weird", DisplayStatus(OrderStatus("weird"), PayoutUnpaid))
}

func TestOrderStatusHelpers(t *testing.T) {
	require.True(t, OrderFinalized.FinalizedOrLater())
	require.True(t, OrderClosed.FinalizedOrLater())
	require.False(t, OrderInspectionComplete.FinalizedOrLater())
	require.False(t, OrderCancelled.FinalizedOrLater())

	require.True(t, OrderCancelled.Valid())
	require.False(t, OrderStatus("shipped").Valid())
}

func TestQuoteItemsAndView(t *testing.T) {
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	q := Quote{Status: QuotePending, CreatedAt: created, ExpiresAt: created.Add(24 * time.Hour)}
	q.AddItem("v1", ConditionGood, decimal.RequireFromString("100"))
	q.AddItem("v2", ConditionFair, decimal.RequireFromString("50.25"))

	require.Equal(t, 2, q.Items[1].Line)
	require.True(t, q.TotalOfferAmount.Equal(decimal.RequireFromString("150.25")))

	v := NewQuoteView(q, q.ExpiresAt)
	require.False(t, v.IsExpired)
	require.Equal(t, QuotePending, v.EffectiveStatus)

	v = NewQuoteView(q, q.ExpiresAt.Add(time.Nanosecond))
	require.True(t, v.IsExpired)
	require.Equal(t, QuoteExpired, v.EffectiveStatus)
	require.Equal(t, QuotePending, v.Status)

	q.Status = QuoteAccepted
	v = NewQuoteView(q, q.ExpiresAt.Add(time.Hour))
	require.Equal(t, QuoteAccepted, v.EffectiveStatus)
}

func TestOrderFinalAmounts(t *testing.T) {
	o := Order{Items: []OrderItem{
		{Line: 1, OriginalOfferAmount: decimal.RequireFromString("100")},
		{Line: 2, OriginalOfferAmount: decimal.RequireFromString("50")},
	}}
	require.False(t, o.AllItemsFinal())
	require.False(t, Order{}.AllItemsFinal())

	o.Items[0].FinalOfferAmount = decimal.NewNullDecimal(decimal.RequireFromString("80"))
	require.False(t, o.AllItemsFinal())
	o.Items[1].FinalOfferAmount = decimal.NewNullDecimal(decimal.Zero)
	require.True(t, o.AllItemsFinal())
	require.True(t, o.SumFinal().Equal(decimal.RequireFromString("80")))

	it, ok := o.Item(2)
	require.True(t, ok)
	require.Equal(t, 2, it.Line)
	_, ok = o.Item(3)
	require.False(t, ok)
}

func TestParseEnums(t *testing.T) {
	c, ok := ParseCondition(" Good ")
	require.True(t, ok)
	require.Equal(t, ConditionGood, c)
	_, ok = ParseCondition("mint")
	require.False(t, ok)

	l, ok := ParseLockState("LOCKED")
	require.True(t, ok)
	require.Equal(t, LockStateLocked, l)
	_, ok = ParseLockState("")
	require.False(t, ok)
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("accept: %w", Errorf(KindQuoteExpired, "quote %s expired", "SHC-Q-000001"))
	require.ErrorIs(t, err, ErrQuoteExpired)
	require.NotErrorIs(t, err, ErrAlreadyDecided)
	require.Equal(t, "accept: quote_expired: quote SHC-Q-000001 expired", err.Error())

	k, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindQuoteExpired, k)

	_, ok = KindOf(errors.New("disk full"))
	require.False(t, ok)

	wrapped := &Error{Kind: KindConcurrencyConflict, Err: errors.New("busy")}
	require.Equal(t, "concurrency_conflict", wrapped.Error())
	require.EqualError(t, errors.Unwrap(wrapped), "busy")
}
