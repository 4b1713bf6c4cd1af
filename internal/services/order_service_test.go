package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradein/internal/domain"
	"tradein/internal/services"
)

func TestOrder_ShipReceiveOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.Create(ctx, domain.GuestOwner(), []services.Selection{
		{VariantID: e.pixel(t), Condition: domain.ConditionGood},
	})
	require.NoError(t, err)
	o, err := e.quotes.Accept(ctx, q.Number)
	require.NoError(t, err)

	_, err = e.orders.MarkReceived(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	o, err = e.orders.MarkShipped(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, domain.OrderInTransit, o.Status)
	require.NotNil(t, o.ShippedAt)

	_, err = e.orders.MarkShipped(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	o, err = e.orders.MarkReceived(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, domain.OrderInspectionPending, o.Status)
	require.NotNil(t, o.ReceivedAt)

	_, err = e.orders.MarkShipped(ctx, "SHC-S-999999")
	require.ErrorIs(t, err, domain.ErrNotFound)

	v, err := e.orders.Get(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, "Being inspected", v.Display)
	require.Len(t, v.History, 3)
	require.Equal(t, "created", v.History[0].Kind)
	require.Equal(t, string(domain.OrderInTransit), v.History[1].To)
	require.Equal(t, string(domain.OrderInspectionPending), v.History[2].To)
}

func TestOrder_FinalizeNeedsCompleteInspection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	o := e.threeItemOrder(t)
	_, err := e.orders.Finalize(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrIncompleteInspection)

	_, err = e.inspections.Record(ctx, o.Number, 1, "good", nil)
	require.NoError(t, err)
	_, err = e.orders.Finalize(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrIncompleteInspection)

	_, err = e.inspections.Record(ctx, o.Number, 2, "good", nil)
	require.NoError(t, err)
	_, err = e.inspections.Record(ctx, o.Number, 3, "fair", nil)
	require.NoError(t, err)

	o, err = e.orders.Finalize(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, domain.OrderFinalized, o.Status)
	require.Equal(t, domain.PayoutUnpaid, o.PayoutStatus)
	require.True(t, o.TotalFinalOffer.Valid)
	require.True(t, o.TotalFinalOffer.Decimal.Equal(dec("190")))
	require.True(t, o.TotalOriginalOffer.Equal(dec("225")))
	require.NotNil(t, o.FinalizedAt)

	_, err = e.orders.Finalize(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestOrder_FinalizeFromEarlyStateIsInvalid(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.Create(ctx, domain.GuestOwner(), []services.Selection{
		{VariantID: e.pixel(t), Condition: domain.ConditionGood},
	})
	require.NoError(t, err)
	o, err := e.quotes.Accept(ctx, q.Number)
	require.NoError(t, err)

	_, err = e.orders.Finalize(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestOrder_CancelRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	accepted := func() domain.Order {
		q, err := e.quotes.Create(ctx, domain.GuestOwner(), []services.Selection{
			{VariantID: e.pixel(t), Condition: domain.ConditionGood},
		})
		require.NoError(t, err)
		o, err := e.quotes.Accept(ctx, q.Number)
		require.NoError(t, err)
		return o
	}

	// pending_shipment
	o := accepted()
	o, err := e.orders.Cancel(ctx, o.Number, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, o.Status)
	require.Equal(t, "changed my mind", o.CancelReason)
	require.NotNil(t, o.CancelledAt)

	// cancelled is terminal
	_, err = e.orders.Cancel(ctx, o.Number, "again")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = e.orders.MarkShipped(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// in_transit
	o = accepted()
	_, err = e.orders.MarkShipped(ctx, o.Number)
	require.NoError(t, err)
	o, err = e.orders.Cancel(ctx, o.Number, "lost in transit")
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, o.Status)

	// inspection_pending
	o = e.threeItemOrder(t)
	o, err = e.orders.Cancel(ctx, o.Number, "")
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, o.Status)

	// inspection_complete
	o = e.threeItemOrder(t)
	for _, it := range o.Items {
		o, err = e.inspections.Record(ctx, o.Number, it.Line, "broken", nil)
		require.NoError(t, err)
	}
	require.Equal(t, domain.OrderInspectionComplete, o.Status)
	o, err = e.orders.Cancel(ctx, o.Number, "rejected revised offer")
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, o.Status)

	// finalized and closed
	o = e.finalizedOrder(t)
	_, err = e.orders.Cancel(ctx, o.Number, "too late")
	require.ErrorIs(t, err, domain.ErrCannotCancelFinalized)

	_, err = e.orders.StartPayout(ctx, o.Number)
	require.NoError(t, err)
	_, err = e.orders.MarkPaid(ctx, o.Number)
	require.NoError(t, err)
	_, err = e.orders.Cancel(ctx, o.Number, "too late")
	require.ErrorIs(t, err, domain.ErrCannotCancelFinalized)
}

func TestPayout_IndependentOfOrderStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	o := e.threeItemOrder(t)
	_, err := e.orders.StartPayout(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	o = e.finalizedOrder(t)

	// An order may stay finalized and unpaid for an arbitrary period.
	e.clock.Advance(30 * 24 * time.Hour)
	v, err := e.orders.Get(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, domain.OrderFinalized, v.Status)
	require.Equal(t, domain.PayoutUnpaid, v.PayoutStatus)
	require.Equal(t, "Offer finalized (payout not started)", v.Display)

	_, err = e.orders.MarkPaid(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = e.orders.RetryPayout(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	o, err = e.orders.StartPayout(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, domain.PayoutProcessing, o.PayoutStatus)
	require.Equal(t, domain.OrderFinalized, o.Status)

	o, err = e.orders.MarkPayoutFailed(ctx, o.Number, "bank rejected")
	require.NoError(t, err)
	require.Equal(t, domain.PayoutFailed, o.PayoutStatus)
	require.Equal(t, domain.OrderFinalized, o.Status)

	_, err = e.orders.MarkPaid(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	o, err = e.orders.RetryPayout(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, domain.PayoutProcessing, o.PayoutStatus)

	o, err = e.orders.MarkPaid(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, domain.PayoutPaid, o.PayoutStatus)
	require.Equal(t, domain.OrderClosed, o.Status)
	require.NotNil(t, o.PaidAt)
	require.NotNil(t, o.ClosedAt)

	_, err = e.orders.StartPayout(ctx, o.Number)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	v, err = e.orders.Get(ctx, o.Number)
	require.NoError(t, err)
	require.Equal(t, "Closed (paid)", v.Display)
}

func TestCarrierEvents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.Create(ctx, domain.GuestOwner(), []services.Selection{
		{VariantID: e.pixel(t), Condition: domain.ConditionGood},
	})
	require.NoError(t, err)
	o, err := e.quotes.Accept(ctx, q.Number)
	require.NoError(t, err)

	res, err := e.orders.OnCarrierEvent(ctx, o.Number, "label_created")
	require.NoError(t, err)
	require.Equal(t, services.CarrierIgnored, res.Outcome)
	require.Equal(t, domain.OrderPendingShipment, res.Status)

	res, err = e.orders.OnCarrierEvent(ctx, o.Number, "teleported")
	require.NoError(t, err)
	require.Equal(t, services.CarrierUnknown, res.Outcome)

	res, err = e.orders.OnCarrierEvent(ctx, o.Number, "PICKED_UP")
	require.NoError(t, err)
	require.Equal(t, services.CarrierApplied, res.Outcome)
	require.Equal(t, domain.OrderInTransit, res.Status)

	// Replay of a transition that already happened.
	res, err = e.orders.OnCarrierEvent(ctx, o.Number, "in_transit")
	require.NoError(t, err)
	require.Equal(t, services.CarrierIgnored, res.Outcome)
	require.Equal(t, domain.OrderInTransit, res.Status)

	res, err = e.orders.OnCarrierEvent(ctx, o.Number, "delivered")
	require.NoError(t, err)
	require.Equal(t, services.CarrierApplied, res.Outcome)
	require.Equal(t, domain.OrderInspectionPending, res.Status)

	res, err = e.orders.OnCarrierEvent(ctx, o.Number, "delivered")
	require.NoError(t, err)
	require.Equal(t, services.CarrierIgnored, res.Outcome)

	_, err = e.orders.OnCarrierEvent(ctx, "SHC-S-999999", "delivered")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCarrierEvents_DeliveredSkipsPickup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.Create(ctx, domain.GuestOwner(), []services.Selection{
		{VariantID: e.galaxy(t), Condition: domain.ConditionGood},
	})
	require.NoError(t, err)
	o, err := e.quotes.Accept(ctx, q.Number)
	require.NoError(t, err)

	res, err := e.orders.OnCarrierEvent(ctx, o.Number, "delivered")
	require.NoError(t, err)
	require.Equal(t, services.CarrierApplied, res.Outcome)
	require.Equal(t, domain.OrderInspectionPending, res.Status)

	got, err := e.orders.Get(ctx, o.Number)
	require.NoError(t, err)
	require.NotNil(t, got.ShippedAt)
	require.NotNil(t, got.ReceivedAt)
}

func TestOrder_ListRecent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.threeItemOrder(t)
	e.clock.Advance(time.Second)
	o := e.threeItemOrder(t)

	list, err := e.orders.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, o.Number, list[0].Number)
}

func TestOrder_ListsAreNewestFirstWithinASecond(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := domain.UserOwner("u-bob")

	var quotes, orders []string
	for _, step := range []time.Duration{0, 500 * time.Millisecond, 50 * time.Millisecond} {
		e.clock.Advance(step)
		q, err := e.quotes.Create(ctx, owner, []services.Selection{
			{VariantID: e.pixel(t), Condition: domain.ConditionGood},
		})
		require.NoError(t, err)
		o, err := e.quotes.Accept(ctx, q.Number)
		require.NoError(t, err)
		quotes = append([]string{q.Number}, quotes...)
		orders = append([]string{o.Number}, orders...)
	}

	numbers := func(list []domain.OrderView) []string {
		out := make([]string, 0, len(list))
		for _, o := range list {
			out = append(out, o.Number)
		}
		return out
	}

	recent, err := e.orders.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, orders, numbers(recent))

	mine, err := e.orders.ListForOwner(ctx, "u-bob")
	require.NoError(t, err)
	require.Equal(t, orders, numbers(mine))

	views, err := e.quotes.ListForOwner(ctx, "u-bob")
	require.NoError(t, err)
	got := make([]string, 0, len(views))
	for _, v := range views {
		got = append(got, v.Number)
	}
	require.Equal(t, quotes, got)
}
