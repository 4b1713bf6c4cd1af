package domain

import "slices"

// OrderStatus is the shipment/inspection lifecycle of an order.
type OrderStatus string

const (
	OrderPendingShipment    OrderStatus = "pending_shipment"
	OrderInTransit          OrderStatus = "in_transit"
	OrderInspectionPending  OrderStatus = "inspection_pending"
	OrderInspectionComplete OrderStatus = "inspection_complete"
	OrderFinalized          OrderStatus = "finalized"
	OrderClosed             OrderStatus = "closed"
	OrderCancelled          OrderStatus = "cancelled"
)

// PayoutStatus is tracked independently of OrderStatus.
type PayoutStatus string

const (
	PayoutUnpaid     PayoutStatus = "unpaid"
	PayoutProcessing PayoutStatus = "processing"
	PayoutPaid       PayoutStatus = "paid"
	PayoutFailed     PayoutStatus = "failed"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPendingShipment:    {OrderInTransit, OrderCancelled},
	OrderInTransit:          {OrderInspectionPending, OrderCancelled},
	OrderInspectionPending:  {OrderInspectionComplete, OrderCancelled},
	OrderInspectionComplete: {OrderFinalized, OrderCancelled},
	OrderFinalized:          {OrderClosed},
}

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutUnpaid:     {PayoutProcessing},
	PayoutProcessing: {PayoutPaid, PayoutFailed},
	PayoutFailed:     {PayoutProcessing},
}

// CanTransitionOrder never treats from == to as legal; a repeated
// transition is reported, not swallowed.
func CanTransitionOrder(from, to OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

func CanTransitionPayout(from, to PayoutStatus) bool {
	return slices.Contains(payoutTransitions[from], to)
}

// FinalizedOrLater reports whether the order total has been frozen.
func (s OrderStatus) FinalizedOrLater() bool {
	return s == OrderFinalized || s == OrderClosed
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPendingShipment, OrderInTransit, OrderInspectionPending, OrderInspectionComplete,
		OrderFinalized, OrderClosed, OrderCancelled:
		return true
	}
	return false
}

var orderLabels = map[OrderStatus]string{
	OrderPendingShipment:    "Awaiting shipment",
	OrderInTransit:          "In transit",
	OrderInspectionPending:  "Being inspected",
	OrderInspectionComplete: "Inspection complete",
	OrderFinalized:          "Offer finalized",
	OrderClosed:             "Closed",
	OrderCancelled:          "Cancelled",
}

var payoutLabels = map[PayoutStatus]string{
	PayoutUnpaid:     "payout not started",
	PayoutProcessing: "payout processing",
	PayoutPaid:       "paid",
	PayoutFailed:     "payout failed",
}

// DisplayStatus is a read-only composite label of both state machines.
func DisplayStatus(s OrderStatus, p PayoutStatus) string {
	label := orderLabels[s]
	if label == "" {
		label = string(s)
	}
	switch s {
	case OrderFinalized, OrderClosed:
		if pl := payoutLabels[p]; pl != "" {
			return label + " (" + pl + ")"
		}
	}
	return label
}
