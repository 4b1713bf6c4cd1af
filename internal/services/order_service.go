package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradein/internal/domain"
	applog "tradein/internal/log"
	"tradein/internal/metrics"
	"tradein/internal/repos"
)

// History event kinds.
const (
	eventCreated    = "created"
	eventStatus     = "status"
	eventPayout     = "payout"
	eventInspection = "inspection"
	eventCarrier    = "carrier"
)

type OrderService struct {
	Store *repos.Store
	Now   Clock
}

func NewOrderService(store *repos.Store) *OrderService {
	return &OrderService{Store: store}
}

// openOrder converts an accepted quote into an order. It must run inside the
// transaction that accepted the quote.
func openOrder(ctx context.Context, tx *repos.Store, q domain.Quote, now time.Time) (domain.Order, error) {
	number, err := OrderNumbers.Next(ctx, tx.Sequences)
	if err != nil {
		return domain.Order{}, err
	}
	o := domain.Order{
		ID:                 uuid.NewString(),
		Number:             number,
		QuoteNumber:        q.Number,
		Owner:              q.Owner,
		Status:             domain.OrderPendingShipment,
		PayoutStatus:       domain.PayoutUnpaid,
		Currency:           q.Currency,
		TotalOriginalOffer: q.TotalOfferAmount,
		CreatedAt:          now,
		UpdatedAt:          now,
		Items:              make([]domain.OrderItem, 0, len(q.Items)),
	}
	for _, it := range q.Items {
		o.Items = append(o.Items, domain.OrderItem{
			Line:                it.Line,
			VariantID:           it.VariantID,
			DeclaredCondition:   it.Condition,
			OriginalOfferAmount: it.OfferAmount,
		})
	}
	if err := tx.Orders.Insert(ctx, o, q.ID); err != nil {
		return domain.Order{}, fmt.Errorf("insert order for %s: %w", q.Number, err)
	}
	if err := tx.Orders.AppendEvent(ctx, o.ID, eventCreated, "", string(o.Status), q.Number, now); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func loadOrder(ctx context.Context, store *repos.Store, number string) (domain.Order, error) {
	o, err := store.Orders.ByNumber(ctx, number)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.Errorf(domain.KindNotFound, "order %s not found", number)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order %s: %w", number, err)
	}
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, number string) (domain.OrderView, error) {
	o, err := loadOrder(ctx, s.Store, number)
	if err != nil {
		return domain.OrderView{}, err
	}
	history, err := s.Store.Orders.Events(ctx, o.ID)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("load history of %s: %w", number, err)
	}
	return domain.NewOrderView(o, history), nil
}

func (s *OrderService) ListForOwner(ctx context.Context, userID string) ([]domain.OrderView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "user id is required")
	}
	orders, err := s.Store.Orders.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", userID, err)
	}
	return views(orders), nil
}

// ListRecent is the staff overview of the newest orders.
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]domain.OrderView, error) {
	orders, err := s.Store.Orders.ListLatest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}
	return views(orders), nil
}

func views(orders []domain.Order) []domain.OrderView {
	out := make([]domain.OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, domain.NewOrderView(o, nil))
	}
	return out
}

// ---------- Order status ----------

func (s *OrderService) MarkShipped(ctx context.Context, number string) (domain.Order, error) {
	return s.advance(ctx, "order.ship", number, domain.OrderInTransit, "", nil)
}

func (s *OrderService) MarkReceived(ctx context.Context, number string) (domain.Order, error) {
	return s.advance(ctx, "order.receive", number, domain.OrderInspectionPending, "", nil)
}

// Finalize freezes the final total of a fully inspected order.
func (s *OrderService) Finalize(ctx context.Context, number string) (domain.Order, error) {
	return s.advance(ctx, "order.finalize", number, domain.OrderFinalized, "", func(tx *repos.Store, o domain.Order) error {
		if !o.AllItemsFinal() {
			if o.Status == domain.OrderInspectionPending || o.Status == domain.OrderInspectionComplete {
				return domain.Errorf(domain.KindIncompleteInspection, "order %s has items without a final amount", o.Number)
			}
			return nil
		}
		if o.Status != domain.OrderInspectionComplete {
			return nil
		}
		return tx.Orders.SetTotalFinal(ctx, o.ID, o.SumFinal())
	})
}

// Cancel is terminal and only allowed before the order is finalized.
func (s *OrderService) Cancel(ctx context.Context, number, reason string) (domain.Order, error) {
	reason = strings.TrimSpace(reason)
	return s.advance(ctx, "order.cancel", number, domain.OrderCancelled, reason, func(tx *repos.Store, o domain.Order) error {
		if o.Status.FinalizedOrLater() {
			return domain.Errorf(domain.KindCannotCancelFinalized, "order %s is %s and can no longer be cancelled", o.Number, o.Status)
		}
		if o.Status == domain.OrderCancelled {
			return nil
		}
		return tx.Orders.SetCancelReason(ctx, o.ID, reason)
	})
}

// advance moves an order to status to. guard runs inside the transaction
// before the legality check and may add writes of its own.
func (s *OrderService) advance(ctx context.Context, op, number string, to domain.OrderStatus, detail string, guard func(tx *repos.Store, o domain.Order) error) (domain.Order, error) {
	now := s.Now.now()
	var out domain.Order
	err := withRetry(ctx, op, func() error {
		return s.Store.InTx(ctx, func(tx *repos.Store) error {
			o, err := loadOrder(ctx, tx, number)
			if err != nil {
				return err
			}
			if guard != nil {
				if err := guard(tx, o); err != nil {
					return err
				}
			}
			if !domain.CanTransitionOrder(o.Status, to) {
				return domain.Errorf(domain.KindInvalidTransition, "order %s cannot move from %s to %s", o.Number, o.Status, to)
			}
			if err := applied(tx.Orders.UpdateStatus(ctx, o.ID, o.Status, to, now)); err != nil {
				return err
			}
			if err := tx.Orders.AppendEvent(ctx, o.ID, eventStatus, string(o.Status), string(to), detail, now); err != nil {
				return err
			}
			out, err = loadOrder(ctx, tx, number)
			return err
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
	return out, nil
}

// ---------- Payout ----------

func (s *OrderService) StartPayout(ctx context.Context, number string) (domain.Order, error) {
	return s.payout(ctx, "payout.start", number, domain.PayoutProcessing, "")
}

// MarkPaid records a settled payout and closes the order.
func (s *OrderService) MarkPaid(ctx context.Context, number string) (domain.Order, error) {
	return s.payout(ctx, "payout.paid", number, domain.PayoutPaid, "")
}

func (s *OrderService) MarkPayoutFailed(ctx context.Context, number, reason string) (domain.Order, error) {
	return s.payout(ctx, "payout.failed", number, domain.PayoutFailed, strings.TrimSpace(reason))
}

func (s *OrderService) RetryPayout(ctx context.Context, number string) (domain.Order, error) {
	return s.payout(ctx, "payout.retry", number, domain.PayoutProcessing, "retry")
}

func (s *OrderService) payout(ctx context.Context, op, number string, to domain.PayoutStatus, detail string) (domain.Order, error) {
	now := s.Now.now()
	var out domain.Order
	closed := false
	err := withRetry(ctx, op, func() error {
		closed = false
		return s.Store.InTx(ctx, func(tx *repos.Store) error {
			o, err := loadOrder(ctx, tx, number)
			if err != nil {
				return err
			}
			if o.Status != domain.OrderFinalized {
				return domain.Errorf(domain.KindInvalidTransition, "order %s is %s; payout needs a finalized order", o.Number, o.Status)
			}
			if !domain.CanTransitionPayout(o.PayoutStatus, to) {
				return domain.Errorf(domain.KindInvalidTransition, "payout of %s cannot move from %s to %s", o.Number, o.PayoutStatus, to)
			}
			if err := applied(tx.Orders.UpdatePayout(ctx, o.ID, o.PayoutStatus, to, now)); err != nil {
				return err
			}
			if err := tx.Orders.AppendEvent(ctx, o.ID, eventPayout, string(o.PayoutStatus), string(to), detail, now); err != nil {
				return err
			}
			if to == domain.PayoutPaid {
				if err := applied(tx.Orders.UpdateStatus(ctx, o.ID, domain.OrderFinalized, domain.OrderClosed, now)); err != nil {
					return err
				}
				if err := tx.Orders.AppendEvent(ctx, o.ID, eventStatus, string(domain.OrderFinalized), string(domain.OrderClosed), "paid", now); err != nil {
					return err
				}
				closed = true
			}
			out, err = loadOrder(ctx, tx, number)
			return err
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	metrics.PayoutTransitions.WithLabelValues(string(to)).Inc()
	if closed {
		metrics.OrderTransitions.WithLabelValues(string(domain.OrderClosed)).Inc()
	}
	return out, nil
}

// ---------- Carrier events ----------

type carrierAction int

const (
	carrierNone carrierAction = iota
	carrierShip
	carrierDeliver
)

// carrierEvents maps carrier event types onto order transitions. Types not
// listed here are logged and ignored.
var carrierEvents = map[string]carrierAction{
	"label_created": carrierNone,
	"picked_up":     carrierShip,
	"accepted":      carrierShip,
	"in_transit":    carrierShip,
	"shipped":       carrierShip,
	"delivered":     carrierDeliver,
}

const (
	CarrierApplied = "applied"
	CarrierIgnored = "ignored"
	CarrierUnknown = "unknown"
)

// CarrierResult reports what a carrier event did to the order.
type CarrierResult struct {
	OrderNumber string             `json:"orderNumber"`
	EventType   string             `json:"eventType"`
	Outcome     string             `json:"outcome"`
	Status      domain.OrderStatus `json:"status"`
}

// OnCarrierEvent applies a shipping-status event. Unknown types and replays
// of transitions that already happened are reported as ignored, not failed.
func (s *OrderService) OnCarrierEvent(ctx context.Context, number, eventType string) (CarrierResult, error) {
	eventType = strings.ToLower(strings.TrimSpace(eventType))
	o, err := loadOrder(ctx, s.Store, number)
	if err != nil {
		return CarrierResult{}, err
	}
	res := CarrierResult{OrderNumber: o.Number, EventType: eventType, Outcome: CarrierIgnored, Status: o.Status}

	action, known := carrierEvents[eventType]
	if !known {
		res.Outcome = CarrierUnknown
		applog.L().Warn("carrier.event.unknown", zap.String("order", o.Number), zap.String("event_type", eventType))
		metrics.CarrierEvents.WithLabelValues(res.Outcome).Inc()
		return res, nil
	}

	var steps []func(context.Context, string) (domain.Order, error)
	switch action {
	case carrierShip:
		if o.Status == domain.OrderPendingShipment {
			steps = append(steps, s.MarkShipped)
		}
	case carrierDeliver:
		switch o.Status {
		case domain.OrderPendingShipment:
			steps = append(steps, s.MarkShipped, s.MarkReceived)
		case domain.OrderInTransit:
			steps = append(steps, s.MarkReceived)
		}
	}

	for _, step := range steps {
		updated, err := step(ctx, o.Number)
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Another writer moved the order first; the event is stale.
			break
		}
		if err != nil {
			return CarrierResult{}, err
		}
		res.Outcome = CarrierApplied
		res.Status = updated.Status
	}

	if err := s.Store.Orders.AppendEvent(ctx, o.ID, eventCarrier, "", string(res.Status), eventType+":"+res.Outcome, s.Now.now()); err != nil {
		return CarrierResult{}, fmt.Errorf("record carrier event for %s: %w", o.Number, err)
	}
	metrics.CarrierEvents.WithLabelValues(res.Outcome).Inc()
	applog.L().Info("carrier.event",
		zap.String("order", o.Number),
		zap.String("event_type", eventType),
		zap.String("outcome", res.Outcome),
		zap.String("status", string(res.Status)),
	)
	return res, nil
}
