package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"tradein/internal/domain"
	"tradein/internal/metrics"
	"tradein/internal/repos"
)

// InspectionService re-prices order items against the condition staff
// actually observed.
type InspectionService struct {
	Store   *repos.Store
	Pricing *PricingResolver
	Now     Clock
}

func NewInspectionService(store *repos.Store, pricing *PricingResolver) *InspectionService {
	return &InspectionService{Store: store, Pricing: pricing}
}

// Record sets the final amount of one order line. Profile ids are condition
// tier names. A non-nil override replaces the catalog price. Completing the
// last outstanding line advances the order to inspection_complete in the
// same transaction.
func (s *InspectionService) Record(ctx context.Context, number string, line int, profileID string, override *decimal.Decimal) (domain.Order, error) {
	if override != nil && override.IsNegative() {
		return domain.Order{}, domain.Errorf(domain.KindInvalidInput, "override price must not be negative")
	}

	o, err := loadOrder(ctx, s.Store, number)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Status != domain.OrderInspectionPending {
		return domain.Order{}, domain.Errorf(domain.KindOrderNotInspectable, "order %s is %s", o.Number, o.Status)
	}
	item, ok := o.Item(line)
	if !ok {
		return domain.Order{}, domain.Errorf(domain.KindItemNotFound, "order %s has no item %d", o.Number, line)
	}
	cond, ok := domain.ParseCondition(profileID)
	if !ok {
		return domain.Order{}, domain.Errorf(domain.KindUnknownCondition, "condition profile %q is not known", profileID)
	}

	final := decimal.Zero
	overridden := override != nil
	if overridden {
		final = *override
	} else {
		final, err = s.Pricing.Resolve(ctx, item.VariantID, cond)
		if err != nil {
			return domain.Order{}, err
		}
	}

	now := s.Now.now()
	var out domain.Order
	completed := false
	err = withRetry(ctx, "inspection.record", func() error {
		completed = false
		return s.Store.InTx(ctx, func(tx *repos.Store) error {
			cur, err := loadOrder(ctx, tx, number)
			if err != nil {
				return err
			}
			if cur.Status != domain.OrderInspectionPending {
				return domain.Errorf(domain.KindOrderNotInspectable, "order %s is %s", cur.Number, cur.Status)
			}
			if err := applied(tx.Orders.SetItemInspection(ctx, cur.ID, domain.OrderInspectionPending, line, string(cond), final, overridden, now)); err != nil {
				return err
			}
			detail := fmt.Sprintf("line %d: %s %s", line, cond, final.StringFixed(2))
			if err := tx.Orders.AppendEvent(ctx, cur.ID, eventInspection, "", "", detail, now); err != nil {
				return err
			}

			out, err = loadOrder(ctx, tx, number)
			if err != nil {
				return err
			}
			if !out.AllItemsFinal() {
				return nil
			}
			if err := applied(tx.Orders.UpdateStatus(ctx, out.ID, domain.OrderInspectionPending, domain.OrderInspectionComplete, now)); err != nil {
				return err
			}
			if err := tx.Orders.SetTotalFinal(ctx, out.ID, out.SumFinal()); err != nil {
				return err
			}
			if err := tx.Orders.AppendEvent(ctx, out.ID, eventStatus, string(domain.OrderInspectionPending), string(domain.OrderInspectionComplete), "", now); err != nil {
				return err
			}
			completed = true
			out, err = loadOrder(ctx, tx, number)
			return err
		})
	})
	if err != nil {
		return domain.Order{}, err
	}

	metrics.Inspections.WithLabelValues(strconv.FormatBool(overridden)).Inc()
	if completed {
		metrics.OrderTransitions.WithLabelValues(string(domain.OrderInspectionComplete)).Inc()
	}
	return out, nil
}
