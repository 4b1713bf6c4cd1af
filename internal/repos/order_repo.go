package repos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"tradein/internal/domain"
)

type OrderRepo struct{ db sqlx.ExtContext }

func NewOrderRepo(db sqlx.ExtContext) *OrderRepo { return &OrderRepo{db: db} }

// ---------- Rows ----------
type orderRow struct {
	ID            string              `db:"id"`
	Number        string              `db:"number"`
	QuoteNumber   string              `db:"quote_number"`
	OwnerKind     string              `db:"owner_kind"`
	OwnerUserID   string              `db:"owner_user_id"`
	Status        string              `db:"status"`
	PayoutStatus  string              `db:"payout_status"`
	Currency      string              `db:"currency"`
	TotalOriginal decimal.Decimal     `db:"total_original"`
	TotalFinal    decimal.NullDecimal `db:"total_final"`
	CancelReason  string              `db:"cancel_reason"`
	CreatedAt     string              `db:"created_at"`
	UpdatedAt     string              `db:"updated_at"`
	ShippedAt     string              `db:"shipped_at"`
	ReceivedAt    string              `db:"received_at"`
	InspectedAt   string              `db:"inspected_at"`
	FinalizedAt   string              `db:"finalized_at"`
	PaidAt        string              `db:"paid_at"`
	ClosedAt      string              `db:"closed_at"`
	CancelledAt   string              `db:"cancelled_at"`
}

type orderItemRow struct {
	Line             int                 `db:"line"`
	VariantID        string              `db:"variant_id"`
	Declared         string              `db:"declared_condition"`
	OriginalOffer    decimal.Decimal     `db:"original_offer"`
	InspectedProfile sql.NullString      `db:"inspected_profile"`
	FinalOffer       decimal.NullDecimal `db:"final_offer"`
	PriceOverridden  bool                `db:"price_overridden"`
	InspectedAt      string              `db:"inspected_at"`
}

type orderEventRow struct {
	Kind      string `db:"kind"`
	From      string `db:"from_state"`
	To        string `db:"to_state"`
	Detail    string `db:"detail"`
	CreatedAt string `db:"created_at"`
}

func (row orderRow) toDomain(items []orderItemRow) domain.Order {
	o := domain.Order{
		ID:                 row.ID,
		Number:             row.Number,
		QuoteNumber:        row.QuoteNumber,
		Owner:              domain.Owner{Kind: domain.OwnerKind(row.OwnerKind), UserID: row.OwnerUserID},
		Status:             domain.OrderStatus(row.Status),
		PayoutStatus:       domain.PayoutStatus(row.PayoutStatus),
		Currency:           row.Currency,
		TotalOriginalOffer: row.TotalOriginal,
		TotalFinalOffer:    row.TotalFinal,
		CancelReason:       row.CancelReason,
		CreatedAt:          parseTime(row.CreatedAt),
		UpdatedAt:          parseTime(row.UpdatedAt),
		ShippedAt:          parseTimePtr(row.ShippedAt),
		ReceivedAt:         parseTimePtr(row.ReceivedAt),
		InspectedAt:        parseTimePtr(row.InspectedAt),
		FinalizedAt:        parseTimePtr(row.FinalizedAt),
		PaidAt:             parseTimePtr(row.PaidAt),
		ClosedAt:           parseTimePtr(row.ClosedAt),
		CancelledAt:        parseTimePtr(row.CancelledAt),
		Items:              make([]domain.OrderItem, 0, len(items)),
	}
	for _, it := range items {
		item := domain.OrderItem{
			Line:                it.Line,
			VariantID:           it.VariantID,
			DeclaredCondition:   domain.Condition(it.Declared),
			OriginalOfferAmount: it.OriginalOffer,
			FinalOfferAmount:    it.FinalOffer,
			PriceOverridden:     it.PriceOverridden,
			InspectedAt:         parseTimePtr(it.InspectedAt),
		}
		if it.InspectedProfile.Valid {
			profile := it.InspectedProfile.String
			item.InspectedConditionProfileID = &profile
		}
		o.Items = append(o.Items, item)
	}
	return o
}

const orderSelect = `
	SELECT o.id, o.number, q.number AS quote_number, o.owner_kind, o.owner_user_id, o.status, o.payout_status,
	       o.currency, o.total_original, o.total_final, o.cancel_reason, o.created_at, o.updated_at,
	       o.shipped_at, o.received_at, o.inspected_at, o.finalized_at, o.paid_at, o.closed_at, o.cancelled_at
	FROM orders o
	JOIN quotes q ON q.id = o.quote_id`

// statusStamp names the timestamp column set when an order enters a status.
var statusStamp = map[domain.OrderStatus]string{
	domain.OrderInTransit:          "shipped_at",
	domain.OrderInspectionPending:  "received_at",
	domain.OrderInspectionComplete: "inspected_at",
	domain.OrderFinalized:          "finalized_at",
	domain.OrderClosed:             "closed_at",
	domain.OrderCancelled:          "cancelled_at",
}

// ---------- Writes ----------

// Insert stores a new order header and its items.
func (r *OrderRepo) Insert(ctx context.Context, o domain.Order, quoteID string) error {
	if _, err := r.db.ExecContext(ctx, `
	  INSERT INTO orders
	    (id, number, quote_id, owner_kind, owner_user_id, status, payout_status, currency, total_original, created_at, updated_at)
	  VALUES
	    (?,  ?,      ?,        ?,          ?,             ?,      ?,             ?,        ?,              ?,          ?)
	`, o.ID, o.Number, quoteID, string(o.Owner.Kind), o.Owner.UserID, string(o.Status), string(o.PayoutStatus),
		o.Currency, o.TotalOriginalOffer.String(), formatTime(o.CreatedAt), formatTime(o.UpdatedAt)); err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := r.db.ExecContext(ctx, `
		  INSERT INTO order_items(order_id, line, variant_id, declared_condition, original_offer)
		  VALUES (?, ?, ?, ?, ?)
		`, o.ID, it.Line, it.VariantID, string(it.DeclaredCondition), it.OriginalOfferAmount.String()); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatus moves the order between statuses and stamps the matching
// timestamp. It reports false when the stored status no longer equals from.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	stamp := ""
	if col, ok := statusStamp[to]; ok {
		stamp = ", " + col + " = ?"
	}
	args := []any{string(to), formatTime(at)}
	if stamp != "" {
		args = append(args, formatTime(at))
	}
	args = append(args, id, string(from))

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?`+stamp+`
		WHERE id = ? AND status = ?
	`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdatePayout moves the payout sub-state; same contract as UpdateStatus.
func (r *OrderRepo) UpdatePayout(ctx context.Context, id string, from, to domain.PayoutStatus, at time.Time) (bool, error) {
	paidAt := ""
	if to == domain.PayoutPaid {
		paidAt = formatTime(at)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payout_status = ?, updated_at = ?, paid_at = CASE WHEN ? = '' THEN paid_at ELSE ? END
		WHERE id = ? AND payout_status = ?
	`, string(to), formatTime(at), paidAt, paidAt, id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *OrderRepo) SetTotalFinal(ctx context.Context, id string, total decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET total_final = ? WHERE id = ?`, total.String(), id)
	return err
}

func (r *OrderRepo) SetCancelReason(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET cancel_reason = ? WHERE id = ?`, reason, id)
	return err
}

// SetItemInspection records the inspected profile and final amount of one
// line. It reports false unless the order is still in status.
func (r *OrderRepo) SetItemInspection(ctx context.Context, orderID string, status domain.OrderStatus, line int, profile string, final decimal.Decimal, overridden bool, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE order_items
		SET inspected_profile = ?, final_offer = ?, price_overridden = ?, inspected_at = ?
		WHERE order_id = ? AND line = ?
		  AND EXISTS (SELECT 1 FROM orders WHERE id = ? AND status = ?)
	`, profile, final.String(), overridden, formatTime(at), orderID, line, orderID, string(status))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AppendEvent adds a row to the order's transition history.
func (r *OrderRepo) AppendEvent(ctx context.Context, orderID, kind, from, to, detail string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_events(order_id, kind, from_state, to_state, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, orderID, kind, from, to, detail, formatTime(at))
	return err
}

// ClaimForQuote hands the guest order created from quoteID to userID.
func (r *OrderRepo) ClaimForQuote(ctx context.Context, quoteID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET owner_kind = 'user', owner_user_id = ?
		WHERE quote_id = ? AND owner_kind = 'guest'
	`, userID, quoteID)
	return err
}

// ---------- Reads ----------

// ByNumber returns sql.ErrNoRows for an unknown number.
func (r *OrderRepo) ByNumber(ctx context.Context, number string) (domain.Order, error) {
	var row orderRow
	if err := sqlx.GetContext(ctx, r.db, &row, orderSelect+` WHERE o.number = ?`, number); err != nil {
		return domain.Order{}, err
	}
	items, err := r.items(ctx, row.ID)
	if err != nil {
		return domain.Order{}, err
	}
	return row.toDomain(items), nil
}

// CountForQuote is used to check the 1:1 link between quotes and orders.
func (r *OrderRepo) CountForQuote(ctx context.Context, quoteNumber string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `
		SELECT COUNT(*) FROM orders o JOIN quotes q ON q.id = o.quote_id WHERE q.number = ?
	`, quoteNumber)
	return n, err
}

func (r *OrderRepo) items(ctx context.Context, orderID string) ([]orderItemRow, error) {
	var items []orderItemRow
	err := sqlx.SelectContext(ctx, r.db, &items, `
		SELECT line, variant_id, declared_condition, original_offer, inspected_profile, final_offer,
		       price_overridden, inspected_at
		FROM order_items
		WHERE order_id = ?
		ORDER BY line
	`, orderID)
	return items, err
}

func (r *OrderRepo) Events(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	var rows []orderEventRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT kind, from_state, to_state, detail, created_at
		FROM order_events
		WHERE order_id = ?
		ORDER BY id
	`, orderID); err != nil {
		return nil, err
	}
	out := make([]domain.OrderEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.OrderEvent{
			Kind:      row.Kind,
			From:      row.From,
			To:        row.To,
			Detail:    row.Detail,
			CreatedAt: parseTime(row.CreatedAt),
		})
	}
	return out, nil
}

// ListLatest returns the newest orders without items (staff overview).
func (r *OrderRepo) ListLatest(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, orderSelect+`
		ORDER BY o.created_at DESC, o.number DESC
		LIMIT ?
	`, limit); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain(nil))
	}
	return out, nil
}

// ListByOwner returns a user's orders, newest first, without items.
func (r *OrderRepo) ListByOwner(ctx context.Context, userID string) ([]domain.Order, error) {
	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, orderSelect+`
		WHERE o.owner_kind = 'user' AND o.owner_user_id = ?
		ORDER BY o.created_at DESC, o.number DESC
	`, userID); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain(nil))
	}
	return out, nil
}
