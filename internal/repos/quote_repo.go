package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"tradein/internal/domain"
)

type QuoteRepo struct{ db sqlx.ExtContext }

func NewQuoteRepo(db sqlx.ExtContext) *QuoteRepo { return &QuoteRepo{db: db} }

type quoteRow struct {
	ID             string          `db:"id"`
	Number         string          `db:"number"`
	OwnerKind      string          `db:"owner_kind"`
	OwnerUserID    string          `db:"owner_user_id"`
	Status         string          `db:"status"`
	Currency       string          `db:"currency"`
	CatalogVersion int64           `db:"catalog_version"`
	TotalOffer     decimal.Decimal `db:"total_offer"`
	CreatedAt      string          `db:"created_at"`
	ExpiresAt      string          `db:"expires_at"`
	DecidedAt      string          `db:"decided_at"`
}

type quoteItemRow struct {
	Line        int             `db:"line"`
	VariantID   string          `db:"variant_id"`
	Condition   string          `db:"condition"`
	OfferAmount decimal.Decimal `db:"offer_amount"`
}

func (row quoteRow) toDomain(items []quoteItemRow) domain.Quote {
	q := domain.Quote{
		ID:               row.ID,
		Number:           row.Number,
		Owner:            domain.Owner{Kind: domain.OwnerKind(row.OwnerKind), UserID: row.OwnerUserID},
		Status:           domain.QuoteStatus(row.Status),
		Currency:         row.Currency,
		CatalogVersion:   row.CatalogVersion,
		TotalOfferAmount: row.TotalOffer,
		CreatedAt:        parseTime(row.CreatedAt),
		ExpiresAt:        parseTime(row.ExpiresAt),
		DecidedAt:        parseTimePtr(row.DecidedAt),
		Items:            make([]domain.QuoteItem, 0, len(items)),
	}
	for _, it := range items {
		q.Items = append(q.Items, domain.QuoteItem{
			Line:        it.Line,
			VariantID:   it.VariantID,
			Condition:   domain.Condition(it.Condition),
			OfferAmount: it.OfferAmount,
		})
	}
	return q
}

const quoteColumns = `id, number, owner_kind, owner_user_id, status, currency, catalog_version,
	total_offer, created_at, expires_at, decided_at`

// Insert stores the quote header and its items.
func (r *QuoteRepo) Insert(ctx context.Context, q domain.Quote) error {
	if _, err := r.db.ExecContext(ctx, `
	  INSERT INTO quotes
	    (id, number, owner_kind, owner_user_id, status, currency, catalog_version, total_offer, created_at, expires_at)
	  VALUES
	    (?,  ?,      ?,          ?,             ?,      ?,        ?,               ?,           ?,          ?)
	`, q.ID, q.Number, string(q.Owner.Kind), q.Owner.UserID, string(q.Status), q.Currency, q.CatalogVersion,
		q.TotalOfferAmount.String(), formatTime(q.CreatedAt), formatTime(q.ExpiresAt)); err != nil {
		return err
	}
	for _, it := range q.Items {
		if _, err := r.db.ExecContext(ctx, `
		  INSERT INTO quote_items(quote_id, line, variant_id, condition, offer_amount)
		  VALUES (?, ?, ?, ?, ?)
		`, q.ID, it.Line, it.VariantID, string(it.Condition), it.OfferAmount.String()); err != nil {
			return err
		}
	}
	return nil
}

// ByNumber returns sql.ErrNoRows for an unknown number.
func (r *QuoteRepo) ByNumber(ctx context.Context, number string) (domain.Quote, error) {
	var row quoteRow
	if err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+quoteColumns+` FROM quotes WHERE number = ?`, number); err != nil {
		return domain.Quote{}, err
	}
	items, err := r.items(ctx, row.ID)
	if err != nil {
		return domain.Quote{}, err
	}
	return row.toDomain(items), nil
}

func (r *QuoteRepo) items(ctx context.Context, quoteID string) ([]quoteItemRow, error) {
	var items []quoteItemRow
	err := sqlx.SelectContext(ctx, r.db, &items, `
		SELECT line, variant_id, condition, offer_amount
		FROM quote_items
		WHERE quote_id = ?
		ORDER BY line
	`, quoteID)
	return items, err
}

// UpdateStatus moves the quote from one status to another. It reports false
// when the stored status no longer matches from.
func (r *QuoteRepo) UpdateStatus(ctx context.Context, id string, from, to domain.QuoteStatus, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quotes SET status = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTime(at), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ClaimForUser hands a guest quote to userID. It reports false when the
// quote is no longer guest-owned.
func (r *QuoteRepo) ClaimForUser(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quotes SET owner_kind = 'user', owner_user_id = ?
		WHERE id = ? AND owner_kind = 'guest'
	`, userID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListByOwner returns a user's quotes, newest first.
func (r *QuoteRepo) ListByOwner(ctx context.Context, userID string, limit int) ([]domain.Quote, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []quoteRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE owner_kind = 'user' AND owner_user_id = ?
		ORDER BY created_at DESC, number DESC
		LIMIT ?
	`, userID, limit); err != nil {
		return nil, err
	}
	out := make([]domain.Quote, 0, len(rows))
	for _, row := range rows {
		items, err := r.items(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, row.toDomain(items))
	}
	return out, nil
}
