package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradein/internal/domain"
	"tradein/internal/metrics"
	"tradein/internal/repos"
)

const (
	DefaultQuoteTTL = 14 * 24 * time.Hour
	MaxQuoteItems   = 20
)

// Selection is one device the customer wants priced.
type Selection struct {
	VariantID string           `json:"variantId"`
	Condition domain.Condition `json:"condition"`
}

type QuoteService struct {
	Store    *repos.Store
	Pricing  *PricingResolver
	TTL      time.Duration
	Currency string
	Now      Clock
}

func NewQuoteService(store *repos.Store, pricing *PricingResolver, ttl time.Duration, currency string) *QuoteService {
	if ttl == 0 {
		ttl = DefaultQuoteTTL
	}
	if currency == "" {
		currency = "USD"
	}
	return &QuoteService{Store: store, Pricing: pricing, TTL: ttl, Currency: currency}
}

// Create prices every selection and stores the quote. Either every item
// resolves or nothing is written.
func (s *QuoteService) Create(ctx context.Context, owner domain.Owner, selections []Selection) (domain.QuoteView, error) {
	if len(selections) == 0 {
		return domain.QuoteView{}, domain.Errorf(domain.KindInvalidInput, "a quote needs at least one item")
	}
	if len(selections) > MaxQuoteItems {
		return domain.QuoteView{}, domain.Errorf(domain.KindInvalidInput, "a quote holds at most %d items", MaxQuoteItems)
	}
	if owner.Kind == domain.OwnerUser && strings.TrimSpace(owner.UserID) == "" {
		return domain.QuoteView{}, domain.Errorf(domain.KindInvalidInput, "user owner needs a user id")
	}
	if owner.Kind != domain.OwnerUser {
		owner = domain.GuestOwner()
	}

	// Resolve before the write transaction opens.
	selections = slices.Clone(selections)
	offers := make([]decimal.Decimal, len(selections))
	for i, sel := range selections {
		if cond, ok := domain.ParseCondition(string(sel.Condition)); ok {
			selections[i].Condition = cond
			sel.Condition = cond
		}
		price, err := s.Pricing.Resolve(ctx, strings.TrimSpace(sel.VariantID), sel.Condition)
		if err != nil {
			return domain.QuoteView{}, err
		}
		offers[i] = price
	}
	version, err := s.Store.Sequences.Current(ctx, catalogSequence)
	if err != nil {
		return domain.QuoteView{}, fmt.Errorf("read catalog version: %w", err)
	}

	now := s.Now.now()
	q := domain.Quote{
		ID:             uuid.NewString(),
		Owner:          owner,
		Status:         domain.QuotePending,
		Currency:       s.Currency,
		CatalogVersion: version,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.TTL),
	}
	for i, sel := range selections {
		q.AddItem(strings.TrimSpace(sel.VariantID), sel.Condition, offers[i])
	}

	err = s.Store.InTx(ctx, func(tx *repos.Store) error {
		number, err := QuoteNumbers.Next(ctx, tx.Sequences)
		if err != nil {
			return err
		}
		q.Number = number
		if err := tx.Quotes.Insert(ctx, q); err != nil {
			return fmt.Errorf("insert quote %s: %w", number, err)
		}
		return nil
	})
	if err != nil {
		return domain.QuoteView{}, err
	}
	metrics.QuotesCreated.Inc()
	return domain.NewQuoteView(q, now), nil
}

func loadQuote(ctx context.Context, store *repos.Store, number string) (domain.Quote, error) {
	q, err := store.Quotes.ByNumber(ctx, number)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quote{}, domain.Errorf(domain.KindNotFound, "quote %s not found", number)
	}
	if err != nil {
		return domain.Quote{}, fmt.Errorf("load quote %s: %w", number, err)
	}
	return q, nil
}

func (s *QuoteService) Get(ctx context.Context, number string) (domain.QuoteView, error) {
	q, err := loadQuote(ctx, s.Store, number)
	if err != nil {
		return domain.QuoteView{}, err
	}
	return domain.NewQuoteView(q, s.Now.now()), nil
}

// Accept marks a pending, unexpired quote accepted and opens its order in
// the same transaction.
func (s *QuoteService) Accept(ctx context.Context, number string) (domain.Order, error) {
	now := s.Now.now()
	var order domain.Order
	err := withRetry(ctx, "quote.accept", func() error {
		return s.Store.InTx(ctx, func(tx *repos.Store) error {
			q, err := loadQuote(ctx, tx, number)
			if err != nil {
				return err
			}
			if q.Status != domain.QuotePending {
				return domain.Errorf(domain.KindAlreadyDecided, "quote %s is already %s", q.Number, q.Status)
			}
			if q.IsExpired(now) {
				return domain.Errorf(domain.KindQuoteExpired, "quote %s expired at %s", q.Number, q.ExpiresAt.Format(time.RFC3339))
			}
			if err := applied(tx.Quotes.UpdateStatus(ctx, q.ID, domain.QuotePending, domain.QuoteAccepted, now)); err != nil {
				return err
			}
			order, err = openOrder(ctx, tx, q, now)
			return err
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	metrics.QuoteDecisions.WithLabelValues(string(domain.QuoteAccepted)).Inc()
	metrics.OrderTransitions.WithLabelValues(string(domain.OrderPendingShipment)).Inc()
	return order, nil
}

// Decline is terminal. An expired but still pending quote may be declined.
func (s *QuoteService) Decline(ctx context.Context, number string) (domain.QuoteView, error) {
	now := s.Now.now()
	var q domain.Quote
	err := withRetry(ctx, "quote.decline", func() error {
		return s.Store.InTx(ctx, func(tx *repos.Store) error {
			var err error
			q, err = loadQuote(ctx, tx, number)
			if err != nil {
				return err
			}
			if q.Status != domain.QuotePending {
				return domain.Errorf(domain.KindAlreadyDecided, "quote %s is already %s", q.Number, q.Status)
			}
			if err := applied(tx.Quotes.UpdateStatus(ctx, q.ID, domain.QuotePending, domain.QuoteDeclined, now)); err != nil {
				return err
			}
			q.Status = domain.QuoteDeclined
			q.DecidedAt = &now
			return nil
		})
	})
	if err != nil {
		return domain.QuoteView{}, err
	}
	metrics.QuoteDecisions.WithLabelValues(string(domain.QuoteDeclined)).Inc()
	return domain.NewQuoteView(q, now), nil
}

// Claim moves a guest quote, and the order opened from it if any, to userID.
func (s *QuoteService) Claim(ctx context.Context, number, userID string) (domain.QuoteView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.QuoteView{}, domain.Errorf(domain.KindInvalidInput, "user id is required")
	}
	var q domain.Quote
	err := withRetry(ctx, "quote.claim", func() error {
		return s.Store.InTx(ctx, func(tx *repos.Store) error {
			var err error
			q, err = loadQuote(ctx, tx, number)
			if err != nil {
				return err
			}
			if !q.Owner.IsGuest() {
				return domain.Errorf(domain.KindInvalidTransition, "quote %s already belongs to a user", q.Number)
			}
			if err := applied(tx.Quotes.ClaimForUser(ctx, q.ID, userID)); err != nil {
				return err
			}
			if err := tx.Orders.ClaimForQuote(ctx, q.ID, userID); err != nil {
				return err
			}
			q.Owner = domain.UserOwner(userID)
			return nil
		})
	})
	if err != nil {
		return domain.QuoteView{}, err
	}
	return domain.NewQuoteView(q, s.Now.now()), nil
}

func (s *QuoteService) ListForOwner(ctx context.Context, userID string) ([]domain.QuoteView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "user id is required")
	}
	quotes, err := s.Store.Quotes.ListByOwner(ctx, userID, 50)
	if err != nil {
		return nil, fmt.Errorf("list quotes of %s: %w", userID, err)
	}
	now := s.Now.now()
	out := make([]domain.QuoteView, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, domain.NewQuoteView(q, now))
	}
	return out, nil
}
