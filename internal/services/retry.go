package services

import (
	"context"
	"errors"
	"time"

	"tradein/internal/domain"
	"tradein/internal/metrics"
)

// Clock returns the current time; tests swap it for a fixed or stepping one.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// errConflict marks a conditional update that matched no row because the
// record moved on after it was read.
var errConflict = errors.New("conditional update matched no row")

const maxAttempts = 3

// withRetry runs fn until it stops reporting errConflict, up to maxAttempts.
func withRetry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, errConflict) {
			return err
		}
		metrics.Conflicts.WithLabelValues(op).Inc()
		if attempt >= maxAttempts {
			return domain.Errorf(domain.KindConcurrencyConflict, "%s: record changed concurrently, gave up after %d attempts", op, maxAttempts)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// applied converts a conditional update result into errConflict.
func applied(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return errConflict
	}
	return nil
}
