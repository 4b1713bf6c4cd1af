package services

import (
	"context"
	"fmt"

	"tradein/internal/repos"
)

// Numberer formats values of one storage sequence as public document numbers.
type Numberer struct {
	Sequence string
	Prefix   string
	Width    int
}

var (
	QuoteNumbers = Numberer{Sequence: "quote", Prefix: "SHC-Q-", Width: 6}
	OrderNumbers = Numberer{Sequence: "order", Prefix: "SHC-S-", Width: 6}
)

// Next allocates a number. Called with a transaction-bound SequenceRepo the
// value is only consumed if the transaction commits.
func (n Numberer) Next(ctx context.Context, seqs *repos.SequenceRepo) (string, error) {
	v, err := seqs.Next(ctx, n.Sequence)
	if err != nil {
		return "", fmt.Errorf("allocate %s number: %w", n.Sequence, err)
	}
	return n.Format(v)
}

func (n Numberer) Format(v int64) (string, error) {
	limit := int64(1)
	for range n.Width {
		limit *= 10
	}
	if v <= 0 || v >= limit {
		return "", fmt.Errorf("%s sequence exhausted at %d", n.Sequence, v)
	}
	return fmt.Sprintf("%s%0*d", n.Prefix, n.Width, v), nil
}
