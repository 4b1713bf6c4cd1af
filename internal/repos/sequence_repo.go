package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SequenceRepo hands out strictly increasing values per sequence name.
type SequenceRepo struct{ db sqlx.ExtContext }

func NewSequenceRepo(db sqlx.ExtContext) *SequenceRepo { return &SequenceRepo{db: db} }

// Next allocates the next value of name in a single statement, so two
// callers can never observe the same value even outside a transaction.
func (r *SequenceRepo) Next(ctx context.Context, name string) (int64, error) {
	var v int64
	err := sqlx.GetContext(ctx, r.db, &v, `
		INSERT INTO sequences(name, value) VALUES(?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value
	`, name)
	return v, err
}

// Current returns the last allocated value, or 0 if none was allocated yet.
func (r *SequenceRepo) Current(ctx context.Context, name string) (int64, error) {
	var v int64
	err := sqlx.GetContext(ctx, r.db, &v, `SELECT value FROM sequences WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}
