package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"tradein/internal/domain"
)

// UserRepo backs staff/customer accounts and the sid cookie sessions.
type UserRepo struct{ db sqlx.ExtContext }

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

const userColumns = `u.id, u.email, u.name, u.password_hash, u.role`

func (r *UserRepo) one(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	if err := sqlx.GetContext(ctx, r.db, &u, query, args...); err != nil {
		return nil, err
	}
	return &u, nil
}

// ByEmail matches case-insensitively.
func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users u WHERE LOWER(u.email) = LOWER(?)`, email)
}

// BindSession attaches userID to the session token, creating the row if needed.
func (r *UserRepo) BindSession(ctx context.Context, sid, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions(id, user_id, last_seen) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, last_seen = CURRENT_TIMESTAMP
	`, sid, userID)
	return err
}

// SessionUser returns sql.ErrNoRows for unknown or logged-out sessions.
func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, error) {
	return r.one(ctx, `
		SELECT `+userColumns+`
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ?
	`, sid)
}

func (r *UserRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET user_id = NULL, last_seen = CURRENT_TIMESTAMP WHERE id = ?
	`, sid)
	return err
}
