package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	_, err := db.conn.ExecContext(ctx, db.rebind(
		`INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`),
		s.TokenHash,
		s.UserID,
		s.CreatedAt.UTC(),
		s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting session for user %d: %w", s.UserID, translate(err))
	}
	return nil
}

func (db *DB) GetSession(ctx context.Context, tokenHash string) (*model.Session, error) {
	var s model.Session
	err := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT token_hash, user_id, created_at, expires_at
		 FROM sessions WHERE token_hash = ?`),
		tokenHash,
	).Scan(&s.TokenHash, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Session")
		}
		return nil, fmt.Errorf("sqlstore: getting session: %w", err)
	}
	return &s, nil
}

func (db *DB) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM sessions WHERE token_hash = ?`), tokenHash)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session whose expiry is at or before
// t and reports how many rows went away.
func (db *DB) DeleteExpiredSessions(ctx context.Context, t time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM sessions WHERE expires_at <= ?`), t.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: deleting expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: counting expired sessions: %w", err)
	}
	return n, nil
}
