package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, bio, profile_url, external_uid, COALESCE(password_hash, ''), created_at`

// CreateUser inserts a user and fills in ID and CreatedAt.
// A taken username or external UID yields repository.ErrDuplicate.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = now()

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	err := db.conn.QueryRowContext(ctx, db.rebind(
		`INSERT INTO users (username, bio, profile_url, external_uid, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		user.Username,
		user.Bio,
		user.ProfileURL,
		user.ExternalUID,
		passwordHash,
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting user %q: %w", user.Username, translate(err))
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (db *DB) GetUserByExternalUID(ctx context.Context, uid string) (*model.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE external_uid = ?`, uid)
}

func (db *DB) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx, db.rebind(query), arg).Scan(
		&u.ID,
		&u.Username,
		&u.Bio,
		&u.ProfileURL,
		&u.ExternalUID,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("User")
		}
		return nil, fmt.Errorf("sqlstore: getting user (%v): %w", arg, err)
	}
	return &u, nil
}
