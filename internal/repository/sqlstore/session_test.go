package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "carol")

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, db.CreateSession(ctx, &model.Session{
		TokenHash: "abc123",
		UserID:    user.ID,
		ExpiresAt: expires,
	}))

	got, err := db.GetSession(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.True(t, expires.Equal(got.ExpiresAt), "expires_at round-trips: want %v, got %v", expires, got.ExpiresAt)

	require.NoError(t, db.DeleteSession(ctx, "abc123"))
	_, err = db.GetSession(ctx, "abc123")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// Deleting again is not an error.
	assert.NoError(t, db.DeleteSession(ctx, "abc123"))
}

func TestCreateSession_DuplicateHash(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "dave")

	s := &model.Session{TokenHash: "same", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.CreateSession(ctx, s))
	err := db.CreateSession(ctx, &model.Session{TokenHash: "same", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestDeleteExpiredSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "erin")
	now := time.Now().UTC()

	require.NoError(t, db.CreateSession(ctx, &model.Session{TokenHash: "old", UserID: user.ID, ExpiresAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, db.CreateSession(ctx, &model.Session{TokenHash: "fresh", UserID: user.ID, ExpiresAt: now.Add(2 * time.Hour)}))

	n, err := db.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetSession(ctx, "old")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = db.GetSession(ctx, "fresh")
	assert.NoError(t, err)
}
