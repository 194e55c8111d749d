// Package redisstore keeps sessions in Redis instead of the SQL database.
//
// Each session is a hash at "session:<token hash>" with the user ID and both
// timestamps. Redis expires the key at the session's expiry, so expired
// sessions disappear without a sweep.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

const keyPrefix = "session:"

var _ repository.SessionRepository = (*Store)(nil)

type Store struct {
	client *redis.Client
}

// New connects to addr and verifies the connection with a PING.
func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.WithContext(ctx).Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: pinging %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Ping is used by the health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.WithContext(ctx).Ping().Err()
}

func key(tokenHash string) string {
	return keyPrefix + tokenHash
}

func (s *Store) CreateSession(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	k := key(session.TokenHash)
	_, err := s.client.WithContext(ctx).TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.HMSet(k, map[string]interface{}{
			"user_id":    session.UserID,
			"created_at": session.CreatedAt.UnixNano(),
			"expires_at": session.ExpiresAt.UnixNano(),
		})
		pipe.ExpireAt(k, session.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: storing session for user %d: %w", session.UserID, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, tokenHash string) (*model.Session, error) {
	fields, err := s.client.WithContext(ctx).HGetAll(key(tokenHash)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, apperror.NotFound("Session")
		}
		return nil, fmt.Errorf("redisstore: getting session: %w", err)
	}
	if len(fields) == 0 {
		return nil, apperror.NotFound("Session")
	}

	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parsing user_id: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parsing created_at: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parsing expires_at: %w", err)
	}

	return &model.Session{
		TokenHash: tokenHash,
		UserID:    userID,
		CreatedAt: time.Unix(0, created).UTC(),
		ExpiresAt: time.Unix(0, expires).UTC(),
	}, nil
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	if err := s.client.WithContext(ctx).Del(key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("redisstore: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions is a no-op: Redis evicts keys at their expiry.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
