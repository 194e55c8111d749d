package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/auth"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

const MinPasswordLength = 8

// invalidCredentials is the one message for every login failure, so the
// response does not reveal whether the username exists.
const invalidCredentials = "invalid credentials"

var _ auth.Resolver = (*AuthService)(nil)

// AuthService owns the session lifecycle:
//
//	absent ──login / OAuth──▶ active ──logout──▶ revoked
//	                            │
//	                            └──ttl passes──▶ expired (deleted on next lookup)
//
// Sessions live in a repository.SessionRepository (SQL table or Redis).
// Only token hashes are stored; the raw token goes back to the handler,
// which puts it in the cookie.
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	accounts  *UserService
	passwords *auth.PasswordService
	ttl       time.Duration
	logger    *slog.Logger

	now func() time.Time // swapped in tests
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	accounts *UserService,
	passwords *auth.PasswordService,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	if ttl <= 0 {
		ttl = auth.SessionTTL
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		accounts:  accounts,
		passwords: passwords,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// IssuedSession is what a successful login hands back to the handler.
type IssuedSession struct {
	User      *model.User
	Token     string // raw token for the cookie
	ExpiresAt time.Time
}

// Signup creates a password account.
func (s *AuthService) Signup(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "username and password are required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if _, err := validateUsername(username); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("username already exists")
		}
		return nil, fmt.Errorf("service/auth: creating account %q: %w", username, err)
	}

	s.logger.Info("account created",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks a username/password pair and opens a session. Expired
// sessions are swept first so the table does not grow without bound.
func (s *AuthService) Login(ctx context.Context, username, password string) (*IssuedSession, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "username and password are required")
	}

	if n, err := s.sessions.DeleteExpiredSessions(ctx, s.now()); err != nil {
		s.logger.Warn("sweeping expired sessions", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.Debug("swept expired sessions", slog.Int64("count", n))
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}
	if !user.HasPassword() {
		return nil, apperror.Unauthorized(invalidCredentials)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(ctx, user)
}

// LoginWithIdentity opens a session for an external identity, creating the
// user on first login. Used by the GitHub callback.
func (s *AuthService) LoginWithIdentity(ctx context.Context, id model.Identity) (*IssuedSession, error) {
	user, err := s.accounts.GetOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*IssuedSession, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating session token: %w", err)
	}

	now := s.now().UTC()
	session := &model.Session{
		TokenHash: auth.HashToken(token),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/auth: storing session: %w", err)
	}

	s.logger.Info("session issued",
		slog.Int64("userID", user.ID),
		slog.Time("expiresAt", session.ExpiresAt),
	)
	return &IssuedSession{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Logout revokes the session behind token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, auth.HashToken(token)); err != nil {
		return fmt.Errorf("service/auth: revoking session: %w", err)
	}
	return nil
}

// ResolveSession returns the owner of an active session. Absent, expired
// and orphaned sessions all come back as apperror.ErrUnauthorized; an
// expired row is deleted on the way.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.Unauthorized("Not authenticated")
	}
	hash := auth.HashToken(token)

	session, err := s.sessions.GetSession(ctx, hash)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("Not authenticated")
		}
		return nil, fmt.Errorf("service/auth: reading session: %w", err)
	}

	if session.Expired(s.now()) {
		if err := s.sessions.DeleteSession(ctx, hash); err != nil {
			s.logger.Warn("deleting expired session", slog.String("error", err.Error()))
		}
		return nil, apperror.Unauthorized("Session expired")
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("Not authenticated")
		}
		return nil, fmt.Errorf("service/auth: reading session user %d: %w", session.UserID, err)
	}
	return user, nil
}

// ResolveIdentity maps a verified bearer identity onto a user.
func (s *AuthService) ResolveIdentity(ctx context.Context, id model.Identity) (*model.User, error) {
	return s.accounts.GetOrCreate(ctx, id)
}
