package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

const MaxUsernameLength = 50

// UserService creates and looks up user profiles.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// CreateUserInput is the body of POST /api/user.
type CreateUserInput struct {
	Username    string
	Bio         *string
	ExternalUID *string
}

// Create registers a profile. The unique index on username is the only
// duplicate check, so two racing requests for one name cannot both succeed.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	username, err := validateUsername(in.Username)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:    username,
		Bio:         in.Bio,
		ExternalUID: emptyToNil(in.ExternalUID),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.explainDuplicate(ctx, username)
		}
		return nil, fmt.Errorf("service/user: creating %q: %w", username, err)
	}

	s.logger.Info("user created",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// explainDuplicate works out which unique column a failed insert hit.
func (s *UserService) explainDuplicate(ctx context.Context, username string) error {
	_, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.ValidationFailed("supabase_uid", "External identity already registered")
	}
	return apperror.ValidationFailed("username", "Username already taken")
}

// GetByID returns apperror "User not found" for an unknown ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %d: %w", id, err)
	}
	return user, nil
}

// GetOrCreate returns the user bound to an external identity, creating it on
// first contact.
//
// RACES:
// Two first requests for the same identity can both miss the lookup and both
// insert. The unique index on external_uid lets exactly one insert win; the
// loser sees repository.ErrDuplicate, re-reads by external_uid and returns
// the winner's row. A duplicate that is not on external_uid is a username
// collision with some other user, and the next candidate name is tried.
//
// Any other error is returned as-is and nothing is retried.
func (s *UserService) GetOrCreate(ctx context.Context, id model.Identity) (*model.User, error) {
	if id.Subject == "" {
		return nil, apperror.Unauthorized("Identity has no subject")
	}

	user, err := s.users.GetUserByExternalUID(ctx, id.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/user: looking up identity %s: %w", id.Subject, err)
	}

	subject := id.Subject
	for _, name := range usernameCandidates(id) {
		user := &model.User{Username: name, ExternalUID: &subject}
		err := s.users.CreateUser(ctx, user)
		if err == nil {
			s.logger.Info("user created from identity",
				slog.Int64("userID", user.ID),
				slog.String("username", user.Username),
				slog.String("subject", subject),
			)
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("service/user: creating user for identity %s: %w", subject, err)
		}

		existing, lerr := s.users.GetUserByExternalUID(ctx, subject)
		if lerr == nil {
			return existing, nil
		}
		if !errors.Is(lerr, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/user: re-reading identity %s: %w", subject, lerr)
		}
		s.logger.Debug("username taken, trying next candidate", slog.String("username", name))
	}

	return nil, fmt.Errorf("service/user: no free username for identity %s", subject)
}

// usernameCandidates lists the names tried for a new identity, in order:
// the provider login, the email's local part, then names derived from the
// subject. The last one is unique whenever the subject is.
func usernameCandidates(id model.Identity) []string {
	uid := sanitizeUsername(id.Subject)
	short := uid
	if len(short) > 8 {
		short = short[:8]
	}

	raw := []string{id.Login}
	if local, _, ok := strings.Cut(id.Email, "@"); ok {
		raw = append(raw, local)
	}
	raw = append(raw, "user_"+short, "user_"+uid)

	seen := make(map[string]bool)
	var out []string
	for _, name := range raw {
		name = sanitizeUsername(name)
		if len(name) > MaxUsernameLength {
			name = name[:MaxUsernameLength]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// sanitizeUsername keeps ASCII letters, digits, '_', '-' and '.'.
func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", apperror.ValidationFailed("username", "username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "", apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength))
	}
	return username, nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
