// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in sub-packages (sqlstore, redisstore).
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/imitation/backend/internal/model"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
// Callers use it to resolve get-or-create races.
var ErrDuplicate = errors.New("repository: duplicate key")

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByExternalUID(ctx context.Context, uid string) (*model.User, error)
}

type TweetRepository interface {
	// CreateTweet inserts a tweet. For comments it also verifies the parent
	// exists and increments its reply counter, atomically.
	CreateTweet(ctx context.Context, tweet *model.Tweet) error
	GetTweet(ctx context.Context, id int64) (*model.Tweet, error)
	TweetExists(ctx context.Context, id int64) (bool, error)
	ListFeed(ctx context.Context, opts ListOptions) ([]model.Tweet, error)
	ListComments(ctx context.Context, parentID int64) ([]model.Tweet, error)
}

type ScoreRepository interface {
	CreateAsteroidScore(ctx context.Context, score *model.AsteroidScore) error
	TopAsteroidScores(ctx context.Context, n int) ([]model.LeaderboardEntry, error)
	CreateColorGameScore(ctx context.Context, score *model.ColorGameScore) error
	ColorGameStandings(ctx context.Context, roomCode string) ([]model.ColorGameStanding, error)
}

// DeckRepository stores flashcard decks, their cards and each user's
// review schedule. Reads that report study state take the user whose
// progress is wanted and, where due-ness matters, the instant to judge it at.
type DeckRepository interface {
	CreateDeck(ctx context.Context, deck *model.Deck) error
	// ListDecks returns userID's decks, most recently updated first.
	ListDecks(ctx context.Context, userID int64, asOf time.Time) ([]model.Deck, error)
	// GetDeck returns apperror.ErrNotFound when the deck is missing or
	// belongs to another user.
	GetDeck(ctx context.Context, deckID, userID int64, asOf time.Time) (*model.Deck, error)
	// UpdateDeck writes name, description and updated_at.
	UpdateDeck(ctx context.Context, deck *model.Deck) error
	// DeleteDeck removes the deck with its cards and schedules. Like
	// GetDeck it only matches decks userID owns.
	DeleteDeck(ctx context.Context, deckID, userID int64) error

	CreateCard(ctx context.Context, card *model.Card) error
	// ListCards returns a deck's cards, oldest first.
	ListCards(ctx context.Context, deckID, userID int64) ([]model.Card, error)
	// GetCard returns apperror.ErrNotFound for an unknown card. It does not
	// check ownership; OwnerID carries the deck owner for the caller.
	GetCard(ctx context.Context, cardID, userID int64) (*model.Card, error)
	// UpdateCard writes front, back and updated_at.
	UpdateCard(ctx context.Context, card *model.Card) error
	DeleteCard(ctx context.Context, cardID int64) error

	// DueCards returns up to limit cards that are new or due at asOf.
	DueCards(ctx context.Context, deckID, userID int64, asOf time.Time, limit int) ([]model.StudyCard, error)
	// StudyCards returns every card, least recently reviewed first.
	StudyCards(ctx context.Context, deckID, userID int64) ([]model.StudyCard, error)
	// GetStudyEntry returns apperror.ErrNotFound when userID never reviewed
	// the card.
	GetStudyEntry(ctx context.Context, cardID, userID int64) (*model.StudyEntry, error)
	// SaveStudyEntry inserts or replaces the (card, user) schedule.
	SaveStudyEntry(ctx context.Context, entry *model.StudyEntry) error
}

// SessionRepository is the session store: opaque token hash -> user.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	// GetSession returns apperror.ErrNotFound when no session has the hash.
	// It does not filter expired rows; the caller decides.
	GetSession(ctx context.Context, tokenHash string) (*model.Session, error)
	// DeleteSession is idempotent.
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
