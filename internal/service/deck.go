package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

const (
	MaxDeckNameLength        = 200
	MaxDeckDescriptionLength = 1000
	DefaultStudyLimit        = 10
	MaxRemindValue           = 365

	// reviewsToGraduate is the review count at which a card stops being
	// "learning".
	reviewsToGraduate = 3
)

// remindUnits maps the client's reminder units to durations.
var remindUnits = map[string]time.Duration{
	"min": time.Minute,
	"hr":  time.Hour,
	"day": 24 * time.Hour,
}

// DeckService manages flashcard decks and schedules card reviews.
//
// OWNERSHIP:
// A deck that belongs to someone else is reported as "Deck not found", so
// deck IDs do not leak. Card routes address a card directly; touching a
// card in another user's deck is "Not authorized".
//
// REVIEW SCHEDULE:
//
//	new ──review──▶ learning ──3rd review──▶ reviewed
//
// Every review sets the next reminder to now + the interval the user
// picked. A card is due again once that instant passes, whatever its state.
type DeckService struct {
	decks  repository.DeckRepository
	logger *slog.Logger

	now func() time.Time // swapped in tests
}

func NewDeckService(decks repository.DeckRepository, logger *slog.Logger) *DeckService {
	return &DeckService{decks: decks, logger: logger, now: time.Now}
}

// DeckInput creates a deck. A nil Description means none.
type DeckInput struct {
	Name        string
	Description *string
}

// DeckUpdate changes a deck. Nil fields keep their current value.
type DeckUpdate struct {
	Name        *string
	Description *string
}

// CardInput creates a card.
type CardInput struct {
	Front string
	Back  string
}

// CardUpdate changes a card. Nil fields keep their current value.
type CardUpdate struct {
	Front *string
	Back  *string
}

// ReviewInput schedules the next reminder. RemindValue is the raw number
// the client sent, so that "2.5" and "abc" can be told apart from 0.
type ReviewInput struct {
	RemindValue string
	RemindUnit  string
}

func (s *DeckService) List(ctx context.Context, user *model.User) ([]model.Deck, error) {
	decks, err := s.decks.ListDecks(ctx, user.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("service/deck: listing decks: %w", err)
	}
	return decks, nil
}

func (s *DeckService) Create(ctx context.Context, user *model.User, in DeckInput) (*model.Deck, error) {
	name, err := deckName(in.Name)
	if err != nil {
		return nil, err
	}
	deck := &model.Deck{
		UserID:      user.ID,
		Name:        name,
		Description: deckDescription(in.Description),
	}
	if err := s.decks.CreateDeck(ctx, deck); err != nil {
		return nil, fmt.Errorf("service/deck: creating deck: %w", err)
	}

	s.logger.Info("deck created",
		slog.Int64("userID", user.ID),
		slog.Int64("deckID", deck.ID),
	)
	return deck, nil
}

// Get returns apperror "Deck not found" unless user owns the deck.
func (s *DeckService) Get(ctx context.Context, user *model.User, deckID int64) (*model.Deck, error) {
	deck, err := s.decks.GetDeck(ctx, deckID, user.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("service/deck: fetching deck %d: %w", deckID, err)
	}
	return deck, nil
}

func (s *DeckService) Update(ctx context.Context, user *model.User, deckID int64, in DeckUpdate) (*model.Deck, error) {
	deck, err := s.Get(ctx, user, deckID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if deck.Name, err = deckName(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		deck.Description = deckDescription(in.Description)
	}
	if err := s.decks.UpdateDeck(ctx, deck); err != nil {
		return nil, fmt.Errorf("service/deck: updating deck %d: %w", deckID, err)
	}
	return deck, nil
}

func (s *DeckService) Delete(ctx context.Context, user *model.User, deckID int64) error {
	if err := s.decks.DeleteDeck(ctx, deckID, user.ID); err != nil {
		return fmt.Errorf("service/deck: deleting deck %d: %w", deckID, err)
	}
	s.logger.Info("deck deleted",
		slog.Int64("userID", user.ID),
		slog.Int64("deckID", deckID),
	)
	return nil
}

func (s *DeckService) Cards(ctx context.Context, user *model.User, deckID int64) ([]model.Card, error) {
	if _, err := s.Get(ctx, user, deckID); err != nil {
		return nil, err
	}
	cards, err := s.decks.ListCards(ctx, deckID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/deck: listing cards of deck %d: %w", deckID, err)
	}
	return cards, nil
}

func (s *DeckService) AddCard(ctx context.Context, user *model.User, deckID int64, in CardInput) (*model.Card, error) {
	if _, err := s.Get(ctx, user, deckID); err != nil {
		return nil, err
	}
	front, back, err := cardSides(in.Front, in.Back)
	if err != nil {
		return nil, err
	}
	card := &model.Card{DeckID: deckID, Front: front, Back: back, OwnerID: user.ID}
	if err := s.decks.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("service/deck: adding card to deck %d: %w", deckID, err)
	}
	return card, nil
}

// UpdateCard edits a card in one of user's decks.
func (s *DeckService) UpdateCard(ctx context.Context, user *model.User, cardID int64, in CardUpdate) (*model.Card, error) {
	card, err := s.ownedCard(ctx, user, cardID)
	if err != nil {
		return nil, err
	}
	front, back := card.Front, card.Back
	if in.Front != nil {
		front = *in.Front
	}
	if in.Back != nil {
		back = *in.Back
	}
	if card.Front, card.Back, err = cardSides(front, back); err != nil {
		return nil, err
	}
	if err := s.decks.UpdateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("service/deck: updating card %d: %w", cardID, err)
	}
	return card, nil
}

func (s *DeckService) DeleteCard(ctx context.Context, user *model.User, cardID int64) error {
	if _, err := s.ownedCard(ctx, user, cardID); err != nil {
		return err
	}
	if err := s.decks.DeleteCard(ctx, cardID); err != nil {
		return fmt.Errorf("service/deck: deleting card %d: %w", cardID, err)
	}
	return nil
}

// StudyQueue returns up to limit cards that are new or due now.
func (s *DeckService) StudyQueue(ctx context.Context, user *model.User, deckID int64, limit int) ([]model.StudyCard, error) {
	now := s.now()
	if _, err := s.decks.GetDeck(ctx, deckID, user.ID, now); err != nil {
		return nil, fmt.Errorf("service/deck: fetching deck %d: %w", deckID, err)
	}
	cards, err := s.decks.DueCards(ctx, deckID, user.ID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("service/deck: listing due cards of deck %d: %w", deckID, err)
	}
	return cards, nil
}

// StudyAll returns every card in the deck, least recently reviewed first,
// for a cram session that ignores the schedule.
func (s *DeckService) StudyAll(ctx context.Context, user *model.User, deckID int64) ([]model.StudyCard, error) {
	if _, err := s.Get(ctx, user, deckID); err != nil {
		return nil, err
	}
	cards, err := s.decks.StudyCards(ctx, deckID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/deck: listing study cards of deck %d: %w", deckID, err)
	}
	return cards, nil
}

// Review records that user reviewed the card and schedules the next
// reminder. Ownership is checked before the input is validated.
func (s *DeckService) Review(ctx context.Context, user *model.User, cardID int64, in ReviewInput) (*model.ReviewResult, error) {
	if _, err := s.ownedCard(ctx, user, cardID); err != nil {
		return nil, err
	}
	interval, err := remindInterval(in)
	if err != nil {
		return nil, err
	}

	entry, err := s.decks.GetStudyEntry(ctx, cardID, user.ID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		entry = &model.StudyEntry{CardID: cardID, UserID: user.ID}
	case err != nil:
		return nil, fmt.Errorf("service/deck: reading schedule of card %d: %w", cardID, err)
	}

	now := s.now().UTC()
	entry.ReviewCount++
	entry.Status = model.StudyStatusLearning
	if entry.ReviewCount >= reviewsToGraduate {
		entry.Status = model.StudyStatusReviewed
	}
	entry.NextReviewAt = now.Add(interval)
	entry.LastReviewedAt = &now

	if err := s.decks.SaveStudyEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("service/deck: saving schedule of card %d: %w", cardID, err)
	}

	s.logger.Debug("card reviewed",
		slog.Int64("userID", user.ID),
		slog.Int64("cardID", cardID),
		slog.Int64("reviewCount", entry.ReviewCount),
	)
	return &model.ReviewResult{
		CardID:       cardID,
		Status:       entry.Status,
		NextReviewAt: entry.NextReviewAt,
		ReviewCount:  entry.ReviewCount,
	}, nil
}

// ownedCard loads a card and checks that its deck belongs to user.
func (s *DeckService) ownedCard(ctx context.Context, user *model.User, cardID int64) (*model.Card, error) {
	card, err := s.decks.GetCard(ctx, cardID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/deck: fetching card %d: %w", cardID, err)
	}
	if card.OwnerID != user.ID {
		s.logger.Warn("card access denied",
			slog.Int64("userID", user.ID),
			slog.Int64("cardID", cardID),
		)
		return nil, apperror.Forbidden("Not authorized")
	}
	return card, nil
}

// ParseStudyLimit reads the ?limit= of a study session. Missing or
// non-numeric values give DefaultStudyLimit.
func ParseStudyLimit(raw string) int {
	limit := parseQueryInt(raw)
	if limit == 0 {
		limit = DefaultStudyLimit
	}
	return min(max(limit, 1), MaxListLimit)
}

func deckName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > MaxDeckNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("Deck name is required and must be under %d characters", MaxDeckNameLength))
	}
	return name, nil
}

// deckDescription trims and truncates; blank means none.
func deckDescription(raw *string) *string {
	if raw == nil {
		return nil
	}
	desc := strings.TrimSpace(*raw)
	if utf8.RuneCountInString(desc) > MaxDeckDescriptionLength {
		desc = string([]rune(desc)[:MaxDeckDescriptionLength])
	}
	if desc == "" {
		return nil
	}
	return &desc
}

func cardSides(front, back string) (string, string, error) {
	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	if front == "" || back == "" {
		return "", "", apperror.ValidationFailed("front", "Front and back are required")
	}
	return front, back, nil
}

func remindInterval(in ReviewInput) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(in.RemindValue), 64)
	if err != nil || value != math.Trunc(value) || value < 1 || value > MaxRemindValue {
		return 0, apperror.ValidationFailed("remind_value",
			fmt.Sprintf("remind_value must be an integer between 1 and %d", MaxRemindValue))
	}
	unit, ok := remindUnits[in.RemindUnit]
	if !ok {
		return 0, apperror.ValidationFailed("remind_unit", "remind_unit must be min, hr, or day")
	}
	return time.Duration(value) * unit, nil
}
