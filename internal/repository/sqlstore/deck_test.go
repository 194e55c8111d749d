package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
)

func createTestDeck(t *testing.T, db *DB, owner *model.User, name string) *model.Deck {
	t.Helper()
	deck := &model.Deck{UserID: owner.ID, Name: name}
	require.NoError(t, db.CreateDeck(context.Background(), deck))
	return deck
}

func createTestCard(t *testing.T, db *DB, deck *model.Deck, front string) *model.Card {
	t.Helper()
	card := &model.Card{DeckID: deck.ID, Front: front, Back: front + " back"}
	require.NoError(t, db.CreateCard(context.Background(), card))
	return card
}

func scheduleReview(t *testing.T, db *DB, card *model.Card, user *model.User, next time.Time, count int64) {
	t.Helper()
	reviewed := time.Now().UTC()
	require.NoError(t, db.SaveStudyEntry(context.Background(), &model.StudyEntry{
		CardID:         card.ID,
		UserID:         user.ID,
		Status:         model.StudyStatusLearning,
		NextReviewAt:   next,
		LastReviewedAt: &reviewed,
		ReviewCount:    count,
	}))
}

// =========================================================================
// DECK TESTS
// =========================================================================

func TestDeck_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")

	deck := &model.Deck{UserID: owner.ID, Name: "Spanish", Description: ptr("verbs")}
	require.NoError(t, db.CreateDeck(ctx, deck))
	assert.NotZero(t, deck.ID)
	assert.Equal(t, deck.CreatedAt, deck.UpdatedAt)

	got, err := db.GetDeck(ctx, deck.ID, owner.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Spanish", got.Name)
	require.NotNil(t, got.Description)
	assert.Equal(t, "verbs", *got.Description)
	assert.Zero(t, got.CardCount)

	got.Name = "Español"
	got.Description = nil
	require.NoError(t, db.UpdateDeck(ctx, got))

	got, err = db.GetDeck(ctx, deck.ID, owner.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Español", got.Name)
	assert.Nil(t, got.Description)

	require.NoError(t, db.DeleteDeck(ctx, deck.ID, owner.ID))
	_, err = db.GetDeck(ctx, deck.ID, owner.ID, time.Now())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, db.DeleteDeck(ctx, deck.ID, owner.ID), apperror.ErrNotFound)
}

func TestDeck_OtherUsersDeckIsNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	other := createTestUser(t, db, "other")
	deck := createTestDeck(t, db, owner, "private")

	_, err := db.GetDeck(ctx, deck.ID, other.ID, time.Now())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.ErrorIs(t, db.DeleteDeck(ctx, deck.ID, other.ID), apperror.ErrNotFound)
	assert.ErrorIs(t, db.UpdateDeck(ctx, &model.Deck{ID: deck.ID, UserID: other.ID, Name: "mine"}), apperror.ErrNotFound)

	decks, err := db.ListDecks(ctx, other.ID, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, decks)
	assert.Empty(t, decks)
}

func TestListDecks_StudyCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	deck := createTestDeck(t, db, owner, "counts")

	createTestCard(t, db, deck, "untouched")
	due := createTestCard(t, db, deck, "due")
	later := createTestCard(t, db, deck, "later")

	now := time.Now().UTC()
	scheduleReview(t, db, due, owner, now.Add(-time.Minute), 1)
	scheduleReview(t, db, later, owner, now.Add(24*time.Hour), 2)

	decks, err := db.ListDecks(ctx, owner.ID, now)
	require.NoError(t, err)
	require.Len(t, decks, 1)
	assert.Equal(t, int64(3), decks[0].CardCount)
	assert.Equal(t, int64(1), decks[0].NewCount)
	assert.Equal(t, int64(1), decks[0].LearningCount)
	assert.Equal(t, int64(1), decks[0].ReviewedCount)

	// Two days on, both scheduled cards are due again.
	got, err := db.GetDeck(ctx, deck.ID, owner.ID, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.LearningCount)
	assert.Zero(t, got.ReviewedCount)
}

func TestListDecks_MostRecentlyUpdatedFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")

	first := createTestDeck(t, db, owner, "first")
	createTestDeck(t, db, owner, "second")
	require.NoError(t, db.UpdateDeck(ctx, first))

	decks, err := db.ListDecks(ctx, owner.ID, time.Now())
	require.NoError(t, err)
	require.Len(t, decks, 2)
	assert.Equal(t, "first", decks[0].Name)
	assert.Equal(t, "second", decks[1].Name)
}

// =========================================================================
// CARD TESTS
// =========================================================================

func TestCard_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	deck := createTestDeck(t, db, owner, "deck")

	card := createTestCard(t, db, deck, "hola")
	assert.NotZero(t, card.ID)
	assert.Equal(t, model.StudyStatusNew, card.Status)
	assert.Nil(t, card.NextReviewAt)

	got, err := db.GetCard(ctx, card.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, deck.ID, got.DeckID)
	assert.Equal(t, model.StudyStatusNew, got.Status)

	got.Front = "adiós"
	require.NoError(t, db.UpdateCard(ctx, got))

	next := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	scheduleReview(t, db, got, owner, next, 1)

	got, err = db.GetCard(ctx, card.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "adiós", got.Front)
	assert.Equal(t, model.StudyStatusLearning, got.Status)
	require.NotNil(t, got.NextReviewAt)
	assert.True(t, next.Equal(*got.NextReviewAt))

	require.NoError(t, db.DeleteCard(ctx, card.ID))
	_, err = db.GetCard(ctx, card.ID, owner.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, db.DeleteCard(ctx, card.ID), apperror.ErrNotFound)
	assert.ErrorIs(t, db.UpdateCard(ctx, card), apperror.ErrNotFound)
}

func TestListCards_OldestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	deck := createTestDeck(t, db, owner, "deck")

	for _, front := range []string{"a", "b", "c"} {
		createTestCard(t, db, deck, front)
	}

	cards, err := db.ListCards(ctx, deck.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, "a", cards[0].Front)
	assert.Equal(t, "c", cards[2].Front)
}

func TestDeleteDeck_CascadesToCards(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	deck := createTestDeck(t, db, owner, "deck")
	card := createTestCard(t, db, deck, "gone")
	scheduleReview(t, db, card, owner, time.Now().UTC(), 1)

	require.NoError(t, db.DeleteDeck(ctx, deck.ID, owner.ID))

	_, err := db.GetCard(ctx, card.ID, owner.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = db.GetStudyEntry(ctx, card.ID, owner.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// STUDY QUEUE TESTS
// =========================================================================

func TestDueCards_NewAndDueOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	deck := createTestDeck(t, db, owner, "deck")

	fresh := createTestCard(t, db, deck, "fresh")
	due := createTestCard(t, db, deck, "due")
	later := createTestCard(t, db, deck, "later")

	now := time.Now().UTC()
	scheduleReview(t, db, due, owner, now.Add(-time.Hour), 2)
	scheduleReview(t, db, later, owner, now.Add(time.Hour), 1)

	cards, err := db.DueCards(ctx, deck.ID, owner.ID, now, 10)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, fresh.ID, cards[0].ID)
	assert.Equal(t, model.StudyStatusNew, cards[0].Status)
	assert.Zero(t, cards[0].ReviewCount)
	assert.Equal(t, due.ID, cards[1].ID)
	assert.Equal(t, int64(2), cards[1].ReviewCount)

	limited, err := db.DueCards(ctx, deck.ID, owner.ID, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStudyCards_LeastRecentlyReviewedFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	deck := createTestDeck(t, db, owner, "deck")

	recent := createTestCard(t, db, deck, "recent")
	older := createTestCard(t, db, deck, "older")
	never := createTestCard(t, db, deck, "never")

	now := time.Now().UTC()
	for card, at := range map[*model.Card]time.Time{recent: now, older: now.Add(-time.Hour)} {
		reviewed := at
		require.NoError(t, db.SaveStudyEntry(ctx, &model.StudyEntry{
			CardID:         card.ID,
			UserID:         owner.ID,
			Status:         model.StudyStatusLearning,
			NextReviewAt:   now.Add(time.Hour),
			LastReviewedAt: &reviewed,
			ReviewCount:    1,
		}))
	}

	cards, err := db.StudyCards(ctx, deck.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, never.ID, cards[0].ID)
	assert.Equal(t, older.ID, cards[1].ID)
	assert.Equal(t, recent.ID, cards[2].ID)
}

func TestSaveStudyEntry_Upserts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	deck := createTestDeck(t, db, owner, "deck")
	card := createTestCard(t, db, deck, "card")

	_, err := db.GetStudyEntry(ctx, card.ID, owner.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	now := time.Now().UTC()
	scheduleReview(t, db, card, owner, now.Add(time.Minute), 1)

	entry, err := db.GetStudyEntry(ctx, card.ID, owner.ID)
	require.NoError(t, err)
	entry.ReviewCount = 3
	entry.Status = model.StudyStatusReviewed
	entry.NextReviewAt = now.Add(time.Hour)
	require.NoError(t, db.SaveStudyEntry(ctx, entry))

	got, err := db.GetStudyEntry(ctx, card.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ReviewCount)
	assert.Equal(t, model.StudyStatusReviewed, got.Status)
	assert.NotNil(t, got.LastReviewedAt)
}
