package model

import "time"

// Study states of a card for one user. A card with no study_queue row is
// StudyStatusNew; the first review moves it to learning and the third to
// reviewed.
const (
	StudyStatusNew      = "new"
	StudyStatusLearning = "learning"
	StudyStatusReviewed = "reviewed"
)

// Deck is a named collection of flashcards owned by one user.
//
// The count fields are derived from the owner's study queue at read time:
// NewCount cards were never reviewed, LearningCount are due again and
// ReviewedCount are scheduled for later.
type Deck struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	CardCount     int64 `json:"card_count"`
	NewCount      int64 `json:"new_count"`
	LearningCount int64 `json:"learning_count"`
	ReviewedCount int64 `json:"reviewed_count"`
}

// Card is one front/back pair. Status and NextReviewAt describe the
// requesting user's progress on it.
type Card struct {
	ID           int64      `json:"id"`
	DeckID       int64      `json:"deck_id"`
	Front        string     `json:"front"`
	Back         string     `json:"back"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Status       string     `json:"status"`
	NextReviewAt *time.Time `json:"next_review_at"`

	// OwnerID is the user_id of the deck the card belongs to.
	OwnerID int64 `json:"-"`
}

// StudyCard is a card as handed to a study session.
type StudyCard struct {
	ID          int64  `json:"id"`
	Front       string `json:"front"`
	Back        string `json:"back"`
	Status      string `json:"status"`
	ReviewCount int64  `json:"review_count"`
}

// StudyEntry is a user's review schedule for one card.
type StudyEntry struct {
	CardID         int64
	UserID         int64
	Status         string
	NextReviewAt   time.Time
	LastReviewedAt *time.Time
	ReviewCount    int64
}

// ReviewResult is returned after a card is reviewed.
type ReviewResult struct {
	CardID       int64     `json:"card_id"`
	Status       string    `json:"status"`
	NextReviewAt time.Time `json:"next_review_at"`
	ReviewCount  int64     `json:"review_count"`
}
