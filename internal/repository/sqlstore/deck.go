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

var _ repository.DeckRepository = (*DB)(nil)

// deckSelect aggregates the owner's study queue per deck. The single
// placeholder before WHERE is the instant due-ness is judged at.
const deckSelect = `
	SELECT d.id, d.user_id, d.name, d.description, d.created_at, d.updated_at,
	       COUNT(c.id),
	       COUNT(sq.id),
	       COALESCE(SUM(CASE WHEN sq.next_review_at <= ? THEN 1 ELSE 0 END), 0)
	FROM decks d
	LEFT JOIN cards c ON c.deck_id = d.id
	LEFT JOIN study_queue sq ON sq.card_id = c.id AND sq.user_id = d.user_id`

const deckGroupBy = `
	GROUP BY d.id, d.user_id, d.name, d.description, d.created_at, d.updated_at`

func scanDeck(row rowScanner) (*model.Deck, error) {
	var (
		d            model.Deck
		tracked, due int64
	)
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Name,
		&d.Description,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.CardCount,
		&tracked,
		&due,
	)
	if err != nil {
		return nil, err
	}
	d.NewCount = d.CardCount - tracked
	d.LearningCount = due
	d.ReviewedCount = tracked - due
	return &d, nil
}

func (db *DB) CreateDeck(ctx context.Context, deck *model.Deck) error {
	deck.CreatedAt = now()
	deck.UpdatedAt = deck.CreatedAt
	err := db.conn.QueryRowContext(ctx, db.rebind(
		`INSERT INTO decks (user_id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		deck.UserID,
		deck.Name,
		deck.Description,
		deck.CreatedAt,
		deck.UpdatedAt,
	).Scan(&deck.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting deck: %w", err)
	}
	return nil
}

func (db *DB) ListDecks(ctx context.Context, userID int64, asOf time.Time) ([]model.Deck, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(deckSelect+`
		WHERE d.user_id = ?`+deckGroupBy+`
		ORDER BY d.updated_at DESC, d.id DESC`),
		asOf.UTC(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing decks of user %d: %w", userID, err)
	}
	defer rows.Close()

	decks := []model.Deck{}
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning deck: %w", err)
		}
		decks = append(decks, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating decks: %w", err)
	}
	return decks, nil
}

// GetDeck returns apperror.NotFound("Deck") unless userID owns the deck.
func (db *DB) GetDeck(ctx context.Context, deckID, userID int64, asOf time.Time) (*model.Deck, error) {
	d, err := scanDeck(db.conn.QueryRowContext(ctx, db.rebind(deckSelect+`
		WHERE d.id = ? AND d.user_id = ?`+deckGroupBy),
		asOf.UTC(), deckID, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Deck")
		}
		return nil, fmt.Errorf("sqlstore: getting deck %d: %w", deckID, err)
	}
	return d, nil
}

func (db *DB) UpdateDeck(ctx context.Context, deck *model.Deck) error {
	deck.UpdatedAt = now()
	res, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE decks SET name = ?, description = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`),
		deck.Name,
		deck.Description,
		deck.UpdatedAt,
		deck.ID,
		deck.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating deck %d: %w", deck.ID, err)
	}
	return expectOne(res, "Deck")
}

// DeleteDeck relies on ON DELETE CASCADE to remove cards and schedules.
func (db *DB) DeleteDeck(ctx context.Context, deckID, userID int64) error {
	res, err := db.conn.ExecContext(ctx,
		db.rebind(`DELETE FROM decks WHERE id = ? AND user_id = ?`),
		deckID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting deck %d: %w", deckID, err)
	}
	return expectOne(res, "Deck")
}

func (db *DB) CreateCard(ctx context.Context, card *model.Card) error {
	card.CreatedAt = now()
	card.UpdatedAt = card.CreatedAt
	err := db.conn.QueryRowContext(ctx, db.rebind(
		`INSERT INTO cards (deck_id, front, back, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		card.DeckID,
		card.Front,
		card.Back,
		card.CreatedAt,
		card.UpdatedAt,
	).Scan(&card.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting card: %w", err)
	}
	card.Status = model.StudyStatusNew
	card.NextReviewAt = nil
	return nil
}

// cardSelect joins the deck for its owner and the requesting user's
// schedule. The first placeholder is that user's ID.
const cardSelect = `
	SELECT c.id, c.deck_id, c.front, c.back, c.created_at, c.updated_at,
	       d.user_id, sq.status, sq.next_review_at
	FROM cards c
	JOIN decks d ON d.id = c.deck_id
	LEFT JOIN study_queue sq ON sq.card_id = c.id AND sq.user_id = ?`

func scanCard(row rowScanner) (*model.Card, error) {
	var (
		c      model.Card
		status sql.NullString
	)
	err := row.Scan(
		&c.ID,
		&c.DeckID,
		&c.Front,
		&c.Back,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.OwnerID,
		&status,
		&c.NextReviewAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.StudyStatusNew
	if status.Valid {
		c.Status = status.String
	}
	return &c, nil
}

func (db *DB) ListCards(ctx context.Context, deckID, userID int64) ([]model.Card, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(cardSelect+`
		WHERE c.deck_id = ?
		ORDER BY c.created_at ASC, c.id ASC`),
		userID, deckID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing cards of deck %d: %w", deckID, err)
	}
	defer rows.Close()

	cards := []model.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning card: %w", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating cards: %w", err)
	}
	return cards, nil
}

// GetCard returns apperror.NotFound("Card") for an unknown ID.
func (db *DB) GetCard(ctx context.Context, cardID, userID int64) (*model.Card, error) {
	c, err := scanCard(db.conn.QueryRowContext(ctx, db.rebind(cardSelect+`
		WHERE c.id = ?`),
		userID, cardID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Card")
		}
		return nil, fmt.Errorf("sqlstore: getting card %d: %w", cardID, err)
	}
	return c, nil
}

func (db *DB) UpdateCard(ctx context.Context, card *model.Card) error {
	card.UpdatedAt = now()
	res, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE cards SET front = ?, back = ?, updated_at = ? WHERE id = ?`),
		card.Front,
		card.Back,
		card.UpdatedAt,
		card.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating card %d: %w", card.ID, err)
	}
	return expectOne(res, "Card")
}

func (db *DB) DeleteCard(ctx context.Context, cardID int64) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM cards WHERE id = ?`), cardID)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting card %d: %w", cardID, err)
	}
	return expectOne(res, "Card")
}

const studySelect = `
	SELECT c.id, c.front, c.back,
	       COALESCE(sq.status, 'new'),
	       COALESCE(sq.review_count, 0)
	FROM cards c
	LEFT JOIN study_queue sq ON sq.card_id = c.id AND sq.user_id = ?`

// DueCards returns cards never reviewed by userID plus those whose next
// review is at or before asOf, in the order they were added.
func (db *DB) DueCards(ctx context.Context, deckID, userID int64, asOf time.Time, limit int) ([]model.StudyCard, error) {
	return db.listStudyCards(ctx, studySelect+`
		WHERE c.deck_id = ? AND (sq.id IS NULL OR sq.next_review_at <= ?)
		ORDER BY c.created_at ASC, c.id ASC
		LIMIT ?`,
		userID, deckID, asOf.UTC(), limit,
	)
}

// StudyCards puts never-reviewed cards first, then the rest by how long ago
// they were last reviewed.
func (db *DB) StudyCards(ctx context.Context, deckID, userID int64) ([]model.StudyCard, error) {
	return db.listStudyCards(ctx, studySelect+`
		WHERE c.deck_id = ?
		ORDER BY sq.last_reviewed_at IS NOT NULL, sq.last_reviewed_at ASC, c.id ASC`,
		userID, deckID,
	)
}

func (db *DB) listStudyCards(ctx context.Context, query string, args ...any) ([]model.StudyCard, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing study cards: %w", err)
	}
	defer rows.Close()

	cards := []model.StudyCard{}
	for rows.Next() {
		var c model.StudyCard
		if err := rows.Scan(&c.ID, &c.Front, &c.Back, &c.Status, &c.ReviewCount); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning study card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating study cards: %w", err)
	}
	return cards, nil
}

// GetStudyEntry returns apperror.NotFound("Study entry") when the user has
// no schedule for the card.
func (db *DB) GetStudyEntry(ctx context.Context, cardID, userID int64) (*model.StudyEntry, error) {
	e := model.StudyEntry{CardID: cardID, UserID: userID}
	err := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT status, next_review_at, last_reviewed_at, review_count
		 FROM study_queue
		 WHERE card_id = ? AND user_id = ?`),
		cardID, userID,
	).Scan(&e.Status, &e.NextReviewAt, &e.LastReviewedAt, &e.ReviewCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Study entry")
		}
		return nil, fmt.Errorf("sqlstore: getting study entry for card %d: %w", cardID, err)
	}
	return &e, nil
}

// SaveStudyEntry upserts on the (card_id, user_id) unique key.
func (db *DB) SaveStudyEntry(ctx context.Context, e *model.StudyEntry) error {
	var lastReviewed *time.Time
	if e.LastReviewedAt != nil {
		t := e.LastReviewedAt.UTC()
		lastReviewed = &t
	}
	_, err := db.conn.ExecContext(ctx, db.rebind(
		`INSERT INTO study_queue (card_id, user_id, status, next_review_at, last_reviewed_at, review_count)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (card_id, user_id) DO UPDATE SET
		     status = excluded.status,
		     next_review_at = excluded.next_review_at,
		     last_reviewed_at = excluded.last_reviewed_at,
		     review_count = excluded.review_count`),
		e.CardID,
		e.UserID,
		e.Status,
		e.NextReviewAt.UTC(),
		lastReviewed,
		e.ReviewCount,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: saving study entry for card %d: %w", e.CardID, translate(err))
	}
	return nil
}

// expectOne turns an UPDATE or DELETE that matched nothing into
// apperror.NotFound(resource).
func expectOne(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking affected rows: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource)
	}
	return nil
}
