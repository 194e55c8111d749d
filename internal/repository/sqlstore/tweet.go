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

var _ repository.TweetRepository = (*DB)(nil)

// tweetSelect joins the author so every read returns display fields. The
// LEFT JOIN keeps tweets whose author row is gone.
const tweetSelect = `
	SELECT t.id, t.body, t.user_id, t.likes, t.replies, t.restacks, t.saves,
	       t.is_comment, t.parent_tweet_id, t.created_at,
	       u.username, u.profile_url
	FROM tweets t
	LEFT JOIN users u ON u.id = t.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTweet(row rowScanner) (*model.Tweet, error) {
	var t model.Tweet
	err := row.Scan(
		&t.ID,
		&t.Body,
		&t.UserID,
		&t.Likes,
		&t.Replies,
		&t.Restacks,
		&t.Saves,
		&t.IsComment,
		&t.ParentTweetID,
		&t.CreatedAt,
		&t.AuthorUsername,
		&t.AuthorProfileURL,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTweet inserts the tweet and, for a comment, bumps the parent's reply
// counter in the same transaction. A missing parent rolls everything back and
// yields apperror.NotFound("Parent tweet").
func (db *DB) CreateTweet(ctx context.Context, tweet *model.Tweet) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning tweet transaction: %w", err)
	}
	defer tx.Rollback()

	if tweet.IsComment && tweet.ParentTweetID != nil {
		res, err := tx.ExecContext(ctx,
			db.rebind(`UPDATE tweets SET replies = replies + 1 WHERE id = ?`),
			*tweet.ParentTweetID,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: incrementing replies of tweet %d: %w", *tweet.ParentTweetID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlstore: checking parent tweet %d: %w", *tweet.ParentTweetID, err)
		}
		if n == 0 {
			return apperror.NotFound("Parent tweet")
		}
	}

	tweet.CreatedAt = now()
	err = tx.QueryRowContext(ctx, db.rebind(
		`INSERT INTO tweets (body, is_comment, parent_tweet_id, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id, likes, replies, restacks, saves`),
		tweet.Body,
		tweet.IsComment,
		tweet.ParentTweetID,
		tweet.UserID,
		tweet.CreatedAt,
	).Scan(&tweet.ID, &tweet.Likes, &tweet.Replies, &tweet.Restacks, &tweet.Saves)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting tweet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing tweet: %w", err)
	}
	return nil
}

// GetTweet returns apperror.NotFound("Tweet") for an unknown ID.
func (db *DB) GetTweet(ctx context.Context, id int64) (*model.Tweet, error) {
	t, err := scanTweet(db.conn.QueryRowContext(ctx, db.rebind(tweetSelect+` WHERE t.id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Tweet")
		}
		return nil, fmt.Errorf("sqlstore: getting tweet %d: %w", id, err)
	}
	return t, nil
}

func (db *DB) TweetExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, db.rebind(`SELECT 1 FROM tweets WHERE id = ?`), id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("sqlstore: checking tweet %d: %w", id, err)
	}
	return true, nil
}

// ListFeed returns top-level tweets, newest first.
func (db *DB) ListFeed(ctx context.Context, opts repository.ListOptions) ([]model.Tweet, error) {
	return db.listTweets(ctx,
		tweetSelect+`
		WHERE t.is_comment = ?
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ? OFFSET ?`,
		false, opts.Limit, opts.Offset,
	)
}

// ListComments returns the comments of parentID, oldest first.
func (db *DB) ListComments(ctx context.Context, parentID int64) ([]model.Tweet, error) {
	return db.listTweets(ctx,
		tweetSelect+`
		WHERE t.parent_tweet_id = ? AND t.is_comment = ?
		ORDER BY t.created_at ASC, t.id ASC`,
		parentID, true,
	)
}

func (db *DB) listTweets(ctx context.Context, query string, args ...any) ([]model.Tweet, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing tweets: %w", err)
	}
	defer rows.Close()

	tweets := []model.Tweet{}
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning tweet: %w", err)
		}
		tweets = append(tweets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating tweets: %w", err)
	}
	return tweets, nil
}
