package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

const MaxTweetLength = 500

// TweetService serves the feed, single tweets and comment threads.
type TweetService struct {
	tweets repository.TweetRepository
	logger *slog.Logger
}

func NewTweetService(tweets repository.TweetRepository, logger *slog.Logger) *TweetService {
	return &TweetService{tweets: tweets, logger: logger}
}

// Home returns one page of top-level tweets, newest first. opts should
// already be clamped (see ParsePagination).
func (s *TweetService) Home(ctx context.Context, opts repository.ListOptions) ([]model.TweetSummary, error) {
	tweets, err := s.tweets.ListFeed(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/tweet: listing feed: %w", err)
	}
	out := make([]model.TweetSummary, len(tweets))
	for i := range tweets {
		out[i] = tweets[i].Summary()
	}
	return out, nil
}

func (s *TweetService) Get(ctx context.Context, id int64) (model.TweetDetail, error) {
	tweet, err := s.tweets.GetTweet(ctx, id)
	if err != nil {
		return model.TweetDetail{}, fmt.Errorf("service/tweet: fetching tweet %d: %w", id, err)
	}
	return tweet.Detail(), nil
}

// Comments returns the direct replies to parentID, oldest first. An
// unknown parent is "Tweet not found", not an empty thread.
func (s *TweetService) Comments(ctx context.Context, parentID int64) ([]model.Comment, error) {
	ok, err := s.tweets.TweetExists(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("service/tweet: checking tweet %d: %w", parentID, err)
	}
	if !ok {
		return nil, apperror.NotFound("Tweet")
	}
	return s.listComments(ctx, parentID)
}

// CommentsForParam backs GET /api/comments?tweetId=. The value may be a
// plain ID or a PostgREST-style filter ("eq.123"). A missing or malformed
// ID yields an empty list rather than an error.
func (s *TweetService) CommentsForParam(ctx context.Context, raw string) ([]model.Comment, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "eq."), 10, 64)
	if err != nil {
		return []model.Comment{}, nil
	}
	return s.listComments(ctx, id)
}

func (s *TweetService) listComments(ctx context.Context, parentID int64) ([]model.Comment, error) {
	tweets, err := s.tweets.ListComments(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("service/tweet: listing comments of %d: %w", parentID, err)
	}
	out := make([]model.Comment, len(tweets))
	for i := range tweets {
		out[i] = tweets[i].Comment()
	}
	return out, nil
}

// CreateTweetInput is the body of POST /api/create-tweet/user/{userId}.
type CreateTweetInput struct {
	Body          string
	IsComment     bool
	ParentTweetID *int64
}

// Create posts a tweet as author. A comment must name its parent and a
// top-level tweet must not; the parent's reply counter moves in the same
// transaction as the insert.
func (s *TweetService) Create(ctx context.Context, author *model.User, in CreateTweetInput) (model.TweetDetail, error) {
	if strings.TrimSpace(in.Body) == "" {
		return model.TweetDetail{}, apperror.ValidationFailed("body", "body is required")
	}
	if utf8.RuneCountInString(in.Body) > MaxTweetLength {
		return model.TweetDetail{}, apperror.ValidationFailed("body",
			fmt.Sprintf("body must be %d characters or fewer", MaxTweetLength))
	}
	if in.IsComment && in.ParentTweetID == nil {
		return model.TweetDetail{}, apperror.ValidationFailed("parent_tweet_id", "parent_tweet_id is required for comments")
	}
	if !in.IsComment && in.ParentTweetID != nil {
		return model.TweetDetail{}, apperror.ValidationFailed("parent_tweet_id", "parent_tweet_id is only allowed on comments")
	}

	tweet := &model.Tweet{
		Body:          in.Body,
		UserID:        &author.ID,
		IsComment:     in.IsComment,
		ParentTweetID: in.ParentTweetID,
	}
	if err := s.tweets.CreateTweet(ctx, tweet); err != nil {
		return model.TweetDetail{}, fmt.Errorf("service/tweet: creating tweet: %w", err)
	}
	tweet.AuthorUsername = &author.Username
	tweet.AuthorProfileURL = author.ProfileURL

	s.logger.Info("tweet created",
		slog.Int64("tweetID", tweet.ID),
		slog.Int64("userID", author.ID),
		slog.Bool("isComment", tweet.IsComment),
	)
	return tweet.Detail(), nil
}
