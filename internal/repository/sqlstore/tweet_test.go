package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

func createTestTweet(t *testing.T, db *DB, body string, userID *int64) *model.Tweet {
	t.Helper()
	tweet := &model.Tweet{Body: body, UserID: userID}
	require.NoError(t, db.CreateTweet(context.Background(), tweet))
	return tweet
}

func createTestComment(t *testing.T, db *DB, body string, parentID int64, userID *int64) *model.Tweet {
	t.Helper()
	tweet := &model.Tweet{Body: body, UserID: userID, IsComment: true, ParentTweetID: &parentID}
	require.NoError(t, db.CreateTweet(context.Background(), tweet))
	return tweet
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateTweet(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	tweet := createTestTweet(t, db, "hello world", &user.ID)
	assert.NotZero(t, tweet.ID)
	assert.Zero(t, tweet.Likes)
	assert.Zero(t, tweet.Replies)

	got, err := db.GetTweet(context.Background(), tweet.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Body)
	assert.False(t, got.IsComment)
	assert.Nil(t, got.ParentTweetID)
	require.NotNil(t, got.AuthorUsername)
	assert.Equal(t, "alice", *got.AuthorUsername)
}

func TestCreateTweet_CommentIncrementsParentReplies(t *testing.T) {
	db := newTestDB(t)
	parent := createTestTweet(t, db, "parent", nil)

	createTestComment(t, db, "first", parent.ID, nil)
	createTestComment(t, db, "second", parent.ID, nil)

	got, err := db.GetTweet(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Replies)
}

func TestCreateTweet_MissingParentRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	missing := int64(404)
	err := db.CreateTweet(ctx, &model.Tweet{Body: "orphan", IsComment: true, ParentTweetID: &missing})
	require.ErrorIs(t, err, apperror.ErrNotFound)
	assert.EqualError(t, err, "Parent tweet not found")

	feed, err := db.ListFeed(ctx, repository.ListOptions{Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, feed)
	comments, err := db.ListComments(ctx, missing)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

// =========================================================================
// READ TESTS
// =========================================================================

func TestGetTweet_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetTweet(context.Background(), 12345)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.EqualError(t, err, "Tweet not found")
}

func TestGetTweet_WithoutAuthor(t *testing.T) {
	db := newTestDB(t)
	tweet := createTestTweet(t, db, "anonymous", nil)

	got, err := db.GetTweet(context.Background(), tweet.ID)
	require.NoError(t, err)
	assert.Nil(t, got.UserID)
	assert.Nil(t, got.AuthorUsername)
	assert.Nil(t, got.AuthorProfileURL)
}

func TestTweetExists(t *testing.T) {
	db := newTestDB(t)
	tweet := createTestTweet(t, db, "here", nil)

	ok, err := db.TweetExists(context.Background(), tweet.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.TweetExists(context.Background(), tweet.ID+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListFeed_NewestFirstAndExcludesComments(t *testing.T) {
	db := newTestDB(t)

	first := createTestTweet(t, db, "first", nil)
	second := createTestTweet(t, db, "second", nil)
	third := createTestTweet(t, db, "third", nil)
	createTestComment(t, db, "a reply", first.ID, nil)

	feed, err := db.ListFeed(context.Background(), repository.ListOptions{Limit: 50})
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, tweetIDs(feed))
}

func TestListFeed_LimitAndOffset(t *testing.T) {
	db := newTestDB(t)
	var ids []int64
	for _, body := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, createTestTweet(t, db, body, nil).ID)
	}

	page, err := db.ListFeed(context.Background(), repository.ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[3], ids[2]}, tweetIDs(page))

	past, err := db.ListFeed(context.Background(), repository.ListOptions{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.NotNil(t, past)
	assert.Empty(t, past)
}

func TestListComments_OnlyDirectChildrenOldestFirst(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "bob")

	a := createTestTweet(t, db, "A", nil)
	other := createTestTweet(t, db, "other", nil)
	b := createTestComment(t, db, "B", a.ID, &user.ID)
	c := createTestComment(t, db, "C", a.ID, nil)
	createTestComment(t, db, "on other", other.ID, nil)
	createTestComment(t, db, "nested", b.ID, nil)

	comments, err := db.ListComments(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID, c.ID}, tweetIDs(comments))
	require.NotNil(t, comments[0].AuthorUsername)
	assert.Equal(t, "bob", *comments[0].AuthorUsername)
	assert.Nil(t, comments[1].AuthorUsername)
}

func tweetIDs(tweets []model.Tweet) []int64 {
	ids := make([]int64, len(tweets))
	for i, tw := range tweets {
		ids[i] = tw.ID
	}
	return ids
}
