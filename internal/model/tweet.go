package model

import "time"

// Tweet is a post or, when IsComment is set, a reply to ParentTweetID.
type Tweet struct {
	ID            int64
	Body          string
	UserID        *int64
	Likes         int64
	Replies       int64
	Restacks      int64
	Saves         int64
	IsComment     bool
	ParentTweetID *int64
	CreatedAt     time.Time

	// Author fields come from a LEFT JOIN on users and are nil when the
	// author row is missing.
	AuthorUsername   *string
	AuthorProfileURL *string
}

// Display defaults for tweets whose author cannot be resolved.
const (
	UnknownUserID      = "unknown"
	UnknownProfileName = "Unknown User"
)

// TweetSummary is one entry of the home feed.
//
// UserID and ProfileName both carry the author's username; when the author
// is missing they fall back to UnknownUserID and UnknownProfileName.
// ProfileURL is null when the author has none.
type TweetSummary struct {
	ID          int64   `json:"id"`
	Body        string  `json:"body"`
	Likes       int64   `json:"likes"`
	Replies     int64   `json:"replies"`
	Restacks    int64   `json:"restacks"`
	Saves       int64   `json:"saves"`
	UserID      string  `json:"userId"`
	ProfileName string  `json:"profileName"`
	ProfileURL  *string `json:"profileUrl"`
}

// TweetDetail is a single tweet, including its thread position.
type TweetDetail struct {
	TweetSummary
	IsComment     bool   `json:"is_comment"`
	ParentTweetID *int64 `json:"parent_tweet_id"`
}

// Comment is a reply as rendered under a tweet. Unlike TweetSummary, the
// author fields stay null when the author is missing.
type Comment struct {
	ID          int64   `json:"id"`
	UserID      *string `json:"userId"`
	ProfileName *string `json:"profileName"`
	Body        string  `json:"body"`
	Likes       int64   `json:"likes"`
	Replies     int64   `json:"replies"`
	ProfileURL  *string `json:"profileUrl"`
}

func (t *Tweet) Summary() TweetSummary {
	s := TweetSummary{
		ID:          t.ID,
		Body:        t.Body,
		Likes:       t.Likes,
		Replies:     t.Replies,
		Restacks:    t.Restacks,
		Saves:       t.Saves,
		UserID:      UnknownUserID,
		ProfileName: UnknownProfileName,
		ProfileURL:  nonEmpty(t.AuthorProfileURL),
	}
	if name := nonEmpty(t.AuthorUsername); name != nil {
		s.UserID = *name
		s.ProfileName = *name
	}
	return s
}

func (t *Tweet) Detail() TweetDetail {
	return TweetDetail{
		TweetSummary:  t.Summary(),
		IsComment:     t.IsComment,
		ParentTweetID: t.ParentTweetID,
	}
}

func (t *Tweet) Comment() Comment {
	name := nonEmpty(t.AuthorUsername)
	return Comment{
		ID:          t.ID,
		UserID:      name,
		ProfileName: name,
		Body:        t.Body,
		Likes:       t.Likes,
		Replies:     t.Replies,
		ProfileURL:  nonEmpty(t.AuthorProfileURL),
	}
}

// nonEmpty treats an empty string the same as NULL.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
