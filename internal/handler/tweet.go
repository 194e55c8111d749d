package handler

import (
	"log/slog"
	"net/http"

	"github.com/imitation/backend/internal/auth"
	"github.com/imitation/backend/internal/service"
)

// TweetHandler serves the feed, tweet detail, comment threads and posting.
type TweetHandler struct {
	tweets *service.TweetService
	logger *slog.Logger
}

func NewTweetHandler(tweets *service.TweetService, logger *slog.Logger) *TweetHandler {
	return &TweetHandler{tweets: tweets, logger: logger}
}

// HandleHome returns a page of the feed.
//
// HTTP: GET /api/home?limit=50&offset=0
//
// Bad pagination values never fail the request; they are clamped.
func (h *TweetHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := service.ParsePagination(q.Get("limit"), q.Get("offset"))

	feed, err := h.tweets.Home(r.Context(), opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

// HandleGet returns one tweet with its thread position.
//
// HTTP: GET /api/tweet/{tweetId}
func (h *TweetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tweetId", "Tweet")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	detail, err := h.tweets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleComments returns the replies to a tweet, oldest first.
//
// HTTP: GET /api/tweet/{tweetId}/comments
func (h *TweetHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tweetId", "Tweet")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	comments, err := h.tweets.Comments(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleCommentsQuery is the query-string flavour used by older clients.
//
// HTTP: GET /api/comments?tweetId=123   (or tweetId=eq.123)
func (h *TweetHandler) HandleCommentsQuery(w http.ResponseWriter, r *http.Request) {
	comments, err := h.tweets.CommentsForParam(r.Context(), r.URL.Query().Get("tweetId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

type createTweetRequest struct {
	Body          string `json:"body"`
	IsComment     bool   `json:"is_comment"`
	ParentTweetID *int64 `json:"parent_tweet_id"`
}

// HandleCreate posts a tweet or comment as the signed-in user.
//
// HTTP: POST /api/create-tweet/user/{userId}
// Auth: required
//
// The {userId} segment is kept for URL compatibility only; the author is
// always the authenticated user.
func (h *TweetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Detail: "Not authenticated"})
		return
	}

	var req createTweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	detail, err := h.tweets.Create(r.Context(), user, service.CreateTweetInput{
		Body:          req.Body,
		IsComment:     req.IsComment,
		ParentTweetID: req.ParentTweetID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}
