package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/auth"
	"github.com/imitation/backend/internal/service"
)

// ScoreHandler serves the Asteroids leaderboard and color-grid standings.
type ScoreHandler struct {
	scores *service.ScoreService
	logger *slog.Logger
}

func NewScoreHandler(scores *service.ScoreService, logger *slog.Logger) *ScoreHandler {
	return &ScoreHandler{scores: scores, logger: logger}
}

// HandleLeaderboard: GET /api/asteroid-scores
func (h *ScoreHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.scores.Leaderboard(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

type submitScoreRequest struct {
	// json.Number keeps 12.5 distinguishable from 12, so fractional scores
	// are rejected instead of truncated.
	Score *json.Number `json:"score"`
}

// HandleSubmitAsteroid records a finished game for the signed-in player.
//
// HTTP: POST /api/asteroid-scores
// Auth: required
// BODY: {"score": 4200}
func (h *ScoreHandler) HandleSubmitAsteroid(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Detail: "Not authenticated"})
		return
	}

	var req submitScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Score == nil {
		writeError(w, r, h.logger, apperror.ValidationFailed("score", "score is required"))
		return
	}
	score, err := req.Score.Int64()
	if err != nil {
		writeError(w, r, h.logger, apperror.ValidationFailed("score", "score must be a non-negative integer"))
		return
	}

	row, err := h.scores.SubmitAsteroid(r.Context(), user, score)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// HandleStandings: GET /api/color-game/scores?room=ABCD
func (h *ScoreHandler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.scores.Standings(r.Context(), r.URL.Query().Get("room"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

type colorRoundRequest struct {
	RoomCode    string  `json:"roomCode"`
	Nickname    string  `json:"nickname"`
	Role        string  `json:"role"`
	Points      int64   `json:"points"`
	GuessNumber *int64  `json:"guessNumber"`
	TargetCell  *string `json:"targetCell"`
}

// HandleRecordColorRound: POST /api/color-game/scores
func (h *ScoreHandler) HandleRecordColorRound(w http.ResponseWriter, r *http.Request) {
	var req colorRoundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	row, err := h.scores.RecordColorRound(r.Context(), service.ColorRoundInput{
		RoomCode:    req.RoomCode,
		Nickname:    req.Nickname,
		Role:        req.Role,
		Points:      req.Points,
		GuessNumber: req.GuessNumber,
		TargetCell:  req.TargetCell,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}
