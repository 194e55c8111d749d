package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

const (
	LeaderboardSize = 10
	AnonymousPlayer = "ANONYMOUS"
)

// ScoreService records game results and ranks them.
type ScoreService struct {
	scores repository.ScoreRepository
	logger *slog.Logger
}

func NewScoreService(scores repository.ScoreRepository, logger *slog.Logger) *ScoreService {
	return &ScoreService{scores: scores, logger: logger}
}

func (s *ScoreService) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	entries, err := s.scores.TopAsteroidScores(ctx, LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("service/score: reading leaderboard: %w", err)
	}
	return entries, nil
}

// SubmitAsteroid stores a finished game under the player's username.
func (s *ScoreService) SubmitAsteroid(ctx context.Context, player *model.User, score int64) (*model.AsteroidScore, error) {
	if score < 0 {
		return nil, apperror.ValidationFailed("score", "score must be a non-negative integer")
	}

	name := AnonymousPlayer
	if player.Username != "" {
		name = player.Username
	}
	row := &model.AsteroidScore{
		UserID:     &player.ID,
		PlayerName: name,
		Score:      score,
	}
	if err := s.scores.CreateAsteroidScore(ctx, row); err != nil {
		return nil, fmt.Errorf("service/score: saving asteroid score: %w", err)
	}

	s.logger.Info("asteroid score recorded",
		slog.Int64("userID", player.ID),
		slog.Int64("score", score),
	)
	return row, nil
}

// ColorRoundInput is one finished color-grid round.
type ColorRoundInput struct {
	RoomCode    string
	Nickname    string
	Role        string
	Points      int64
	GuessNumber *int64
	TargetCell  *string
}

func (s *ScoreService) RecordColorRound(ctx context.Context, in ColorRoundInput) (*model.ColorGameScore, error) {
	in.RoomCode = strings.TrimSpace(in.RoomCode)
	in.Nickname = strings.TrimSpace(in.Nickname)
	in.Role = strings.TrimSpace(in.Role)
	if in.RoomCode == "" || in.Nickname == "" || in.Role == "" {
		return nil, apperror.ValidationFailed("roomCode", "roomCode, nickname, and role are required")
	}

	row := &model.ColorGameScore{
		RoomCode:    in.RoomCode,
		Nickname:    in.Nickname,
		Role:        in.Role,
		Points:      in.Points,
		GuessNumber: in.GuessNumber,
		TargetCell:  in.TargetCell,
	}
	if err := s.scores.CreateColorGameScore(ctx, row); err != nil {
		return nil, fmt.Errorf("service/score: saving color round: %w", err)
	}
	return row, nil
}

func (s *ScoreService) Standings(ctx context.Context, room string) ([]model.ColorGameStanding, error) {
	if room == "" {
		return nil, apperror.ValidationFailed("room", "room parameter required")
	}
	standings, err := s.scores.ColorGameStandings(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("service/score: reading standings for %s: %w", room, err)
	}
	return standings, nil
}
