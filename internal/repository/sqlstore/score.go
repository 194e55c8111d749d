package sqlstore

import (
	"context"
	"fmt"

	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

var _ repository.ScoreRepository = (*DB)(nil)

func (db *DB) CreateAsteroidScore(ctx context.Context, score *model.AsteroidScore) error {
	score.CreatedAt = now()
	err := db.conn.QueryRowContext(ctx, db.rebind(
		`INSERT INTO asteroid_scores (user_id, player_name, score, created_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`),
		score.UserID,
		score.PlayerName,
		score.Score,
		score.CreatedAt,
	).Scan(&score.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting asteroid score: %w", err)
	}
	return nil
}

// TopAsteroidScores returns the n best scores. Ties go to the earlier game.
func (db *DB) TopAsteroidScores(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(
		`SELECT a.player_name, a.score, a.created_at
		 FROM asteroid_scores a
		 ORDER BY a.score DESC, a.created_at ASC
		 LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: querying leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.PlayerName, &e.Score, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (db *DB) CreateColorGameScore(ctx context.Context, score *model.ColorGameScore) error {
	score.CreatedAt = now()
	err := db.conn.QueryRowContext(ctx, db.rebind(
		`INSERT INTO color_game_scores (room_code, nickname, role, points, guess_number, target_cell, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		score.RoomCode,
		score.Nickname,
		score.Role,
		score.Points,
		score.GuessNumber,
		score.TargetCell,
		score.CreatedAt,
	).Scan(&score.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting color game score: %w", err)
	}
	return nil
}

// ColorGameStandings totals points per nickname within a room, best first.
func (db *DB) ColorGameStandings(ctx context.Context, roomCode string) ([]model.ColorGameStanding, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(
		`SELECT nickname, SUM(points) AS total_points, COUNT(*) AS rounds_played
		 FROM color_game_scores
		 WHERE room_code = ?
		 GROUP BY nickname
		 ORDER BY total_points DESC, nickname ASC`), roomCode)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: querying standings for room %s: %w", roomCode, err)
	}
	defer rows.Close()

	standings := []model.ColorGameStanding{}
	for rows.Next() {
		var s model.ColorGameStanding
		if err := rows.Scan(&s.Nickname, &s.TotalPoints, &s.RoundsPlayed); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning standing: %w", err)
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}
