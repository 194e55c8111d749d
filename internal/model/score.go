package model

import "time"

// AsteroidScore is one finished Asteroids game. Rows are append-only.
type AsteroidScore struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id"`
	PlayerName string    `json:"player_name"`
	Score      int64     `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// LeaderboardEntry is the public projection of an AsteroidScore.
type LeaderboardEntry struct {
	PlayerName string    `json:"player_name"`
	Score      int64     `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// ColorGameScore is one round result in a color-grid room.
type ColorGameScore struct {
	ID          int64     `json:"id"`
	RoomCode    string    `json:"room_code"`
	Nickname    string    `json:"nickname"`
	Role        string    `json:"role"`
	Points      int64     `json:"points"`
	GuessNumber *int64    `json:"guess_number"`
	TargetCell  *string   `json:"target_cell"`
	CreatedAt   time.Time `json:"created_at"`
}

// ColorGameStanding aggregates a player's rounds within one room.
type ColorGameStanding struct {
	Nickname     string `json:"nickname"`
	TotalPoints  int64  `json:"total_points"`
	RoundsPlayed int64  `json:"rounds_played"`
}
