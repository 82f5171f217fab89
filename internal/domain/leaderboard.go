package domain

import "github.com/google/uuid"

// GlobalBoard aggregates points across every game on the platform.
const GlobalBoard = "global"

// GameBoard returns the board identifier for a single game's leaderboard.
func GameBoard(gameID uuid.UUID) string {
	return "game:" + gameID.String()
}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
	Rank        int64     `json:"rank"`
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	TotalPoints int64     `json:"total_points"`
}
