package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session player capacity bounds.
const (
	MinSessionPlayers = 2
	MaxSessionPlayers = 4
)

// GameSession tracks a single play session of a game. Player membership is
// capped by MaxPlayers, and the session moves one way from ongoing to ended.
type GameSession struct {
	ID         uuid.UUID  `json:"id"`
	GameID     uuid.UUID  `json:"game_id"`
	MaxPlayers int        `json:"max_players"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Players    []User     `json:"players,omitempty"`
}

// AddPlayer appends the player if the session still has room. It reports
// whether the player was added.
func (s *GameSession) AddPlayer(player User) bool {
	if len(s.Players) >= s.MaxPlayers {
		return false
	}
	s.Players = append(s.Players, player)
	return true
}

// RemovePlayer removes the player with the matching ID. It reports whether
// the player was a member.
func (s *GameSession) RemovePlayer(player User) bool {
	for i, p := range s.Players {
		if p.ID == player.ID {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return true
		}
	}
	return false
}

// EndSession stamps the session with the current end time. There is no
// operation to reopen an ended session.
func (s *GameSession) EndSession() {
	now := time.Now().UTC()
	s.EndedAt = &now
}

// IsOngoing reports whether the session has not ended yet.
func (s *GameSession) IsOngoing() bool {
	return s.EndedAt == nil
}

// Duration returns the elapsed time between start and end, or zero while the
// session is still ongoing.
func (s *GameSession) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
