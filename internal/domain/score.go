package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActionType is the outcome a score was recorded for.
type ActionType string

const (
	ActionWin  ActionType = "win"
	ActionLose ActionType = "lose"
)

// Valid reports whether the action type is one of the known outcomes.
func (a ActionType) Valid() bool {
	return a == ActionWin || a == ActionLose
}

// Score is a single scoring event linking a user and a game session. Scores
// are immutable once recorded.
type Score struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	GameSessionID uuid.UUID  `json:"game_session_id"`
	Points        int        `json:"points"`
	ActionType    ActionType `json:"action_type"`
	RecordedAt    time.Time  `json:"recorded_at"`
}

// ScoreEvent is the wire format for score submissions arriving over Kafka.
type ScoreEvent struct {
	UserID        uuid.UUID  `json:"user_id"`
	GameSessionID uuid.UUID  `json:"game_session_id"`
	Points        int        `json:"points"`
	ActionType    ActionType `json:"action_type"`
}
