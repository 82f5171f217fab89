package domain

import (
	"time"

	"github.com/google/uuid"
)

// Username and password constraints enforced by the user service.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 50
	MinPasswordLen = 8
)

// User represents a registered platform account. Score and session
// collections are derived views resolved through the storage layer; the
// entity itself carries identifier references only.
type User struct {
	ID               uuid.UUID  `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	RegisteredAt     time.Time  `json:"registered_at"`
	CurrentSessionID *uuid.UUID `json:"current_session_id,omitempty"`
}
