package domain

import "github.com/google/uuid"

// Game catalog field limits.
const (
	MaxGameNameLen        = 100
	MaxGameDescriptionLen = 255
)

// Game is a catalog entry. Names are unique across the catalog.
type Game struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}
