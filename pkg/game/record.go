package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/tecu23/chess-relay/internal/color"
)

// Record is what a finished game hands to the persistence layer
type Record struct {
	ID        uuid.UUID   `json:"id"`
	RoomID    string      `json:"room_id"`
	White     string      `json:"white"`
	Black     string      `json:"black"`
	Moves     []string    `json:"moves"`
	Winner    color.Color `json:"winner,omitempty"` // empty for a draw
	Reason    string      `json:"reason"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
}

// IsDraw reports whether the game ended without a winner
func (r *Record) IsDraw() bool {
	return r.Winner == ""
}
