package models

import "github.com/google/uuid"

// Player is one seat in a session. Hand order is fixed at deal time; the
// playable card is always the head. A player's hand is mutated only by
// reducer transitions attributed to that player's ID.
type Player struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	Hand        []Card    `json:"hand"`

	// IsActive is false once the hand empties; an inactive player is skipped
	// in turn rotation but stays eligible for replenishment via voting.
	IsActive bool `json:"isActive"`

	// ShufflesLeft is the remaining allowance of hand reshuffles.
	ShufflesLeft int `json:"shufflesLeft"`

	// AutoPlays counts turns the clock played on this player's behalf.
	AutoPlays int `json:"autoPlays"`
}
