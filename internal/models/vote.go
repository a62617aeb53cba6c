package models

import (
	"time"

	"github.com/google/uuid"
)

// VoteSession tracks one replenishment ballot. At most one vote session may
// be open per room; a second request while one is pending is refused.
type VoteSession struct {
	RequesterID uuid.UUID `json:"requester_id"`
	RoomID      uuid.UUID `json:"room_id"`

	// Order preserves ballot arrival order; Responses holds the latest vote
	// per player (a repeat vote overwrites the earlier one).
	Order     []uuid.UUID        `json:"order"`
	Responses map[uuid.UUID]bool `json:"responses"`

	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
}

// NewVoteSession opens a ballot for the given requester and window.
func NewVoteSession(roomID, requesterID uuid.UUID, opensAt time.Time, window time.Duration) *VoteSession {
	return &VoteSession{
		RequesterID: requesterID,
		RoomID:      roomID,
		Responses:   make(map[uuid.UUID]bool),
		OpensAt:     opensAt,
		ClosesAt:    opensAt.Add(window),
	}
}

// Record stores a ballot, overwriting any prior vote from the same player.
func (v *VoteSession) Record(playerID uuid.UUID, approve bool) {
	if _, seen := v.Responses[playerID]; !seen {
		v.Order = append(v.Order, playerID)
	}
	v.Responses[playerID] = approve
}

// Tally reports approvals against total responses received.
func (v *VoteSession) Tally() (approvals, total int) {
	for _, approve := range v.Responses {
		if approve {
			approvals++
		}
	}
	return approvals, len(v.Responses)
}

// Approved applies the decision rule: a majority of the responses actually
// received approves; zero responses rejects.
func (v *VoteSession) Approved() bool {
	approvals, total := v.Tally()
	if total == 0 {
		return false
	}
	return approvals*2 > total
}
