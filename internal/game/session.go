// internal/game/session.go
package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkarras/pileup/internal/models"
)

// Session is the shared snapshot for one room's active game. There is no
// central authority: each client holds its own copy, mutates it through the
// pure reducer functions in this package, and re-broadcasts the result.
// Receivers replace their copy wholesale, guarded by Seq and the expected
// actor for the transition.
type Session struct {
	RoomID uuid.UUID `json:"roomId"`

	// Seq increases by one on every reducer transition. Receivers discard
	// snapshots whose Seq is not greater than their current one.
	Seq uint64 `json:"seq"`

	// Players in seat order; seat order is turn order.
	Players []models.Player `json:"players"`

	CurrentPlayerIndex int `json:"currentPlayerIndex"`

	// CentralPile is the shared pile, most recent card last.
	CentralPile []models.Card `json:"centralPile"`

	// TurnEndsAt is the absolute deadline every client derives its countdown
	// from. There is no per-client clock state to reconcile.
	TurnEndsAt time.Time `json:"turnEndsAt"`

	IsPaused bool `json:"isPaused"`

	// PausedRemainingMS is the turn time captured when the pause began,
	// restored onto TurnEndsAt at resume.
	PausedRemainingMS int64 `json:"pausedRemainingMs,omitempty"`

	IsGameOver bool      `json:"isGameOver"`
	WinnerID   uuid.UUID `json:"winnerId,omitempty"`
	GameEndsAt time.Time `json:"gameEndsAt"`

	// DealtCount is how many of the 52 cards entered play at the deal;
	// the remainder was set aside and never returns.
	DealtCount int `json:"dealtCount"`
}

// Seat pairs a player identity with a display name for session creation.
type Seat struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
}

// Clone deep-copies the session so reducer transitions stay pure.
func (s *Session) Clone() *Session {
	out := *s
	out.Players = make([]models.Player, len(s.Players))
	for i, p := range s.Players {
		cp := p
		cp.Hand = make([]models.Card, len(p.Hand))
		copy(cp.Hand, p.Hand)
		out.Players[i] = cp
	}
	out.CentralPile = make([]models.Card, len(s.CentralPile))
	copy(out.CentralPile, s.CentralPile)
	return &out
}

// CurrentPlayer returns the player whose turn it is.
func (s *Session) CurrentPlayer() *models.Player {
	return &s.Players[s.CurrentPlayerIndex]
}

// PlayerByID returns the player and seat index for id, or nil and -1.
func (s *Session) PlayerByID(id uuid.UUID) (*models.Player, int) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i], i
		}
	}
	return nil, -1
}

// Remaining derives the current turn countdown from the shared deadline.
// Every observer, however late it joined, computes the same value.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.IsPaused {
		return time.Duration(s.PausedRemainingMS) * time.Millisecond
	}
	r := s.TurnEndsAt.Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

// Validate checks the structural invariants: seat index bounds and card
// conservation (every dealt card is in exactly one hand or the pile).
func (s *Session) Validate() error {
	if len(s.Players) < MinPlayers || len(s.Players) > MaxPlayers {
		return ErrBadPlayerCount
	}
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return ErrUnknownPlayer
	}
	total := len(s.CentralPile)
	seen := make(map[string]bool, s.DealtCount)
	for _, c := range s.CentralPile {
		if seen[c.ID] {
			return ErrCardConservation
		}
		seen[c.ID] = true
	}
	for _, p := range s.Players {
		total += len(p.Hand)
		for _, c := range p.Hand {
			if seen[c.ID] {
				return ErrCardConservation
			}
			seen[c.ID] = true
		}
	}
	if total != s.DealtCount {
		return ErrCardConservation
	}
	return nil
}
