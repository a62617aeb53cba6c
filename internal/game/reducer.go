// internal/game/reducer.go
//
// Pure session transitions. Every operation takes the current snapshot plus
// the acting player and returns a fresh snapshot or a named failure; callers
// are responsible for publishing the result. Nothing in here touches clocks,
// channels, or storage.
package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mkarras/pileup/internal/models"
)

// NewSession builds and deals a shuffled deck, seats players in join order,
// and arms the turn and game deadlines.
func NewSession(roomID uuid.UUID, seats []Seat, rules Rules, r *rand.Rand, now time.Time) (*Session, error) {
	deck := ShuffleCards(BuildDeck(), r)
	hands, leftover, err := Deal(deck, len(seats))
	if err != nil {
		return nil, err
	}

	players := make([]models.Player, len(seats))
	for i, seat := range seats {
		players[i] = models.Player{
			ID:           seat.ID,
			DisplayName:  seat.DisplayName,
			Hand:         hands[i],
			IsActive:     true,
			ShufflesLeft: rules.ShuffleAllowance,
		}
	}

	s := &Session{
		RoomID:             roomID,
		Seq:                1,
		Players:            players,
		CurrentPlayerIndex: 0,
		CentralPile:        []models.Card{},
		TurnEndsAt:         now.Add(rules.TurnDuration()),
		GameEndsAt:         now.Add(rules.GameDuration()),
		DealtCount:         DeckSize - len(leftover),
	}
	return s, nil
}

// ApplyPlay removes the head card of the current player's hand and appends it
// to the pile. If its rank matches the card directly beneath it, the whole
// pile (played card included) moves to the end of the actor's hand and the
// turn stays with them; otherwise the turn advances. The turn deadline resets
// either way.
func ApplyPlay(s *Session, actorID uuid.UUID, rules Rules, now time.Time) (*Session, error) {
	return applyPlay(s, actorID, rules, now, false)
}

// ApplyAutoPlay is the forced play the turn clock synthesizes when the
// countdown hits zero. Only the client owning the current player's identity
// invokes it. The played card is the head of the hand, same as a manual play.
func ApplyAutoPlay(s *Session, actorID uuid.UUID, rules Rules, now time.Time) (*Session, error) {
	return applyPlay(s, actorID, rules, now, true)
}

func applyPlay(s *Session, actorID uuid.UUID, rules Rules, now time.Time, auto bool) (*Session, error) {
	if err := checkMutable(s, actorID); err != nil {
		return nil, err
	}

	next := s.Clone()
	actor := next.CurrentPlayer()
	if len(actor.Hand) == 0 {
		return nil, ErrEmptyHand
	}

	played := actor.Hand[0]
	actor.Hand = actor.Hand[1:]
	if auto {
		actor.AutoPlays++
	}

	pileBefore := len(next.CentralPile)
	next.CentralPile = append(next.CentralPile, played)

	matched := pileBefore >= 1 && next.CentralPile[pileBefore-1].Rank == played.Rank
	if matched {
		// The sweep includes the just-played card, appended in pile order.
		actor.Hand = append(actor.Hand, next.CentralPile...)
		next.CentralPile = next.CentralPile[:0]
	} else {
		if len(actor.Hand) == 0 {
			actor.IsActive = false
		}
		next.advanceTurn()
	}

	next.TurnEndsAt = now.Add(rules.TurnDuration())
	next.Seq++
	next.checkTerminal()
	return next, nil
}

// ApplyCollect is the explicit manual sweep: the current player takes the
// whole pile without a rank match. The turn does not advance.
func ApplyCollect(s *Session, actorID uuid.UUID) (*Session, error) {
	if err := checkMutable(s, actorID); err != nil {
		return nil, err
	}
	if len(s.CentralPile) == 0 {
		return nil, ErrEmptyPile
	}

	next := s.Clone()
	actor := next.CurrentPlayer()
	actor.Hand = append(actor.Hand, next.CentralPile...)
	next.CentralPile = next.CentralPile[:0]
	next.Seq++
	next.checkTerminal()
	return next, nil
}

// ApplyShuffle permutes the current player's own hand. It spends one unit of
// the shuffle allowance and leaves the turn and deadline untouched.
func ApplyShuffle(s *Session, actorID uuid.UUID, r *rand.Rand) (*Session, error) {
	if err := checkMutable(s, actorID); err != nil {
		return nil, err
	}

	next := s.Clone()
	actor := next.CurrentPlayer()
	if actor.ShufflesLeft <= 0 {
		return nil, ErrNoShufflesLeft
	}
	actor.ShufflesLeft--
	actor.Hand = ShuffleCards(actor.Hand, r)
	next.Seq++
	return next, nil
}

// ApplyPause freezes the session for a card redistribution, capturing the
// remaining turn time so resume can restore it.
func ApplyPause(s *Session, now time.Time) (*Session, error) {
	if s.IsGameOver {
		return nil, ErrGameOver
	}
	if s.IsPaused {
		return nil, ErrGamePaused
	}
	next := s.Clone()
	next.IsPaused = true
	next.PausedRemainingMS = s.Remaining(now).Milliseconds()
	next.Seq++
	return next, nil
}

// ApplyResume lifts a pause, rebasing the turn deadline onto the captured
// remaining time so every receiver lands on the same countdown.
func ApplyResume(s *Session, now time.Time) (*Session, error) {
	if !s.IsPaused {
		return nil, ErrGameNotPaused
	}
	next := s.Clone()
	next.IsPaused = false
	next.TurnEndsAt = now.Add(time.Duration(s.PausedRemainingMS) * time.Millisecond)
	next.PausedRemainingMS = 0
	next.Seq++
	return next, nil
}

// ApplyReplenish tops up the requester's hand after an approved vote. Cards
// are borrowed from the tails of the other active players' hands, one card
// per donor round-robin, until count cards moved or the donors run dry. No
// new cards are minted, so card conservation holds.
func ApplyReplenish(s *Session, requesterID uuid.UUID, count int) (*Session, error) {
	if s.IsGameOver {
		return nil, ErrGameOver
	}
	next := s.Clone()
	requester, seat := next.PlayerByID(requesterID)
	if requester == nil {
		return nil, ErrUnknownPlayer
	}

	granted := 0
	for granted < count {
		moved := false
		for i := range next.Players {
			if granted >= count {
				break
			}
			donor := &next.Players[i]
			// A donor keeps at least one card so they stay in the game.
			if i == seat || !donor.IsActive || len(donor.Hand) <= 1 {
				continue
			}
			last := len(donor.Hand) - 1
			requester.Hand = append(requester.Hand, donor.Hand[last])
			donor.Hand = donor.Hand[:last]
			granted++
			moved = true
		}
		if !moved {
			break
		}
	}

	if granted > 0 && !requester.IsActive {
		requester.IsActive = true
	}
	next.Seq++
	return next, nil
}

// CheckGameOver ends the session once the game deadline passes or a terminal
// condition already fired. Winner is the player with the largest hand; ties
// break to the lowest seat index. Returns the input unchanged when the game
// continues.
func CheckGameOver(s *Session, now time.Time) *Session {
	if s.IsGameOver || now.Before(s.GameEndsAt) {
		return s
	}
	next := s.Clone()
	next.finish()
	return next
}

// checkMutable guards every player-initiated transition.
func checkMutable(s *Session, actorID uuid.UUID) error {
	if s.IsGameOver {
		return ErrGameOver
	}
	if s.IsPaused {
		return ErrGamePaused
	}
	if s.CurrentPlayer().ID != actorID {
		return ErrNotYourTurn
	}
	return nil
}

// advanceTurn moves to the next active seat, wrapping around. If no other
// seat is active the turn stays put; checkTerminal decides whether that ends
// the game.
func (s *Session) advanceTurn() {
	n := len(s.Players)
	for step := 1; step <= n; step++ {
		idx := (s.CurrentPlayerIndex + step) % n
		if s.Players[idx].IsActive {
			s.CurrentPlayerIndex = idx
			return
		}
	}
}

// checkTerminal ends the game early when one player holds every dealt card.
func (s *Session) checkTerminal() {
	if s.IsGameOver {
		return
	}
	for i := range s.Players {
		if len(s.Players[i].Hand) == s.DealtCount {
			s.finish()
			return
		}
	}
}

// finish marks the session over and picks the winner.
func (s *Session) finish() {
	s.IsGameOver = true
	s.IsPaused = false
	winner := 0
	for i := range s.Players {
		if len(s.Players[i].Hand) > len(s.Players[winner].Hand) {
			winner = i
		}
	}
	s.WinnerID = s.Players[winner].ID
	s.Seq++
}
