// internal/game/reducer_test.go
package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarras/pileup/internal/models"
)

var testBase = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// makeSession builds a session with fixed hands so tests control the ranks
// exactly. DealtCount is the total of the supplied hands.
func makeSession(t *testing.T, hands ...[]models.Card) *Session {
	t.Helper()
	require.GreaterOrEqual(t, len(hands), MinPlayers)

	rules := DefaultRules()
	total := 0
	players := make([]models.Player, len(hands))
	for i, h := range hands {
		hand := make([]models.Card, len(h))
		copy(hand, h)
		players[i] = models.Player{
			ID:           uuid.New(),
			DisplayName:  string(rune('A' + i)),
			Hand:         hand,
			IsActive:     true,
			ShufflesLeft: rules.ShuffleAllowance,
		}
		total += len(h)
	}

	return &Session{
		RoomID:      uuid.New(),
		Seq:         1,
		Players:     players,
		CentralPile: []models.Card{},
		TurnEndsAt:  testBase.Add(rules.TurnDuration()),
		GameEndsAt:  testBase.Add(rules.GameDuration()),
		DealtCount:  total,
	}
}

func cards(ids ...string) []models.Card {
	out := make([]models.Card, len(ids))
	for i, id := range ids {
		out[i] = models.NewCard(id[:1], id[1:])
	}
	return out
}

func TestNewSessionDealsEvenly(t *testing.T) {
	seats := []Seat{
		{ID: uuid.New(), DisplayName: "a"},
		{ID: uuid.New(), DisplayName: "b"},
		{ID: uuid.New(), DisplayName: "c"},
	}
	r := rand.New(rand.NewSource(1))

	s, err := NewSession(uuid.New(), seats, DefaultRules(), r, testBase)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), s.Seq)
	assert.Equal(t, 0, s.CurrentPlayerIndex)
	assert.Equal(t, 51, s.DealtCount, "three players get 17 cards each, one set aside")
	for i, p := range s.Players {
		assert.Len(t, p.Hand, 17, "player %d", i)
		assert.True(t, p.IsActive)
		assert.Equal(t, DefaultRules().ShuffleAllowance, p.ShufflesLeft)
	}
	assert.Empty(t, s.CentralPile)
	assert.NoError(t, s.Validate())
	assert.Equal(t, testBase.Add(DefaultRules().TurnDuration()), s.TurnEndsAt)
}

func TestNewSessionRejectsBadSeatCount(t *testing.T) {
	seats := []Seat{{ID: uuid.New()}}
	_, err := NewSession(uuid.New(), seats, DefaultRules(), rand.New(rand.NewSource(1)), testBase)
	assert.ErrorIs(t, err, ErrBadPlayerCount)
}

func TestPlayWithoutMatchAdvancesTurn(t *testing.T) {
	s := makeSession(t,
		cards("2H", "5D"),
		cards("9C", "KS"),
	)
	now := testBase.Add(2 * time.Second)

	next, err := ApplyPlay(s, s.Players[0].ID, DefaultRules(), now)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), next.Seq)
	assert.Equal(t, 1, next.CurrentPlayerIndex)
	assert.Equal(t, cards("2H"), next.CentralPile)
	assert.Equal(t, cards("5D"), next.Players[0].Hand)
	assert.Equal(t, now.Add(DefaultRules().TurnDuration()), next.TurnEndsAt)
	assert.NoError(t, next.Validate())

	// The input snapshot is untouched.
	assert.Equal(t, uint64(1), s.Seq)
	assert.Len(t, s.Players[0].Hand, 2)
}

func TestPlayWithMatchSweepsPileAndKeepsTurn(t *testing.T) {
	s := makeSession(t,
		cards("7H", "2D"),
		cards("9C", "KS"),
	)
	s.CentralPile = cards("4S", "7C")
	s.DealtCount += 2

	next, err := ApplyPlay(s, s.Players[0].ID, DefaultRules(), testBase)
	require.NoError(t, err)

	assert.Empty(t, next.CentralPile)
	// Sweep appends the pile in order, played card last.
	assert.Equal(t, cards("2D", "4S", "7C", "7H"), next.Players[0].Hand)
	assert.Equal(t, 0, next.CurrentPlayerIndex, "match keeps the turn")
	assert.NoError(t, next.Validate())
}

func TestPlayOutOfTurn(t *testing.T) {
	s := makeSession(t, cards("2H"), cards("9C"))
	_, err := ApplyPlay(s, s.Players[1].ID, DefaultRules(), testBase)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestPlayUnknownActor(t *testing.T) {
	s := makeSession(t, cards("2H"), cards("9C"))
	_, err := ApplyPlay(s, uuid.New(), DefaultRules(), testBase)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestLastCardWithoutMatchDeactivatesPlayer(t *testing.T) {
	s := makeSession(t, cards("2H"), cards("9C", "KS"))

	next, err := ApplyPlay(s, s.Players[0].ID, DefaultRules(), testBase)
	require.NoError(t, err)

	assert.False(t, next.Players[0].IsActive)
	assert.Empty(t, next.Players[0].Hand)
	assert.Equal(t, 1, next.CurrentPlayerIndex)

	// The turn must skip the emptied seat from now on.
	next2, err := ApplyPlay(next, next.Players[1].ID, DefaultRules(), testBase)
	require.NoError(t, err)
	assert.Equal(t, 1, next2.CurrentPlayerIndex, "inactive seat is skipped")
}

func TestAutoPlayCountsAndMatchesLikeManualPlay(t *testing.T) {
	s := makeSession(t, cards("7H", "2D"), cards("9C", "KS"))
	s.CentralPile = cards("7C")
	s.DealtCount++

	next, err := ApplyAutoPlay(s, s.Players[0].ID, DefaultRules(), testBase)
	require.NoError(t, err)

	assert.Equal(t, 1, next.Players[0].AutoPlays)
	assert.Empty(t, next.CentralPile, "auto-play still triggers the sweep")
	assert.Equal(t, 0, next.CurrentPlayerIndex)
}

func TestCollectTakesPileWithoutAdvancing(t *testing.T) {
	s := makeSession(t, cards("2H"), cards("9C", "KS"))
	s.CentralPile = cards("4S", "7C")
	s.DealtCount += 2

	next, err := ApplyCollect(s, s.Players[0].ID)
	require.NoError(t, err)

	assert.Empty(t, next.CentralPile)
	assert.Equal(t, cards("2H", "4S", "7C"), next.Players[0].Hand)
	assert.Equal(t, 0, next.CurrentPlayerIndex)
	assert.NoError(t, next.Validate())
}

func TestCollectEmptyPile(t *testing.T) {
	s := makeSession(t, cards("2H"), cards("9C"))
	_, err := ApplyCollect(s, s.Players[0].ID)
	assert.ErrorIs(t, err, ErrEmptyPile)
}

func TestShuffleSpendsAllowance(t *testing.T) {
	s := makeSession(t,
		cards("2H", "5D", "9C", "KS", "AH"),
		cards("3H", "4H"),
	)
	r := rand.New(rand.NewSource(3))

	next, err := ApplyShuffle(s, s.Players[0].ID, r)
	require.NoError(t, err)
	assert.Equal(t, s.Players[0].ShufflesLeft-1, next.Players[0].ShufflesLeft)
	assert.Equal(t, s.TurnEndsAt, next.TurnEndsAt, "shuffle does not reset the clock")
	assert.NoError(t, next.Validate())

	next.Players[0].ShufflesLeft = 0
	_, err = ApplyShuffle(next, next.Players[0].ID, r)
	assert.ErrorIs(t, err, ErrNoShufflesLeft)
}

func TestPauseBlocksMutationsAndResumeRestoresDeadline(t *testing.T) {
	s := makeSession(t, cards("2H"), cards("9C"))
	pauseAt := s.TurnEndsAt.Add(-4 * time.Second)

	paused, err := ApplyPause(s, pauseAt)
	require.NoError(t, err)
	assert.True(t, paused.IsPaused)
	assert.Equal(t, int64(4000), paused.PausedRemainingMS)
	assert.Equal(t, 4*time.Second, paused.Remaining(pauseAt.Add(time.Hour)), "remaining is frozen while paused")

	_, err = ApplyPlay(paused, paused.Players[0].ID, DefaultRules(), pauseAt)
	assert.ErrorIs(t, err, ErrGamePaused)
	_, err = ApplyPause(paused, pauseAt)
	assert.ErrorIs(t, err, ErrGamePaused)

	resumeAt := pauseAt.Add(9 * time.Second)
	resumed, err := ApplyResume(paused, resumeAt)
	require.NoError(t, err)
	assert.False(t, resumed.IsPaused)
	assert.Equal(t, resumeAt.Add(4*time.Second), resumed.TurnEndsAt)
	assert.Zero(t, resumed.PausedRemainingMS)

	_, err = ApplyResume(s, resumeAt)
	assert.ErrorIs(t, err, ErrGameNotPaused)
}

func TestReplenishBorrowsRoundRobinFromTails(t *testing.T) {
	s := makeSession(t,
		cards("2H"),
		cards("3H", "4H", "5H", "6H", "7H"),
		cards("8H", "9H"),
	)

	next, err := ApplyReplenish(s, s.Players[0].ID, 4)
	require.NoError(t, err)

	// Round-robin from donor tails: 7H, 9H, then 6H, then donor 2 is down
	// to one card and is skipped, so 5H.
	assert.Equal(t, cards("2H", "7H", "9H", "6H", "5H"), next.Players[0].Hand)
	assert.Equal(t, cards("3H", "4H"), next.Players[1].Hand)
	assert.Equal(t, cards("8H"), next.Players[2].Hand, "donors keep at least one card")
	assert.NoError(t, next.Validate())
}

func TestReplenishReactivatesEmptyHandedRequester(t *testing.T) {
	s := makeSession(t,
		cards("2H"),
		cards("3H", "4H", "5H"),
	)
	s.Players[0].Hand = nil
	s.Players[0].IsActive = false
	s.DealtCount = 3

	next, err := ApplyReplenish(s, s.Players[0].ID, 2)
	require.NoError(t, err)
	assert.True(t, next.Players[0].IsActive)
	assert.Len(t, next.Players[0].Hand, 2)
	assert.NoError(t, next.Validate())
}

func TestReplenishUnknownRequester(t *testing.T) {
	s := makeSession(t, cards("2H"), cards("3H"))
	_, err := ApplyReplenish(s, uuid.New(), 2)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestTerminalWhenOnePlayerHoldsEveryDealtCard(t *testing.T) {
	// Four cards in play: three held, one on the pile, none with seat 1.
	s := makeSession(t, cards("2H", "9C", "KS"), cards("4H"))
	s.CentralPile = cards("KH")
	s.Players[1].Hand = nil
	s.Players[1].IsActive = false

	// Collecting the last outstanding card puts the whole deal in one hand.
	next, err := ApplyCollect(s, s.Players[0].ID)
	require.NoError(t, err)
	assert.True(t, next.IsGameOver)
	assert.Equal(t, s.Players[0].ID, next.WinnerID)

	_, err = ApplyPlay(next, next.Players[0].ID, DefaultRules(), testBase)
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestCheckGameOverDeadline(t *testing.T) {
	s := makeSession(t,
		cards("2H", "5D", "9C"),
		cards("KS"),
	)

	before := CheckGameOver(s, s.GameEndsAt.Add(-time.Second))
	assert.Same(t, s, before, "game continues before the deadline")

	after := CheckGameOver(s, s.GameEndsAt)
	require.True(t, after.IsGameOver)
	assert.Equal(t, s.Players[0].ID, after.WinnerID, "largest hand wins")
	assert.Greater(t, after.Seq, s.Seq)
}

func TestCheckGameOverTieBreaksToLowestSeat(t *testing.T) {
	s := makeSession(t,
		cards("2H", "5D"),
		cards("KS", "9C"),
	)
	ended := CheckGameOver(s, s.GameEndsAt)
	require.True(t, ended.IsGameOver)
	assert.Equal(t, s.Players[0].ID, ended.WinnerID)
}

func TestTwoPlayerGameToTerminal(t *testing.T) {
	// A long run on a real shuffled deck, driven by head plays and manual
	// collects. Every transition must keep the snapshot valid and the
	// sequence monotone, and the game deadline must settle a winner even
	// when head play alone never terminates.
	seats := []Seat{
		{ID: uuid.New(), DisplayName: "a"},
		{ID: uuid.New(), DisplayName: "b"},
	}
	r := rand.New(rand.NewSource(99))
	rules := DefaultRules()

	s, err := NewSession(uuid.New(), seats, rules, r, testBase)
	require.NoError(t, err)
	require.Equal(t, 52, s.DealtCount)

	now := testBase
	for steps := 0; !s.IsGameOver && steps < 500; steps++ {
		now = now.Add(100 * time.Millisecond)
		cur := s.CurrentPlayer()

		var next *Session
		if len(cur.Hand) == 0 && len(s.CentralPile) > 0 {
			next, err = ApplyCollect(s, cur.ID)
		} else {
			next, err = ApplyPlay(s, cur.ID, rules, now)
		}
		require.NoError(t, err)
		require.NoError(t, next.Validate(), "conservation must hold after every transition")
		require.Greater(t, next.Seq, s.Seq)
		s = next
	}

	if !s.IsGameOver {
		s = CheckGameOver(s, s.GameEndsAt)
	}
	require.True(t, s.IsGameOver)
	winner, _ := s.PlayerByID(s.WinnerID)
	require.NotNil(t, winner)
	assert.NoError(t, s.Validate())
}
