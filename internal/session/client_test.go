// internal/session/client_test.go
package session

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarras/pileup/internal/channel"
	"github.com/mkarras/pileup/internal/game"
)

// clientEvents collects a test client's callback traffic.
type clientEvents struct {
	mu          sync.Mutex
	prompts     []uuid.UUID
	voteResults []bool
	gameOvers   []uuid.UUID
}

func (e *clientEvents) promptCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.prompts)
}

func (e *clientEvents) lastPrompt() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.prompts) == 0 {
		return uuid.Nil
	}
	return e.prompts[len(e.prompts)-1]
}

func (e *clientEvents) gameOverCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.gameOvers)
}

func (e *clientEvents) lastWinner() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.gameOvers) == 0 {
		return uuid.Nil
	}
	return e.gameOvers[len(e.gameOvers)-1]
}

func (e *clientEvents) lastVoteResult() (bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.voteResults) == 0 {
		return false, false
	}
	return e.voteResults[len(e.voteResults)-1], true
}

type testFixture struct {
	bus    *channel.MemoryBus
	clock  *clockwork.FakeClock
	rules  game.Rules
	roomID uuid.UUID
	seats  []game.Seat
}

func newFixture(t *testing.T, players int) *testFixture {
	t.Helper()
	f := &testFixture{
		bus:    channel.NewMemoryBus(),
		clock:  clockwork.NewFakeClock(),
		rules:  game.DefaultRules(),
		roomID: uuid.New(),
	}
	for i := 0; i < players; i++ {
		f.seats = append(f.seats, game.Seat{ID: uuid.New(), DisplayName: string(rune('a' + i))})
	}
	return f
}

func (f *testFixture) newClient(t *testing.T, seat int, seed int64) (*Client, *clientEvents) {
	t.Helper()
	ev := &clientEvents{}
	c := NewClient(Options{
		RoomID:   f.roomID,
		PlayerID: f.seats[seat].ID,
		Channel:  f.bus,
		Rules:    f.rules,
		Clock:    f.clock,
		Rand:     rand.New(rand.NewSource(seed)),
		Logger:   logrus.New(),
		OnVotePrompt: func(requesterID uuid.UUID, _ time.Time) {
			ev.mu.Lock()
			ev.prompts = append(ev.prompts, requesterID)
			ev.mu.Unlock()
		},
		OnVoteResult: func(_ uuid.UUID, approved bool) {
			ev.mu.Lock()
			ev.voteResults = append(ev.voteResults, approved)
			ev.mu.Unlock()
		},
		OnGameOver: func(snap *game.Session) {
			ev.mu.Lock()
			ev.gameOvers = append(ev.gameOvers, snap.WinnerID)
			ev.mu.Unlock()
		},
	})
	require.NoError(t, c.Join(context.Background()))
	t.Cleanup(c.Leave)
	return c, ev
}

func seqAtLeast(c *Client, seq uint64) func() bool {
	return func() bool {
		s := c.Snapshot()
		return s != nil && s.Seq >= seq
	}
}

func TestStartSessionConvergesOnAllClients(t *testing.T) {
	f := newFixture(t, 2)
	a, _ := f.newClient(t, 0, 1)
	b, _ := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)

	sa, sb := a.Snapshot(), b.Snapshot()
	require.NotNil(t, sa)
	assert.Equal(t, sa.Seq, sb.Seq)
	assert.Equal(t, 52, sa.DealtCount)
	assert.Len(t, sb.Players, 2)
	assert.Equal(t, f.seats[0].ID, sb.Players[0].ID)
	assert.Len(t, sb.Players[0].Hand, 26)
	assert.NoError(t, sb.Validate())
}

func TestPlayPropagatesAndAdvancesTurn(t *testing.T) {
	f := newFixture(t, 2)
	a, _ := f.newClient(t, 0, 1)
	b, _ := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)

	// The first play lands on an empty pile, so it can never match and the
	// turn must move to seat 1.
	require.NoError(t, a.Play(context.Background()))
	require.Eventually(t, seqAtLeast(b, 2), time.Second, 5*time.Millisecond)

	sb := b.Snapshot()
	assert.Equal(t, 1, sb.CurrentPlayerIndex)
	assert.Len(t, sb.CentralPile, 1)
	assert.Len(t, sb.Players[0].Hand, 25)

	// Now seat 1 may act and seat 0 may not.
	assert.ErrorIs(t, a.Play(context.Background()), game.ErrNotYourTurn)
	require.NoError(t, b.Play(context.Background()))
	require.Eventually(t, seqAtLeast(a, 3), time.Second, 5*time.Millisecond)
}

func TestStaleSnapshotIsDiscarded(t *testing.T) {
	f := newFixture(t, 2)
	a, _ := f.newClient(t, 0, 1)
	b, _ := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)
	require.NoError(t, a.Play(context.Background()))
	require.Eventually(t, seqAtLeast(b, 2), time.Second, 5*time.Millisecond)

	// Replay the opening snapshot; both clients must ignore it.
	stale := b.Snapshot().Clone()
	stale.Seq = 1
	require.NoError(t, f.bus.Publish(context.Background(), channel.Envelope{
		Type:    channel.EventGameState,
		RoomID:  f.roomID,
		ActorID: f.seats[0].ID,
		Seq:     stale.Seq,
		Session: stale,
	}))

	assert.Never(t, func() bool {
		return a.Snapshot().Seq != 2 || b.Snapshot().Seq != 2
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestSnapshotFromWrongActorIsDiscarded(t *testing.T) {
	f := newFixture(t, 2)
	a, _ := f.newClient(t, 0, 1)
	b, _ := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)

	// Seat 1 forges a snapshot claiming a transition while seat 0 holds the
	// turn. Receivers must refuse it regardless of its higher Seq.
	forged := b.Snapshot().Clone()
	forged.Seq = 9
	forged.CurrentPlayerIndex = 1
	require.NoError(t, f.bus.Publish(context.Background(), channel.Envelope{
		Type:    channel.EventGameState,
		RoomID:  f.roomID,
		ActorID: f.seats[1].ID,
		Seq:     forged.Seq,
		Session: forged,
	}))

	assert.Never(t, func() bool {
		return a.Snapshot().Seq != 1 || b.Snapshot().Seq != 1
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestReplenishmentVoteEndToEnd(t *testing.T) {
	f := newFixture(t, 2)
	a, evA := f.newClient(t, 0, 1)
	b, evB := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)

	// Seat 1 asks for cards; seat 0 is the only eligible voter.
	require.NoError(t, b.RequestReplenishment(context.Background()))
	require.Eventually(t, func() bool { return evA.promptCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, f.seats[1].ID, evA.lastPrompt())

	// A concurrent request from seat 0 must be refused while the vote is
	// open.
	assert.ErrorIs(t, a.RequestReplenishment(context.Background()), ErrRequestAlreadyPending)

	// The approving ballot closes the vote; the requester pauses, borrows
	// cards, and resumes in one authored chain.
	require.NoError(t, a.CastVote(context.Background(), true))

	require.Eventually(t, func() bool {
		sa, sb := a.Snapshot(), b.Snapshot()
		return sa.Seq == 4 && sb.Seq == 4 && !sa.IsPaused && !sb.IsPaused
	}, time.Second, 5*time.Millisecond)

	sa := a.Snapshot()
	assert.Len(t, sa.Players[1].Hand, 26+f.rules.ReplenishCount)
	assert.Len(t, sa.Players[0].Hand, 26-f.rules.ReplenishCount)
	assert.NoError(t, sa.Validate())

	approved, ok := evA.lastVoteResult()
	require.True(t, ok)
	assert.True(t, approved)
	approved, ok = evB.lastVoteResult()
	require.True(t, ok)
	assert.True(t, approved)
}

func TestRejectedVoteLeavesHandsAlone(t *testing.T) {
	f := newFixture(t, 2)
	a, evA := f.newClient(t, 0, 1)
	b, evB := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)

	require.NoError(t, b.RequestReplenishment(context.Background()))
	require.Eventually(t, func() bool { return evA.promptCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.CastVote(context.Background(), false))
	require.Eventually(t, func() bool {
		_, ok := evB.lastVoteResult()
		return ok
	}, time.Second, 5*time.Millisecond)

	approved, _ := evB.lastVoteResult()
	assert.False(t, approved)

	assert.Never(t, func() bool {
		sa := a.Snapshot()
		return sa.Seq != 1 || len(sa.Players[1].Hand) != 26
	}, 100*time.Millisecond, 5*time.Millisecond)

	// The vote is cleared everywhere, so a new request may open.
	require.Eventually(t, func() bool {
		return a.RequestReplenishment(context.Background()) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestAutoPlayFiresOnlyOnCurrentPlayersClient(t *testing.T) {
	f := newFixture(t, 2)
	a, _ := f.newClient(t, 0, 1)
	b, _ := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)

	// Both turn clocks are waiting on the fake clock before the advance.
	f.clock.BlockUntil(2)
	f.clock.Advance(f.rules.TurnDuration())

	require.Eventually(t, func() bool {
		sa, sb := a.Snapshot(), b.Snapshot()
		return sa.Seq == 2 && sb.Seq == 2
	}, time.Second, 5*time.Millisecond)

	sb := b.Snapshot()
	assert.Equal(t, 1, sb.Players[0].AutoPlays, "the expired turn was auto-played")
	assert.Zero(t, sb.Players[1].AutoPlays)
	assert.Equal(t, 1, sb.CurrentPlayerIndex)
	assert.Len(t, sb.CentralPile, 1)
}

func TestGameDeadlineEndsEveryClientLocally(t *testing.T) {
	f := newFixture(t, 2)
	f.rules.GameSeconds = 5
	a, _ := f.newClient(t, 0, 1)
	b, _ := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)

	f.clock.BlockUntil(2)
	f.clock.Advance(f.rules.TurnDuration())

	require.Eventually(t, func() bool {
		sa, sb := a.Snapshot(), b.Snapshot()
		return sa.IsGameOver && sb.IsGameOver
	}, time.Second, 5*time.Millisecond)

	// Equal hands tie-break to the lowest seat, on both clients, with no
	// extra broadcast.
	assert.Equal(t, f.seats[0].ID, a.Snapshot().WinnerID)
	assert.Equal(t, f.seats[0].ID, b.Snapshot().WinnerID)
}

func TestActivePlayStopsAtGameDeadline(t *testing.T) {
	f := newFixture(t, 2)
	f.rules.GameSeconds = 15
	a, _ := f.newClient(t, 0, 1)
	b, _ := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)
	f.clock.BlockUntil(2)

	// Whoever holds the turn acts well before the 10s turn deadline, so no
	// turn ever expires; the game deadline alone must stop the session.
	playCurrent := func(seq uint64) {
		t.Helper()
		cl := a
		if a.Snapshot().CurrentPlayer().ID == f.seats[1].ID {
			cl = b
		}
		require.NoError(t, cl.Play(context.Background()))
		require.Eventually(t, seqAtLeast(a, seq), time.Second, 5*time.Millisecond)
		require.Eventually(t, seqAtLeast(b, seq), time.Second, 5*time.Millisecond)
	}

	f.clock.Advance(5 * time.Second)
	playCurrent(2)
	f.clock.Advance(5 * time.Second)
	playCurrent(3)

	// Both turn deadlines now sit at t=20s, but GameEndsAt is t=15s.
	f.clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool {
		sa, sb := a.Snapshot(), b.Snapshot()
		return sa.IsGameOver && sb.IsGameOver
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, a.Play(context.Background()), game.ErrGameOver)
	assert.ErrorIs(t, b.Play(context.Background()), game.ErrGameOver)
}

func TestGameOverCallbackFiresOncePerClient(t *testing.T) {
	f := newFixture(t, 2)
	f.rules.GameSeconds = 5
	a, evA := f.newClient(t, 0, 1)
	b, evB := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)

	f.clock.BlockUntil(2)
	f.clock.Advance(f.rules.TurnDuration())

	require.Eventually(t, func() bool {
		return evA.gameOverCount() == 1 && evB.gameOverCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, f.seats[0].ID, evA.lastWinner())
	assert.Equal(t, f.seats[0].ID, evB.lastWinner())

	// Later ticks must not refire the callback.
	f.clock.Advance(3 * time.Second)
	assert.Never(t, func() bool {
		return evA.gameOverCount() != 1 || evB.gameOverCount() != 1
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestStartSessionRefusedWhileSessionExists(t *testing.T) {
	f := newFixture(t, 2)
	f.rules.GameSeconds = 5
	a, _ := f.newClient(t, 0, 1)
	b, _ := f.newClient(t, 1, 2)

	require.NoError(t, a.StartSession(context.Background(), f.seats))
	require.Eventually(t, seqAtLeast(b, 1), time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, a.StartSession(context.Background(), f.seats), ErrSessionExists)
	assert.ErrorIs(t, b.StartSession(context.Background(), f.seats), ErrSessionExists)

	// A finished game does not reopen the seat either: a restarted
	// session's Seq of 1 would be discarded as stale by every receiver.
	f.clock.BlockUntil(2)
	f.clock.Advance(f.rules.TurnDuration())
	require.Eventually(t, func() bool { return a.Snapshot().IsGameOver }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, a.StartSession(context.Background(), f.seats), ErrSessionExists)
}
