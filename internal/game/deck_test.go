// internal/game/deck_test.go
package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDeckComplete(t *testing.T) {
	deck := BuildDeck()
	require.Len(t, deck, DeckSize)

	ids := make(map[string]bool, DeckSize)
	bySuit := make(map[string]int)
	for _, c := range deck {
		assert.False(t, ids[c.ID], "duplicate card %s", c.ID)
		ids[c.ID] = true
		bySuit[c.Suit]++
	}
	for _, suit := range []string{"H", "D", "C", "S"} {
		assert.Equal(t, 13, bySuit[suit], "suit %s", suit)
	}
}

func TestShuffleCardsPreservesMultiset(t *testing.T) {
	deck := BuildDeck()
	r := rand.New(rand.NewSource(7))

	shuffled := ShuffleCards(deck, r)
	require.Len(t, shuffled, len(deck))

	// Input slice must be untouched.
	assert.Equal(t, BuildDeck(), deck)

	ids := make(map[string]bool, len(shuffled))
	for _, c := range shuffled {
		ids[c.ID] = true
	}
	for _, c := range deck {
		assert.True(t, ids[c.ID], "card %s lost in shuffle", c.ID)
	}
}

func TestShuffleCardsDeterministicPerSeed(t *testing.T) {
	deck := BuildDeck()
	a := ShuffleCards(deck, rand.New(rand.NewSource(42)))
	b := ShuffleCards(deck, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
}

func TestDealSizes(t *testing.T) {
	deck := BuildDeck()

	cases := []struct {
		players  int
		handSize int
		leftover int
	}{
		{2, 26, 0},
		{3, 17, 1},
		{4, 13, 0},
	}
	for _, tc := range cases {
		hands, leftover, err := Deal(deck, tc.players)
		require.NoError(t, err, "%d players", tc.players)
		require.Len(t, hands, tc.players)
		for i, h := range hands {
			assert.Len(t, h, tc.handSize, "hand %d for %d players", i, tc.players)
		}
		assert.Len(t, leftover, tc.leftover, "%d players", tc.players)
	}
}

func TestDealContiguousBlocks(t *testing.T) {
	deck := BuildDeck()
	hands, _, err := Deal(deck, 2)
	require.NoError(t, err)

	assert.Equal(t, deck[:26], hands[0])
	assert.Equal(t, deck[26:52], hands[1])
}

func TestDealRejectsBadPlayerCounts(t *testing.T) {
	deck := BuildDeck()
	for _, n := range []int{0, 1, 5} {
		_, _, err := Deal(deck, n)
		assert.ErrorIs(t, err, ErrBadPlayerCount, "%d players", n)
	}
}
