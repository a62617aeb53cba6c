// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/mkarras/pileup/internal/models"
)

// DeckSize is the number of cards in play per session.
const DeckSize = 52

var (
	suits = []string{"H", "D", "C", "S"}
	ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K"}
)

// BuildDeck returns all 52 rank/suit combinations. Order is unspecified;
// callers shuffle before dealing.
func BuildDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, models.NewCard(rank, suit))
		}
	}
	return deck
}

// ShuffleCards returns a uniformly random permutation of cards. rand.Shuffle
// is a Fisher-Yates; comparator-based "random sort" is biased and is not
// acceptable here.
func ShuffleCards(cards []models.Card, r *rand.Rand) []models.Card {
	out := make([]models.Card, len(cards))
	copy(out, cards)
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Deal splits a shuffled deck into playerCount hands of floor(52/playerCount)
// cards each, in seat order. Leftover cards (52 mod playerCount) are set
// aside and never dealt or reused.
func Deal(deck []models.Card, playerCount int) (hands [][]models.Card, leftover []models.Card, err error) {
	if playerCount < MinPlayers || playerCount > MaxPlayers {
		return nil, nil, ErrBadPlayerCount
	}
	size := len(deck) / playerCount
	hands = make([][]models.Card, playerCount)
	for i := 0; i < playerCount; i++ {
		hand := make([]models.Card, size)
		copy(hand, deck[i*size:(i+1)*size])
		hands[i] = hand
	}
	leftover = make([]models.Card, len(deck)-size*playerCount)
	copy(leftover, deck[size*playerCount:])
	return hands, leftover, nil
}
