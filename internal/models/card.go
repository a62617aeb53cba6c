package models

// Card is one of the 52 rank/suit combinations dealt for a session.
// ID is derived from rank+suit (e.g. "KH", "7S"); exactly one card per
// combination exists in a session, so IDs never collide.
type Card struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
	ID   string `json:"id"`
}

// NewCard builds a card with its derived ID.
func NewCard(rank, suit string) Card {
	return Card{Rank: rank, Suit: suit, ID: rank + suit}
}
