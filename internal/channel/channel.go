// internal/channel/channel.go
//
// RoomChannel is the broadcast transport: one topic per room carrying session
// snapshots and control signals to every participant, including the sender.
// The channel provides no ordering across distinct senders; convergence rests
// on the single-writer-per-transition convention plus the Seq/actor checks
// receivers apply before accepting a snapshot.
package channel

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkarras/pileup/internal/game"
)

// EventType enumerates the broadcast taxonomy.
type EventType string

const (
	// EventGameState is a full snapshot replacement.
	EventGameState EventType = "game_state"
	// EventGamePaused freezes clocks and input on every receiver.
	EventGamePaused EventType = "game_paused"
	// EventGameResumed lifts a pause and carries the post-redeal snapshot.
	EventGameResumed EventType = "game_resumed"
	// EventRequestCards opens a replenishment ballot.
	EventRequestCards EventType = "request_cards"
	// EventSubmitCardVote is one ballot; the requester's client tallies.
	EventSubmitCardVote EventType = "submit_card_vote"
	// EventCardVoteResult announces the decision and dismisses prompts.
	EventCardVoteResult EventType = "card_vote_result"
)

// VotePayload carries ballot data for the vote event types.
type VotePayload struct {
	PlayerID uuid.UUID `json:"playerId"`
	Vote     bool      `json:"vote"`
	Approved bool      `json:"approved,omitempty"`
}

// Envelope is the JSON frame published on a room topic. ActorID always names
// the sender's claimed role in the transition; Seq mirrors the embedded
// snapshot's sequence for the session-bearing types.
type Envelope struct {
	Type    EventType     `json:"type"`
	RoomID  uuid.UUID     `json:"roomId"`
	ActorID uuid.UUID     `json:"actorId"`
	Seq     uint64        `json:"seq,omitempty"`
	Session *game.Session `json:"session,omitempty"`
	Vote    *VotePayload  `json:"vote,omitempty"`
}

// Subscription is one participant's feed of a room topic.
type Subscription interface {
	// Events yields envelopes until Leave is called or the transport drops.
	// The channel closes on teardown.
	Events() <-chan Envelope
	// Leave unsubscribes and releases the feed. Safe to call once.
	Leave() error
}

// RoomChannel joins room topics and publishes envelopes to them.
type RoomChannel interface {
	Join(ctx context.Context, roomID uuid.UUID) (Subscription, error)
	Publish(ctx context.Context, env Envelope) error
}
