// internal/session/errors.go
package session

import "errors"

var (
	// ErrNoSession means no snapshot has arrived or been started yet.
	ErrNoSession = errors.New("no active session")
	// ErrSessionExists refuses a second StartSession on a client that has
	// already held a snapshot; receivers would drop the restart as stale.
	ErrSessionExists = errors.New("a session already exists for this room")
	// ErrRequestAlreadyPending refuses a second replenishment request while
	// one ballot is open for the room.
	ErrRequestAlreadyPending = errors.New("a card request is already pending")
	// ErrVoteClosed means a ballot arrived with no vote open.
	ErrVoteClosed = errors.New("no vote is open")
	// ErrNotEligible rejects ballots from the requester or inactive players.
	ErrNotEligible = errors.New("not eligible to vote")
)
