// internal/game/errors.go
package game

import "errors"

// Game-core errors. All of these are recoverable at the client boundary and
// surface as transient notifications; none should terminate the process.
var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrNoShufflesLeft = errors.New("shuffle allowance exhausted")
	ErrEmptyPile      = errors.New("central pile is empty")
	ErrEmptyHand      = errors.New("hand is empty")
	ErrGamePaused     = errors.New("game is paused")
	ErrGameNotPaused  = errors.New("game is not paused")
	ErrGameOver       = errors.New("game is over")
	ErrBadPlayerCount = errors.New("player count must be between 2 and 4")
	ErrUnknownPlayer  = errors.New("player not in session")

	// ErrCardConservation indicates the 52-card invariant broke. This is a
	// reducer bug, not a user error; tests and debug paths fail loudly on it.
	ErrCardConservation = errors.New("card conservation violated")
)
