// internal/game/rules.go
package game

import (
	"os"
	"strconv"
	"time"
)

// Player count bounds for a room.
const (
	MinPlayers = 2
	MaxPlayers = 4
)

// Rules captures the per-room game configuration. Values come from the
// environment at startup; every knob has a default matching standard play.
type Rules struct {
	TurnSeconds      int `json:"turnSeconds"`      // per-turn countdown; default 10
	GameSeconds      int `json:"gameSeconds"`      // overall game duration; default 120
	ShuffleAllowance int `json:"shuffleAllowance"` // hand reshuffles per player; default 3
	VoteWindowSec    int `json:"voteWindowSec"`    // replenishment ballot window; default 5
	MaxPauseSec      int `json:"maxPauseSec"`      // bound on a dealing pause before force-resume; default 15
	ReplenishCount   int `json:"replenishCount"`   // cards granted on an approved request; default 4
}

// DefaultRules returns the standard configuration.
func DefaultRules() Rules {
	return Rules{
		TurnSeconds:      10,
		GameSeconds:      120,
		ShuffleAllowance: 3,
		VoteWindowSec:    5,
		MaxPauseSec:      15,
		ReplenishCount:   4,
	}
}

// RulesFromEnv reads overrides from PILEUP_* environment variables, falling
// back to defaults for anything unset or unparsable.
func RulesFromEnv() Rules {
	r := DefaultRules()
	r.TurnSeconds = getEnvInt("PILEUP_TURN_SEC", r.TurnSeconds)
	r.GameSeconds = getEnvInt("PILEUP_GAME_SEC", r.GameSeconds)
	r.ShuffleAllowance = getEnvInt("PILEUP_SHUFFLE_ALLOWANCE", r.ShuffleAllowance)
	r.VoteWindowSec = getEnvInt("PILEUP_VOTE_WINDOW_SEC", r.VoteWindowSec)
	r.MaxPauseSec = getEnvInt("PILEUP_MAX_PAUSE_SEC", r.MaxPauseSec)
	r.ReplenishCount = getEnvInt("PILEUP_REPLENISH_COUNT", r.ReplenishCount)
	return r
}

// TurnDuration returns the per-turn countdown as a duration.
func (r Rules) TurnDuration() time.Duration {
	return time.Duration(r.TurnSeconds) * time.Second
}

// GameDuration returns the overall game duration.
func (r Rules) GameDuration() time.Duration {
	return time.Duration(r.GameSeconds) * time.Second
}

// VoteWindow returns the ballot window duration.
func (r Rules) VoteWindow() time.Duration {
	return time.Duration(r.VoteWindowSec) * time.Second
}

// MaxPause returns the bound on a dealing pause.
func (r Rules) MaxPause() time.Duration {
	return time.Duration(r.MaxPauseSec) * time.Second
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
