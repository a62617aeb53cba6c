// internal/session/vote.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/mkarras/pileup/internal/models"
)

// VoteCoordinator runs the "approve new cards" ballot. The requester's client
// is the single tallier: it opens the vote, records incoming ballots, and
// decides at the earlier of all-eligible-responded or window expiry. Every
// other client only tracks that a vote is open (so it can refuse concurrent
// requests) and prompts its player.
type VoteCoordinator struct {
	clock  clockwork.Clock
	log    *logrus.Logger
	window time.Duration

	// onDecision fires exactly once per vote, only on the tallying client.
	onDecision func(requesterID uuid.UUID, approved bool)

	mu       sync.Mutex
	cur      *models.VoteSession
	eligible map[uuid.UUID]bool
	tallying bool
	timer    clockwork.Timer
	gen      int
}

// NewVoteCoordinator builds an idle coordinator.
func NewVoteCoordinator(clock clockwork.Clock, log *logrus.Logger, window time.Duration, onDecision func(uuid.UUID, bool)) *VoteCoordinator {
	return &VoteCoordinator{
		clock:      clock,
		log:        log,
		window:     window,
		onDecision: onDecision,
	}
}

// Open starts a ballot with this client as tallier. Only one vote may be
// open per room at a time.
func (v *VoteCoordinator) Open(roomID, requesterID uuid.UUID, eligible []uuid.UUID) (*models.VoteSession, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cur != nil {
		return nil, ErrRequestAlreadyPending
	}

	v.cur = models.NewVoteSession(roomID, requesterID, v.clock.Now(), v.window)
	v.eligible = make(map[uuid.UUID]bool, len(eligible))
	for _, id := range eligible {
		v.eligible[id] = true
	}
	v.tallying = true
	v.gen++
	gen := v.gen

	v.timer = v.clock.AfterFunc(v.window, func() {
		v.mu.Lock()
		if v.cur == nil || v.gen != gen {
			v.mu.Unlock()
			return
		}
		requester, approved := v.cur.RequesterID, v.cur.Approved()
		v.clearLocked()
		v.mu.Unlock()
		v.log.Infof("Vote window for %s closed: approved=%v", requester, approved)
		if v.onDecision != nil {
			v.onDecision(requester, approved)
		}
	})
	return v.cur, nil
}

// ObserveOpen marks a remotely-opened vote so this client refuses concurrent
// requests and can dismiss the prompt on result.
func (v *VoteCoordinator) ObserveOpen(roomID, requesterID uuid.UUID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cur != nil {
		return ErrRequestAlreadyPending
	}
	v.cur = models.NewVoteSession(roomID, requesterID, v.clock.Now(), v.window)
	v.tallying = false
	return nil
}

// Record stores one ballot on the tallying client. A repeat ballot from the
// same player overwrites the earlier one. Deciding early when every eligible
// voter has responded.
func (v *VoteCoordinator) Record(voterID uuid.UUID, approve bool) error {
	v.mu.Lock()
	if v.cur == nil || !v.tallying {
		v.mu.Unlock()
		return ErrVoteClosed
	}
	if !v.eligible[voterID] {
		v.mu.Unlock()
		return ErrNotEligible
	}
	v.cur.Record(voterID, approve)

	if len(v.cur.Responses) < len(v.eligible) {
		v.mu.Unlock()
		return nil
	}
	requester, approved := v.cur.RequesterID, v.cur.Approved()
	v.clearLocked()
	v.mu.Unlock()

	v.log.Infof("All voters responded for %s: approved=%v", requester, approved)
	if v.onDecision != nil {
		v.onDecision(requester, approved)
	}
	return nil
}

// Clear discards the tracked vote, e.g. when the result envelope arrives on
// a non-tallying client.
func (v *VoteCoordinator) Clear() {
	v.mu.Lock()
	v.clearLocked()
	v.mu.Unlock()
}

// Pending reports whether a vote is open for the room.
func (v *VoteCoordinator) Pending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur != nil
}

// Requester returns the open vote's requester, or uuid.Nil.
func (v *VoteCoordinator) Requester() uuid.UUID {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cur == nil {
		return uuid.Nil
	}
	return v.cur.RequesterID
}

// Stop disarms any pending window timer.
func (v *VoteCoordinator) Stop() {
	v.mu.Lock()
	v.clearLocked()
	v.mu.Unlock()
}

func (v *VoteCoordinator) clearLocked() {
	v.cur = nil
	v.eligible = nil
	v.tallying = false
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.gen++
}
