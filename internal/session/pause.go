// internal/session/pause.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// PauseController coordinates the freeze/resume cycle around a card
// redistribution. Exactly one client (the redistributing one) initiates the
// pause and is expected to lift it; because that client can vanish
// mid-dealing, every controller arms a bounded max-pause timer after which
// it force-resumes from the last known state rather than staying frozen
// forever.
type PauseController struct {
	clock    clockwork.Clock
	log      *logrus.Logger
	maxPause time.Duration

	// onForceResume fires when the bound elapses with the pause still held.
	onForceResume func()

	mu            sync.Mutex
	paused        bool
	initiatorID   uuid.UUID
	lastInitiator uuid.UUID
	remaining     time.Duration
	timer         clockwork.Timer
	// gen invalidates timers from earlier pauses, mirroring the stale-turn
	// guard on the turn timer.
	gen int
}

// NewPauseController builds an unfrozen controller.
func NewPauseController(clock clockwork.Clock, log *logrus.Logger, maxPause time.Duration, onForceResume func()) *PauseController {
	return &PauseController{
		clock:         clock,
		log:           log,
		maxPause:      maxPause,
		onForceResume: onForceResume,
	}
}

// Freeze records the pause, its initiator, and the captured remaining turn
// time, and arms the max-pause bound.
func (p *PauseController) Freeze(initiatorID uuid.UUID, remaining time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.initiatorID = initiatorID
	p.lastInitiator = initiatorID
	p.remaining = remaining
	p.gen++
	gen := p.gen

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.clock.AfterFunc(p.maxPause, func() {
		p.mu.Lock()
		stale := !p.paused || p.gen != gen
		p.mu.Unlock()
		if stale {
			return
		}
		p.log.Warnf("Pause by %s exceeded %s; force-resuming from last known state", initiatorID, p.maxPause)
		if p.onForceResume != nil {
			p.onForceResume()
		}
	})
}

// Lift clears the pause and returns the captured remaining time. ok is false
// when no pause was held.
func (p *PauseController) Lift() (remaining time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return 0, false
	}
	p.paused = false
	p.initiatorID = uuid.Nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	return p.remaining, true
}

// Paused reports whether a pause is held.
func (p *PauseController) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Initiator returns the client that started the current pause, or uuid.Nil.
func (p *PauseController) Initiator() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initiatorID
}

// LastInitiator returns the most recent pause initiator, surviving Lift, so
// late resume snapshots can still be attributed.
func (p *PauseController) LastInitiator() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastInitiator
}

// Stop disarms any pending max-pause timer.
func (p *PauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
