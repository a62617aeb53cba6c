// internal/session/clock.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// TurnClock drives the once-per-second countdown for the local client. It
// holds no authoritative state of its own: each tick recomputes the remaining
// time from the shared snapshot's absolute deadline, so every observer lands
// on the same value regardless of when it joined.
type TurnClock struct {
	clock clockwork.Clock
	log   *logrus.Logger

	onTick   func(remaining time.Duration)
	onExpire func()

	mu       sync.Mutex
	deadline time.Time
	paused   bool
	// fired guards against re-firing the expiry for the same deadline when
	// further ticks observe zero remaining.
	fired bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewTurnClock builds a stopped clock. onTick and onExpire may be nil.
func NewTurnClock(clock clockwork.Clock, log *logrus.Logger, onTick func(time.Duration), onExpire func()) *TurnClock {
	return &TurnClock{
		clock:    clock,
		log:      log,
		onTick:   onTick,
		onExpire: onExpire,
		stop:     make(chan struct{}),
	}
}

// Start launches the tick loop. It runs until Stop or ctx cancellation.
func (t *TurnClock) Start(ctx context.Context) {
	go func() {
		ticker := t.clock.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case <-ticker.Chan():
				t.tick()
			}
		}
	}()
}

func (t *TurnClock) tick() {
	t.mu.Lock()
	if t.paused || t.deadline.IsZero() {
		t.mu.Unlock()
		return
	}
	remaining := t.deadline.Sub(t.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	expire := remaining == 0 && !t.fired
	if expire {
		t.fired = true
	}
	onTick, onExpire := t.onTick, t.onExpire
	t.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expire && onExpire != nil {
		onExpire()
	}
}

// SetDeadline rebases the countdown onto a new absolute deadline and re-arms
// the expiry.
func (t *TurnClock) SetDeadline(d time.Time) {
	t.mu.Lock()
	t.deadline = d
	t.fired = false
	t.mu.Unlock()
}

// Pause freezes the countdown; ticks are ignored until Resume.
func (t *TurnClock) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

// Resume re-enables ticking.
func (t *TurnClock) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

// Remaining derives the countdown as of now.
func (t *TurnClock) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deadline.IsZero() {
		return 0
	}
	r := t.deadline.Sub(t.clock.Now())
	if r < 0 {
		return 0
	}
	return r
}

// Stop halts the tick loop permanently.
func (t *TurnClock) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
