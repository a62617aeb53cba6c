// internal/channel/memory.go
package channel

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBus is an in-process RoomChannel. It mirrors the delivery semantics
// of the Redis transport: every subscriber on a topic receives every publish,
// the publisher included, and slow subscribers drop frames instead of
// blocking the sender.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[uuid.UUID][]*memorySubscription
}

// NewMemoryBus returns an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uuid.UUID][]*memorySubscription)}
}

// Join registers a subscriber on the room topic.
func (b *MemoryBus) Join(_ context.Context, roomID uuid.UUID) (Subscription, error) {
	sub := &memorySubscription{
		bus:    b,
		roomID: roomID,
		events: make(chan Envelope, subscriptionBuffer),
	}
	b.mu.Lock()
	b.subs[roomID] = append(b.subs[roomID], sub)
	b.mu.Unlock()
	return sub, nil
}

// Publish fans the envelope out to every live subscriber of the room. The
// sends are non-blocking, so holding the lock keeps teardown race-free
// without stalling publishers.
func (b *MemoryBus) Publish(_ context.Context, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[env.RoomID] {
		select {
		case sub.events <- env:
		default:
			// Slow subscriber; the next snapshot supersedes this one.
		}
	}
	return nil
}

func (b *MemoryBus) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.roomID]
	for i, s := range list {
		if s == sub {
			b.subs[sub.roomID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	close(sub.events)
}

type memorySubscription struct {
	bus    *MemoryBus
	roomID uuid.UUID
	events chan Envelope
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan Envelope { return s.events }

func (s *memorySubscription) Leave() error {
	s.once.Do(func() {
		s.bus.remove(s)
	})
	return nil
}
