// internal/channel/redis.go
package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// subscriptionBuffer bounds the per-subscriber envelope queue. A slow
// consumer drops frames rather than stalling the reader; the next full
// snapshot supersedes anything missed.
const subscriptionBuffer = 32

// RedisChannel is the production RoomChannel over Redis pub/sub, one topic
// per room.
type RedisChannel struct {
	rdb *redis.Client
	log *logrus.Logger
}

// NewRedisChannel wraps an already-connected Redis client.
func NewRedisChannel(rdb *redis.Client, log *logrus.Logger) *RedisChannel {
	return &RedisChannel{rdb: rdb, log: log}
}

func roomTopic(roomID uuid.UUID) string {
	return fmt.Sprintf("pileup:room:%s:events", roomID)
}

// Join subscribes to the room topic and starts decoding envelopes until the
// subscription is left or ctx is done.
func (c *RedisChannel) Join(ctx context.Context, roomID uuid.UUID) (Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, roomTopic(roomID))
	// Force the subscribe round-trip so a broken transport fails here, not
	// on first receive.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to room %s: %w", roomID, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Envelope, subscriptionBuffer),
	}

	go func() {
		defer close(sub.events)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					c.log.WithError(err).Warnf("Dropping malformed envelope on %s", msg.Channel)
					continue
				}
				select {
				case sub.events <- env:
				default:
					c.log.Warnf("Subscriber for room %s is slow; dropped %s envelope", roomID, env.Type)
				}
			}
		}
	}()

	return sub, nil
}

// Publish marshals the envelope and broadcasts it on the room topic.
func (c *RedisChannel) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Type, err)
	}
	if err := c.rdb.Publish(ctx, roomTopic(env.RoomID), data).Err(); err != nil {
		return fmt.Errorf("publish %s to room %s: %w", env.Type, env.RoomID, err)
	}
	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Envelope
}

func (s *redisSubscription) Events() <-chan Envelope { return s.events }

func (s *redisSubscription) Leave() error {
	return s.pubsub.Close()
}
