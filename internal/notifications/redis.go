package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisSink publishes events as JSON on a Redis channel so the review
// application can react without polling the API.
type redisSink struct {
	client  *redis.Client
	channel string
}

func newRedisSink(addr, channel string) *redisSink {
	return &redisSink{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

type redisEnvelope struct {
	Event       Event     `json:"event"`
	Payload     Payload   `json:"payload,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

func (r *redisSink) send(ctx context.Context, event Event, payload Payload, _ message) error {
	body, err := json.Marshal(redisEnvelope{
		Event:       event,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode redis notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("publish redis notification: %w", err)
	}
	return nil
}

func (r *redisSink) close() error {
	return r.client.Close()
}
