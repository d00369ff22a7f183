// ABOUTME: Redis-backed Bridge using PUBLISH/SUBSCRIBE on a shared channel
// ABOUTME: Connects multiple relay instances to one channel-of-record

package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBridge implements Bridge on a redis pub/sub channel. All relay
// instances publish and subscribe to the same channel name; delivery order
// across instances is whatever redis provides (best-effort, per spec).
type RedisBridge struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewRedisBridge creates a bridge on the given redis address and channel.
func NewRedisBridge(addr, channel string) *RedisBridge {
	return &RedisBridge{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		logger:  slog.Default().With("component", "redis_bridge"),
	}
}

// Ping verifies connectivity to redis.
func (r *RedisBridge) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Publish sends the payload to the shared channel.
func (r *RedisBridge) Publish(ctx context.Context, payload []byte) error {
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to redis channel %s: %w", r.channel, err)
	}
	return nil
}

// Subscribe opens the subscription and returns a channel of raw payloads.
// The returned channel closes when ctx is cancelled or the subscription
// drops.
func (r *RedisBridge) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)

	// Confirm the subscription before handing out the channel
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribing to redis channel %s: %w", r.channel, err)
	}

	r.mu.Lock()
	r.pubsub = pubsub
	r.mu.Unlock()

	out := make(chan []byte, bridgeBufferSize)
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					r.logger.Warn("dropped redis payload, consumer too slow",
						"channel", r.channel)
				}
			}
		}
	}()

	r.logger.Info("subscribed to redis channel", "channel", r.channel)
	return out, nil
}

// Close shuts down the subscription and the client.
func (r *RedisBridge) Close() error {
	r.mu.Lock()
	if r.pubsub != nil {
		r.pubsub.Close()
		r.pubsub = nil
	}
	r.mu.Unlock()
	return r.client.Close()
}
