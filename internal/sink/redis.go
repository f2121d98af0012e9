// Package sink forwards emitted symbols to external consumers.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dj-oyu/motionglyph/internal/broadcast"
	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// RedisPublisher publishes symbol events to a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to addr and verifies the connection with PING.
func NewRedisPublisher(ctx context.Context, addr, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Info("RedisSink", "Publishing symbols to %s on %s", channel, addr)
	return &RedisPublisher{client: client, channel: channel}, nil
}

// Channel returns the pub/sub channel name.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Publish sends symbol events as JSON. Other event types are ignored.
func (p *RedisPublisher) Publish(ctx context.Context, ev broadcast.Event) error {
	if ev.Type != broadcast.TypeSymbol {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal symbol event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}
	return nil
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
