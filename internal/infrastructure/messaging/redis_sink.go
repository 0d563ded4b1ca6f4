package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS PUB/SUB SINK
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRedisChannel is the channel homework events are published to.
const DefaultRedisChannel = "canvas:events"

// RedisPublisherConfig contains configuration for RedisPublisher.
type RedisPublisherConfig struct {
	// Client is the Redis client to use
	Client redis.UniversalClient

	// Channel is the Pub/Sub channel (default: "canvas:events")
	Channel string

	// Timeout bounds a single publish.
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// RedisPublisher publishes event envelopes to a Redis Pub/Sub channel,
// so other services can react to homework transitions.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(config RedisPublisherConfig) (*RedisPublisher, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("%w: redis client is required", shared.ErrInvalidInput)
	}
	if config.Channel == "" {
		config.Channel = DefaultRedisChannel
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &RedisPublisher{
		client:  config.Client,
		channel: config.Channel,
		timeout: config.Timeout,
		logger:  config.Logger,
	}, nil
}

// Handle implements shared.EventHandler.
func (p *RedisPublisher) Handle(event shared.Event) error {
	env, err := shared.NewEventEnvelope(event)
	if err != nil {
		return fmt.Errorf("build envelope: %w", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
