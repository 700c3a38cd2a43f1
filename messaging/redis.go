// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gantry-project/gantry/lib/clock"
)

// connectTimeout bounds the liveness ping during NewRedisPublisher.
const connectTimeout = 5 * time.Second

// RedisConfig holds the parameters for connecting a Redis publisher.
type RedisConfig struct {
	// Addr is the Redis server address, host:port. Required.
	Addr string

	// Password authenticates the connection. Empty means no auth.
	Password string

	// DB is the Redis logical database number.
	DB int

	// ChannelPrefix is prepended (with a colon) to the event type to
	// form the pub/sub channel name. Defaults to "gantry".
	ChannelPrefix string

	// Clock stamps each envelope's publication time. If nil, the
	// real clock is used.
	Clock clock.Clock

	// Logger receives operational messages. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Envelope is the wire form of an event on a Redis channel: the event
// plus the publication timestamp in Unix milliseconds.
type Envelope struct {
	Type        string          `json:"type"`
	PublishedAt int64           `json:"published_at"`
	Content     json.RawMessage `json:"content"`
}

// RedisPublisher delivers events over Redis pub/sub. Each event type
// gets its own channel ("<prefix>:<event type>"), so consumers
// subscribe to exactly the lifecycle transitions they care about.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	clock  clock.Clock
	logger *slog.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to Redis and verifies the connection
// with a ping before returning.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("messaging: redis Addr is required")
	}

	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "gantry"
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("messaging: redis ping failed: %w", err)
	}

	logger.Info("redis publisher connected", "addr", cfg.Addr, "channel_prefix", prefix)

	return &RedisPublisher{
		client: client,
		prefix: prefix,
		clock:  clk,
		logger: logger,
	}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := p.envelope(event)
	if err != nil {
		return err
	}

	channel := p.channel(event.Type)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("messaging: publishing to %s: %w", channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// channel returns the pub/sub channel name for an event type.
func (p *RedisPublisher) channel(eventType string) string {
	return p.prefix + ":" + eventType
}

// envelope wraps an event in its wire form with the publication
// timestamp.
func (p *RedisPublisher) envelope(event Event) ([]byte, error) {
	payload, err := json.Marshal(Envelope{
		Type:        event.Type,
		PublishedAt: p.clock.Now().UnixMilli(),
		Content:     event.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: encoding %s envelope: %w", event.Type, err)
	}
	return payload, nil
}
