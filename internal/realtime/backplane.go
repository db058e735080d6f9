package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// BroadcastFrame is one room broadcast as it crosses the backplane.
// Rooms nil means "every connected client" (presence refreshes).
// Origin identifies the publishing process so it can skip its own frames,
// which it has already delivered locally.
type BroadcastFrame struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Rooms  []string        `json:"rooms,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Backplane mirrors room broadcasts across server processes. Publish is
// best-effort: a failed publish degrades that broadcast to process-local
// delivery and must never fail the originating handler.
type Backplane interface {
	Publish(ctx context.Context, frame BroadcastFrame) error
	Close() error
}

const defaultBackplaneChannel = "realtime:broadcast"

// RedisBackplane fans broadcasts out over a redis pub/sub channel. The
// client's pooled connections publish; a dedicated subscriber connection
// (managed by go-redis) receives frames from other processes.
type RedisBackplane struct {
	rdb     *redis.Client
	sub     *redis.PubSub
	channel string
	log     *slog.Logger
}

// NewRedisBackplane subscribes to the shared channel and returns a running
// backplane. The caller decides what to do when this fails at startup; the
// gateway is expected to fall back to process-local-only delivery.
func NewRedisBackplane(ctx context.Context, rdb *redis.Client, channel string, log *slog.Logger) (*RedisBackplane, error) {
	if rdb == nil {
		return nil, fmt.Errorf("backplane: redis client is nil")
	}
	if channel == "" {
		channel = defaultBackplaneChannel
	}

	sub := rdb.Subscribe(ctx, channel)
	// Force the subscription handshake so startup failure is visible here,
	// not on the first missed message.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("backplane: subscribe %q: %w", channel, err)
	}

	return &RedisBackplane{rdb: rdb, sub: sub, channel: channel, log: log}, nil
}

func (b *RedisBackplane) Publish(ctx context.Context, frame BroadcastFrame) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("backplane: marshal frame: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("backplane: publish: %w", err)
	}
	return nil
}

// Run consumes frames from other processes until the subscription closes,
// handing each to deliver. Intended to run in its own goroutine.
func (b *RedisBackplane) Run(deliver func(BroadcastFrame)) {
	for msg := range b.sub.Channel() {
		var frame BroadcastFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			b.log.Warn("backplane: dropping malformed frame", "err", err)
			continue
		}
		deliver(frame)
	}
}

func (b *RedisBackplane) Close() error {
	return b.sub.Close()
}
