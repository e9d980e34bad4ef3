// Package pubsub implements the cross-replica cache-invalidation
// broadcast: the single-process copy-on-write composed-schema cache
// (internal/registry) only protects one process's readers. When a
// fleet of gateway processes shares a Redis instance, a registration
// on one process publishes a small message so its siblings drop their
// local cache too, converging on the next get_schema call.
//
// Grounded on internal/infrastructure/database/redis.go's client
// wrapper; entirely optional — a Registry with no Broadcaster attached
// behaves exactly as a single-process registry.
package pubsub

import (
	"context"

	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/storage"
)

// DefaultChannel is the Redis pub/sub channel used when the caller
// does not configure one.
const DefaultChannel = "gateway:schema-invalidation"

// Broadcaster publishes and receives composed-schema cache
// invalidation notices over a Redis channel.
type Broadcaster struct {
	client  *storage.Redis
	channel string
	logger  *zap.Logger
}

// NewBroadcaster constructs a Broadcaster over an already-connected
// Redis handle.
func NewBroadcaster(client *storage.Redis, channel string, logger *zap.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{client: client, channel: channel, logger: logger}
}

// Publish announces that serviceName was registered or refreshed.
// Intended to be wired as a registry.InvalidationHook.
func (b *Broadcaster) Publish(serviceName string) {
	if err := b.client.Publish(context.Background(), b.channel, serviceName).Err(); err != nil {
		b.logger.Warn("failed to publish cache invalidation", zap.Error(err))
	}
}

// Listen subscribes to the channel and invokes onInvalidate for every
// message received, until ctx is cancelled. Run it in its own
// goroutine at startup.
func (b *Broadcaster) Listen(ctx context.Context, onInvalidate func()) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.logger.Debug("received remote cache invalidation", zap.String("service", msg.Payload))
			onInvalidate()
		}
	}
}
