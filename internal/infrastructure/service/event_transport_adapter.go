package service

import (
	"context"

	"github.com/pykids/progress-hub/internal/infrastructure/messaging"
	"github.com/pykids/progress-hub/internal/infrastructure/persistence/redis"
)

// CacheEventTransport adapts redis.Cache Pub/Sub to the messaging.RedisClient
// interface so the Redis event bus rides on the shared cache connection.
type CacheEventTransport struct {
	cache *redis.Cache
}

func NewCacheEventTransport(cache *redis.Cache) *CacheEventTransport {
	return &CacheEventTransport{cache: cache}
}

// Publish sends a message to the channel. Serialization is delegated to the
// cache, which JSON-encodes the value exactly once.
func (t *CacheEventTransport) Publish(ctx context.Context, channel string, message interface{}) error {
	if t.cache == nil {
		return nil
	}
	return t.cache.Publish(ctx, channel, message)
}

// Subscribe opens a Pub/Sub subscription and pumps incoming messages into a
// plain channel. The pump stops when ctx is cancelled or the subscription
// closes, and the output channel is closed either way.
func (t *CacheEventTransport) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	if t.cache == nil {
		out := make(chan messaging.RedisMessage)
		close(out)
		return out, nil
	}

	sub := t.cache.Subscribe(ctx, channels...)

	// Wait for the subscription confirmation so callers know the channel is live.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op. The underlying cache is shared infrastructure owned by
// the caller; closing it here would tear down every repository using it.
func (t *CacheEventTransport) Close() error {
	return nil
}
