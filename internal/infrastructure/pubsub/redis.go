package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"iapgate/internal/shared/goroutine"
	"iapgate/internal/shared/logger"
)

const defaultChannelPrefix = "iapgate:store"

// RedisStoreEventBus implements StoreEventBus using Redis Pub/Sub so a
// sandbox store driven from one process reaches controllers in another.
type RedisStoreEventBus struct {
	client  *redis.Client
	channel string
	logger  logger.Interface

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// NewRedisStoreEventBus creates a bus publishing on "<prefix>:events".
func NewRedisStoreEventBus(client *redis.Client, channelPrefix string, log logger.Interface) *RedisStoreEventBus {
	if channelPrefix == "" {
		channelPrefix = defaultChannelPrefix
	}
	return &RedisStoreEventBus{
		client:  client,
		channel: channelPrefix + ":events",
		logger:  log.Named("pubsub.redis"),
		subs:    make(map[*redis.PubSub]struct{}),
	}
}

var _ StoreEventBus = (*RedisStoreEventBus)(nil)

// Channel returns the Redis channel name events travel on.
func (b *RedisStoreEventBus) Channel() string {
	return b.channel
}

func (b *RedisStoreEventBus) Publish(ctx context.Context, event StoreEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Errorw("failed to publish store event",
			"type", event.Type,
			"error", err,
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debugw("store event published",
		"type", event.Type,
		"channel", b.channel,
	)
	return nil
}

// Subscribe waits for the subscription confirmation, then delivers events
// to handler on a single goroutine in the order Redis delivers them.
func (b *RedisStoreEventBus) Subscribe(ctx context.Context, handler StoreEventHandler) (Unsubscribe, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.mu.Unlock()

	ps := b.client.Subscribe(ctx, b.channel)

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	b.mu.Lock()
	b.subs[ps] = struct{}{}
	b.mu.Unlock()

	b.logger.Infow("subscribed to store events", "channel", b.channel)

	ch := ps.Channel()
	goroutine.SafeGo(b.logger, nil, "redis_store_event_subscriber", func() {
		for msg := range ch {
			var event StoreEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warnw("failed to unmarshal store event",
					"payload", msg.Payload,
					"error", err,
				)
				continue
			}
			if err := event.Validate(); err != nil {
				b.logger.Warnw("dropping malformed store event", "error", err)
				continue
			}

			err := goroutine.Guard("store_event_handler", func() error {
				handler(context.Background(), event)
				return nil
			})
			if err != nil {
				b.logger.Errorw("store event handler failed", "type", event.Type, "error", err)
			}
		}
		b.logger.Debugw("store event subscriber stopped", "channel", b.channel)
	})

	var once sync.Once
	var closeErr error
	return func() error {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ps)
			b.mu.Unlock()
			if err := ps.Close(); err != nil {
				closeErr = fmt.Errorf("failed to close subscription: %w", err)
			}
		})
		return closeErr
	}, nil
}

// Close ends every open subscription. The Redis client stays open; it is
// owned by the caller.
func (b *RedisStoreEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*redis.PubSub]struct{})
	b.mu.Unlock()

	var firstErr error
	for ps := range subs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close subscription: %w", err)
		}
	}
	return firstErr
}
