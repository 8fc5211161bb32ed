package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis pub/sub. Every subscriber of a topic
// receives every message, which matches the fan-out contract directly.
// Messages published while a subscriber is disconnected are lost, so durable
// consumers should combine this with a retryable entity status rather than
// rely on replay.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBus creates a Redis-backed event bus.
func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	return &RedisBus{
		client: client,
		logger: logger,
	}
}

// Publish sends the event to all current subscribers of the topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, event *Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	once   sync.Once
}

func (s *redisSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.pubsub.Close()
	})
	return err
}

// Subscribe attaches a handler to a topic. The underlying Redis subscription
// is confirmed before Subscribe returns, so events published afterwards are
// delivered.
func (b *RedisBus) Subscribe(topic string, handler Handler) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pubsub := b.client.Subscribe(ctx, topic)
	// Receive forces the SUBSCRIBE round trip so the subscription is active
	// before we hand control back to the caller.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	ch := pubsub.Channel()

	go func() {
		for msg := range ch {
			event, err := UnmarshalEvent([]byte(msg.Payload))
			if err != nil {
				b.logger.Error("failed to unmarshal event",
					slog.String("topic", topic),
					slog.String("error", err.Error()),
				)
				continue
			}

			if err := handler(ctx, event); err != nil {
				b.logger.Error("redis bus handler failed",
					slog.String("topic", topic),
					slog.String("event_name", event.EventName),
					slog.String("event_id", event.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}()

	return &redisSubscription{pubsub: pubsub, cancel: cancel}, nil
}

// Close closes the underlying Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
