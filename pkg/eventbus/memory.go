package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("eventbus: bus is closed")

// MemoryBus is an in-process Bus. Events are fanned out to every subscriber
// registered at publish time, each on its own goroutine so a slow handler
// never blocks the publisher or its sibling subscribers.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySubscription
	logger *slog.Logger
	closed bool
	wg     sync.WaitGroup
}

// NewMemoryBus creates an in-memory event bus.
func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	return &MemoryBus{
		subs:   make(map[string][]*memorySubscription),
		logger: logger,
	}
}

type memorySubscription struct {
	bus     *MemoryBus
	topic   string
	handler Handler
	once    sync.Once
}

// Unsubscribe detaches the handler from the topic.
func (s *memorySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		current := s.bus.subs[s.topic]
		for i, sub := range current {
			if sub == s {
				s.bus.subs[s.topic] = append(current[:i:i], current[i+1:]...)
				break
			}
		}
	})
	return nil
}

// Subscribe registers a handler for a topic. The handler receives every event
// published to the topic after Subscribe returns.
func (b *MemoryBus) Subscribe(topic string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &memorySubscription{bus: b, topic: topic, handler: handler}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub, nil
}

// Publish delivers the event to all current subscribers of the topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, event *Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	// Snapshot so handlers can subscribe/unsubscribe without holding the lock.
	targets := make([]*memorySubscription, len(b.subs[topic]))
	copy(targets, b.subs[topic])
	// Count deliveries before the closed flag can flip, or Close could
	// finish waiting while these are still pending.
	b.wg.Add(len(targets))
	b.mu.RUnlock()

	for _, sub := range targets {
		go func(s *memorySubscription) {
			defer b.wg.Done()
			if err := s.handler(ctx, event); err != nil {
				b.logger.Error("memory bus handler failed",
					slog.String("topic", topic),
					slog.String("event_name", event.EventName),
					slog.String("event_id", event.ID),
					slog.String("error", err.Error()),
				)
			}
		}(sub)
	}

	return nil
}

// Close waits for in-flight deliveries to drain and drops all subscriptions.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.subs = make(map[string][]*memorySubscription)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
