package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IdempotencyStore tracks which event IDs have already been processed.
type IdempotencyStore interface {
	// MarkProcessed records the event ID. Returns true if the ID was newly
	// recorded, false if it was already present.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// MemoryIdempotencyStore is an in-process IdempotencyStore with TTL-based
// expiry. Suitable for a single instance; use a Redis-backed store when
// running more than one replica of a consumer.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewMemoryIdempotencyStore creates a store that remembers event IDs for ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func (s *MemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// opportunistic expiry on write
	for id, expiry := range s.seen {
		if now.After(expiry) {
			delete(s.seen, id)
		}
	}

	if _, ok := s.seen[eventID]; ok {
		return false, nil
	}
	s.seen[eventID] = now.Add(s.ttl)
	return true, nil
}

// IdempotentHandler wraps a handler so that duplicate deliveries of the same
// event ID are acknowledged without re-running the handler. A store error
// fails open: the handler runs and at-least-once semantics apply.
func IdempotentHandler(store IdempotencyStore, logger *slog.Logger, handler Handler) Handler {
	return func(ctx context.Context, event *Event) error {
		fresh, err := store.MarkProcessed(ctx, event.ID)
		if err != nil {
			logger.WarnContext(ctx, "idempotency check failed, processing anyway",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
			return handler(ctx, event)
		}

		if !fresh {
			logger.DebugContext(ctx, "skipping duplicate event",
				slog.String("event_id", event.ID),
				slog.String("event_name", event.EventName),
			)
			return nil
		}

		return handler(ctx, event)
	}
}
