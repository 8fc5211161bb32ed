package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStoreMarkProcessed(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)

	fresh, err := store.MarkProcessed(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkProcessed(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, fresh)

	fresh, err = store.MarkProcessed(context.Background(), "evt-2")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestMemoryIdempotencyStoreExpiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(10 * time.Millisecond)

	_, err := store.MarkProcessed(context.Background(), "evt-1")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	fresh, err := store.MarkProcessed(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, fresh, "expired entry should be treated as new")
}

func TestIdempotentHandlerSkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)

	calls := 0
	handler := IdempotentHandler(store, newTestLogger(), func(_ context.Context, _ *Event) error {
		calls++
		return nil
	})

	event, err := NewEvent("OrderCreatedEvent", "order-1", "order-management", nil)
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, handler(context.Background(), event))
	assert.Equal(t, 1, calls)
}

type failingStore struct{}

func (failingStore) MarkProcessed(context.Context, string) (bool, error) {
	return false, errors.New("store unavailable")
}

func TestIdempotentHandlerFailsOpenOnStoreError(t *testing.T) {
	calls := 0
	handler := IdempotentHandler(failingStore{}, newTestLogger(), func(_ context.Context, _ *Event) error {
		calls++
		return nil
	})

	event, err := NewEvent("OrderCreatedEvent", "order-1", "order-management", nil)
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), event))
	assert.Equal(t, 1, calls)
}
