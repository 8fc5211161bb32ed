package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetMiss(t *testing.T) {
	store := NewMemoryStore()

	var out string
	found, err := store.Get(context.Background(), "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreSetGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	type rating struct {
		Average float64 `json:"average"`
		Count   int     `json:"count"`
	}

	require.NoError(t, store.SetWithTTL(ctx, "artisan:a1:avg-rating", rating{Average: 4.5, Count: 12}, 60))

	var got rating
	found, err := store.Get(ctx, "artisan:a1:avg-rating", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 4.5, got.Average)
	assert.Equal(t, 12, got.Count)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k1", "v1", 60))
	require.NoError(t, store.Delete(ctx, "k1", "does-not-exist"))

	var out string
	found, err := store.Get(ctx, "k1", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreDeleteByPrefix(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "artisan:a1:published:v1:p1", "page1", 60))
	require.NoError(t, store.SetWithTTL(ctx, "artisan:a1:published:v1:p2", "page2", 60))
	require.NoError(t, store.SetWithTTL(ctx, "artisan:a2:published:v1:p1", "other", 60))

	deleted, err := store.DeleteByPrefix(ctx, "artisan:a1:published:v1:")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	var out string
	found, err := store.Get(ctx, "artisan:a2:published:v1:p1", &out)
	require.NoError(t, err)
	assert.True(t, found, "keys under a different prefix must survive")
}
