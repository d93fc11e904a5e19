package settings

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore on top of it
func setupTestRedis(t *testing.T, fallback bool) (*RedisStore, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStore(client, "POS-GO-1", fallback)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return store, mr, cleanup
}

func TestRedisStore_FallbackWhenUnset(t *testing.T) {
	store, _, cleanup := setupTestRedis(t, true)
	defer cleanup()

	enabled, err := store.WineEnabled(context.Background())

	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestRedisStore_SetAndGet(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, false)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SetWineEnabled(ctx, true))

	enabled, err := store.WineEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	raw, err := mr.Get("pos:POS-GO-1:settings:wine_enabled")
	require.NoError(t, err)
	assert.Equal(t, "true", raw)
}

func TestRedisStore_InvalidValue(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, false)
	defer cleanup()

	mr.Set("pos:POS-GO-1:settings:wine_enabled", "maybe")

	enabled, err := store.WineEnabled(context.Background())
	assert.Error(t, err)
	assert.False(t, enabled)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, true)
	defer cleanup()

	mr.Close()

	enabled, err := store.WineEnabled(context.Background())
	assert.Error(t, err)
	assert.True(t, enabled)
	assert.Error(t, store.SetWineEnabled(context.Background(), false))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(false)
	ctx := context.Background()

	enabled, err := store.WineEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, store.SetWineEnabled(ctx, true))
	enabled, _ = store.WineEnabled(ctx)
	assert.True(t, enabled)
}
