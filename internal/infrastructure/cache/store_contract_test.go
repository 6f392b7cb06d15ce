package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orderdesk/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract exercises the behaviour every domain.CacheRepository must share
func storeContract(t *testing.T, newStore func(t *testing.T, clock *clockwork.FakeClock) domain.CacheRepository) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		store := newStore(t, clockwork.NewFakeClock())

		require.NoError(t, store.Set(ctx, "run:1", []byte(`{"id":"1"}`), time.Hour))

		got, err := store.Get(ctx, "run:1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":"1"}`), got)
	})

	t.Run("miss", func(t *testing.T) {
		store := newStore(t, clockwork.NewFakeClock())

		_, err := store.Get(ctx, "run:missing")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)

		exists, err := store.Exists(ctx, "run:missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("overwrite", func(t *testing.T) {
		store := newStore(t, clockwork.NewFakeClock())

		require.NoError(t, store.Set(ctx, "k", []byte("old"), time.Hour))
		require.NoError(t, store.Set(ctx, "k", []byte("new"), time.Hour))

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), got)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)

		require.NoError(t, store.Set(ctx, "processed:claims:ORD-1", []byte("x"), time.Minute))
		exists, err := store.Exists(ctx, "processed:claims:ORD-1")
		require.NoError(t, err)
		assert.True(t, exists)

		clock.Advance(2 * time.Minute)

		_, err = store.Get(ctx, "processed:claims:ORD-1")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
		exists, err = store.Exists(ctx, "processed:claims:ORD-1")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		store := newStore(t, clock)

		require.NoError(t, store.Set(ctx, "forever", []byte("x"), 0))
		clock.Advance(10000 * time.Hour)

		exists, err := store.Exists(ctx, "forever")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t, clockwork.NewFakeClock())

		require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Hour))
		require.NoError(t, store.Delete(ctx, "k"))
		require.NoError(t, store.Delete(ctx, "never-set"))

		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("returned values are copies", func(t *testing.T) {
		store := newStore(t, clockwork.NewFakeClock())
		value := []byte("abc")

		require.NoError(t, store.Set(ctx, "k", value, time.Hour))
		value[0] = 'z'

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)

		got[1] = 'z'
		again, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again)
	})

	t.Run("empty value", func(t *testing.T) {
		store := newStore(t, clockwork.NewFakeClock())

		require.NoError(t, store.Set(ctx, "empty", []byte{}, time.Hour))

		got, err := store.Get(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
