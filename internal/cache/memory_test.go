package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-tracking/internal/merge"
	"github.com/noah-isme/backend-tracking/internal/provider"
)

func shipmentFor(number string) merge.Shipment {
	return merge.Shipment{
		TrackingNumber: number,
		TrackingType:   provider.TypeContainer,
		Carrier:        "maersk",
		Status:         "In Transit",
		DataSource:     "maersk",
		Reliability:    0.95,
		LastUpdated:    time.Now(),
	}
}

func keyFor(number string) Key {
	return Key{TrackingNumber: number, Type: provider.TypeContainer}
}

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	require.NoError(t, store.Put(ctx, keyFor("MAEU1234567"), shipmentFor("MAEU1234567"), time.Minute))

	entry, found, err := store.Get(ctx, keyFor("MAEU1234567"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "MAEU1234567", entry.Shipment.TrackingNumber)
	assert.Equal(t, int64(1), entry.HitCount)

	_, found, err = store.Get(ctx, keyFor("UNKNOWN0000"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreKeyIncludesType(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	require.NoError(t, store.Put(ctx, keyFor("MAEU1234567"), shipmentFor("MAEU1234567"), time.Minute))

	_, found, err := store.Get(ctx, Key{TrackingNumber: "MAEU1234567", Type: provider.TypeBooking})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreLRUEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	require.NoError(t, store.Put(ctx, keyFor("AAAA1111111"), shipmentFor("AAAA1111111"), time.Minute))
	require.NoError(t, store.Put(ctx, keyFor("BBBB2222222"), shipmentFor("BBBB2222222"), time.Minute))

	// Touch A so B becomes the least recently used.
	_, found, err := store.Get(ctx, keyFor("AAAA1111111"))
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, store.Put(ctx, keyFor("CCCC3333333"), shipmentFor("CCCC3333333"), time.Minute))
	assert.Equal(t, 2, store.Len())

	_, found, err = store.Get(ctx, keyFor("BBBB2222222"))
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.Get(ctx, keyFor("AAAA1111111"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	require.NoError(t, store.Put(ctx, keyFor("MAEU1234567"), shipmentFor("MAEU1234567"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	// Expired entries are invisible to Get but stay readable via GetStale
	// until eviction removes them.
	_, found, err := store.Get(ctx, keyFor("MAEU1234567"))
	require.NoError(t, err)
	assert.False(t, found)

	entry, found, err := store.GetStale(ctx, keyFor("MAEU1234567"))
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, entry.Expired(time.Now()))
	assert.Equal(t, "MAEU1234567", entry.Shipment.TrackingNumber)
}

func TestMemoryStoreOverwriteRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	key := keyFor("MAEU1234567")

	require.NoError(t, store.Put(ctx, key, shipmentFor("MAEU1234567"), time.Millisecond))
	_, _, _ = store.Get(ctx, key)
	time.Sleep(5 * time.Millisecond)

	updated := shipmentFor("MAEU1234567")
	updated.Status = "Delivered"
	require.NoError(t, store.Put(ctx, key, updated, time.Minute))

	entry, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Delivered", entry.Shipment.Status)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	key := keyFor("MAEU1234567")

	require.NoError(t, store.Put(ctx, key, shipmentFor("MAEU1234567"), time.Minute))
	require.NoError(t, store.Invalidate(ctx, key))

	_, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.GetStale(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	// Invalidating an absent key is a no-op.
	require.NoError(t, store.Invalidate(ctx, key))
}
