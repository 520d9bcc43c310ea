// Package cache implements the adaptive shipment cache: status-aware TTLs,
// bounded LRU eviction, lazy expiry and a stale-read path used when a fresh
// fetch fails entirely. Two backing stores implement the same contract, an
// in-process LRU map and a Redis store.
package cache

import (
	"context"
	"time"

	"github.com/noah-isme/backend-tracking/internal/merge"
	"github.com/noah-isme/backend-tracking/internal/obs"
	"github.com/noah-isme/backend-tracking/internal/provider"
)

// Key identifies one cached shipment record.
type Key struct {
	TrackingNumber string
	Type           provider.TrackingType
}

// String renders the key in a form usable as a Redis key segment.
func (k Key) String() string {
	return string(k.Type) + ":" + k.TrackingNumber
}

// Entry is one cached shipment with its bookkeeping metadata.
type Entry struct {
	Shipment       merge.Shipment `json:"shipment"`
	InsertedAt     time.Time      `json:"insertedAt"`
	TTL            time.Duration  `json:"ttl"`
	LastAccessedAt time.Time      `json:"lastAccessedAt"`
	HitCount       int64          `json:"hitCount"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.InsertedAt.Add(e.TTL))
}

// Age returns how long ago the entry was inserted.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.InsertedAt)
}

// Store is the cache contract. TTL, LRU, lazy-expiry and stale-read
// semantics must hold regardless of the backing implementation.
type Store interface {
	// Get returns a fresh entry, updating its recency and hit count. An
	// entry past its TTL is treated as absent.
	Get(ctx context.Context, key Key) (Entry, bool, error)
	// GetStale returns an entry regardless of TTL, without touching its
	// recency bookkeeping.
	GetStale(ctx context.Context, key Key) (Entry, bool, error)
	// Put inserts or overwrites the entry for key with a fresh TTL.
	Put(ctx context.Context, key Key, shipment merge.Shipment, ttl time.Duration) error
	// Invalidate removes the entry for key.
	Invalidate(ctx context.Context, key Key) error
}

func countEvent(event string) {
	if obs.CacheEventsTotal != nil {
		obs.CacheEventsTotal.WithLabelValues(event).Inc()
	}
}
