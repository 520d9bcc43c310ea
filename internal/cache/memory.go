package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/noah-isme/backend-tracking/internal/merge"
)

// MemoryStore is the in-process Store implementation: a map with a strict
// LRU list bounded by MaxEntries. Expiry is lazy: an entry past its TTL is
// invisible to Get but stays available to GetStale until the LRU sweep
// pushes it out.
type MemoryStore struct {
	mu    sync.Mutex
	max   int
	ll    *list.List
	items map[Key]*list.Element
}

type memoryItem struct {
	key   Key
	entry Entry
}

// NewMemoryStore constructs a bounded in-memory store.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{
		max:   maxEntries,
		ll:    list.New(),
		items: make(map[Key]*list.Element),
	}
}

// Get implements Store. A read refreshes recency and hit count but never
// extends the TTL.
func (s *MemoryStore) Get(ctx context.Context, key Key) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		countEvent("miss")
		return Entry{}, false, nil
	}
	item := elem.Value.(*memoryItem)
	now := time.Now()
	if item.entry.Expired(now) {
		countEvent("expired")
		return Entry{}, false, nil
	}
	item.entry.LastAccessedAt = now
	item.entry.HitCount++
	s.ll.MoveToFront(elem)
	countEvent("hit")
	return item.entry, true, nil
}

// GetStale implements Store. It ignores TTL and does not touch recency.
func (s *MemoryStore) GetStale(ctx context.Context, key Key) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return Entry{}, false, nil
	}
	return elem.Value.(*memoryItem).entry, true, nil
}

// Put implements Store. Overwriting an existing key refreshes its value and
// TTL in place; hit count carries over. The least-recently-used entry is
// evicted once the store exceeds its bound.
func (s *MemoryStore) Put(ctx context.Context, key Key, shipment merge.Shipment, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if elem, ok := s.items[key]; ok {
		item := elem.Value.(*memoryItem)
		item.entry.Shipment = shipment
		item.entry.InsertedAt = now
		item.entry.TTL = ttl
		item.entry.LastAccessedAt = now
		s.ll.MoveToFront(elem)
		countEvent("put")
		return nil
	}

	elem := s.ll.PushFront(&memoryItem{
		key: key,
		entry: Entry{
			Shipment:       shipment,
			InsertedAt:     now,
			TTL:            ttl,
			LastAccessedAt: now,
		},
	})
	s.items[key] = elem
	countEvent("put")

	for s.ll.Len() > s.max {
		oldest := s.ll.Back()
		if oldest == nil {
			break
		}
		s.ll.Remove(oldest)
		delete(s.items, oldest.Value.(*memoryItem).key)
		countEvent("evict")
	}
	return nil
}

// Invalidate implements Store.
func (s *MemoryStore) Invalidate(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.ll.Remove(elem)
		delete(s.items, key)
		countEvent("invalidate")
	}
	return nil
}

// Len reports the current number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}
