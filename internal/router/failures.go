package router

import (
	"sync"
	"time"
)

// FailureTracker keeps ephemeral, in-memory failure history per provider.
// Counts decay (halve) on each subsequent success and are cleared entirely
// once a provider has been quiet for the configured period. Nothing here is
// persisted across restarts.
//
// Each provider owns its own entry and lock so concurrent queries touching
// different providers never contend.
type FailureTracker struct {
	quiet   time.Duration
	mu      sync.RWMutex
	entries map[string]*failureEntry
}

type failureEntry struct {
	mu     sync.Mutex
	count  int
	lastAt time.Time
}

// NewFailureTracker constructs a tracker. quiet controls how long a provider
// must go without failures before its count is forgotten.
func NewFailureTracker(quiet time.Duration) *FailureTracker {
	if quiet <= 0 {
		quiet = time.Hour
	}
	return &FailureTracker{quiet: quiet, entries: make(map[string]*failureEntry)}
}

func (t *FailureTracker) entry(providerID string) *failureEntry {
	t.mu.RLock()
	e, ok := t.entries[providerID]
	t.mu.RUnlock()
	if ok {
		return e
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[providerID]; ok {
		return e
	}
	e = &failureEntry{}
	t.entries[providerID] = e
	return e
}

// RecordFailure increments the provider's failure count.
func (t *FailureTracker) RecordFailure(providerID string) {
	e := t.entry(providerID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count++
	e.lastAt = time.Now()
}

// RecordSuccess halves the provider's failure count. A provider that has
// been quiet past the configured period is cleared entirely.
func (t *FailureTracker) RecordSuccess(providerID string) {
	e := t.entry(providerID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count == 0 {
		return
	}
	if !e.lastAt.IsZero() && time.Since(e.lastAt) >= t.quiet {
		e.count = 0
		e.lastAt = time.Time{}
		return
	}
	e.count /= 2
}

// Snapshot returns the provider's current failure count and the time of its
// most recent failure.
func (t *FailureTracker) Snapshot(providerID string) (count int, lastAt time.Time) {
	e := t.entry(providerID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count > 0 && !e.lastAt.IsZero() && time.Since(e.lastAt) >= t.quiet {
		e.count = 0
		e.lastAt = time.Time{}
	}
	return e.count, e.lastAt
}
