package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/backend-tracking/internal/cache"
	"github.com/noah-isme/backend-tracking/internal/common"
	"github.com/noah-isme/backend-tracking/internal/fetch"
	"github.com/noah-isme/backend-tracking/internal/merge"
	"github.com/noah-isme/backend-tracking/internal/obs"
	"github.com/noah-isme/backend-tracking/internal/provider"
	"github.com/noah-isme/backend-tracking/internal/router"
)

// Options carries the per-request routing preferences.
type Options struct {
	CostOptimize        bool
	ReliabilityOptimize bool
	UserTier            router.Tier
	PreviousFailures    []string
}

// Result is the caller-facing answer for one query. A degraded answer
// served from stale cache is always distinguishable from a fresh one.
type Result struct {
	Shipment   merge.Shipment
	FromCache  bool
	Stale      bool
	AgeMinutes int
	DataAge    string
	Strategy   router.Strategy
}

// Service wires the aggregation pipeline together: cache check, provider
// selection, concurrent fetch, merge, cache store. Concurrent requests for
// the same cold key coalesce into a single upstream fan-out.
type Service struct {
	Store        cache.Store
	TTL          cache.TTLPolicy
	Selector     *router.Selector
	Orchestrator *fetch.Orchestrator
	Logger       zerolog.Logger

	flights singleflight.Group
}

// Track answers one tracking query.
func (s *Service) Track(ctx context.Context, q provider.Query, opts Options) (Result, error) {
	if s.Store == nil || s.Selector == nil || s.Orchestrator == nil {
		return Result{}, errors.New("tracking: service not configured")
	}
	key := cache.Key{TrackingNumber: q.TrackingNumber, Type: q.Type}

	if !q.ForceRefresh {
		entry, found, err := s.Store.Get(ctx, key)
		if err != nil {
			s.Logger.Error().Err(err).Str("key", key.String()).Msg("cache_get_failed")
		} else if found {
			return cachedResult(entry, false), nil
		}
	}

	// The flight outlives the caller that started it: coalesced waiters share
	// its outcome, so it must not die with the first context. Provider calls
	// carry their own timeouts, which bounds the detached fetch.
	flightCtx := context.WithoutCancel(ctx)
	value, err, _ := s.flights.Do(key.String(), func() (any, error) {
		return s.fetchAndStore(flightCtx, q, key, opts)
	})
	if err != nil {
		return Result{}, err
	}
	return value.(Result), nil
}

func (s *Service) fetchAndStore(ctx context.Context, q provider.Query, key cache.Key, opts Options) (Result, error) {
	selection := s.Selector.Select(q, router.Context{
		CostOptimize:        opts.CostOptimize,
		ReliabilityOptimize: opts.ReliabilityOptimize,
		UserTier:            opts.UserTier,
		PreviousFailures:    opts.PreviousFailures,
	})

	var results []provider.RawResult
	if len(selection.Providers) > 0 {
		results = s.Orchestrator.Fetch(ctx, selection.Providers, q)
	}

	shipment, err := merge.Merge(q, results, s.Orchestrator.Registry.IDs())
	if err != nil {
		return s.staleFallback(ctx, key, err)
	}

	ttl := s.TTL.ForStatus(shipment.Status)
	if putErr := s.Store.Put(ctx, key, shipment, ttl); putErr != nil {
		s.Logger.Error().Err(putErr).Str("key", key.String()).Msg("cache_put_failed")
	}

	return Result{Shipment: shipment, Strategy: selection.Strategy}, nil
}

// staleFallback consults the cache once more ignoring TTL. A possibly
// expired entry beats propagating a total fetch failure, as long as the
// caller can tell the data is old.
func (s *Service) staleFallback(ctx context.Context, key cache.Key, cause error) (Result, error) {
	entry, found, err := s.Store.GetStale(ctx, key)
	if err != nil {
		s.Logger.Error().Err(err).Str("key", key.String()).Msg("cache_stale_get_failed")
	}
	if found {
		if obs.StaleFallbackTotal != nil {
			obs.StaleFallbackTotal.Inc()
		}
		s.Logger.Warn().Str("key", key.String()).AnErr("cause", cause).Msg("serving_stale_cache")
		return cachedResult(entry, true), nil
	}

	var allFailed *merge.AllFailedError
	if errors.As(cause, &allFailed) {
		return Result{}, merge.Collapse(allFailed.Failures)
	}
	if errors.Is(cause, merge.ErrNoData) {
		return Result{}, common.NewAppError("NO_DATA", "no provider supports this tracking query", http.StatusNotFound, cause).
			WithDetails(map[string]any{"retryable": false})
	}
	return Result{}, cause
}

// Invalidate drops the cached record for a tracking number.
func (s *Service) Invalidate(ctx context.Context, trackingNumber string, t provider.TrackingType) error {
	return s.Store.Invalidate(ctx, cache.Key{TrackingNumber: trackingNumber, Type: t})
}

// BatchItem pairs one batch query with its outcome.
type BatchItem struct {
	Query  provider.Query
	Result Result
	Err    error
}

// TrackBatch answers multiple queries. Entries already fresh in cache are
// answered immediately; the remaining queries are dispatched concurrently
// and independently, so one query's total failure never fails the batch.
func (s *Service) TrackBatch(ctx context.Context, queries []provider.Query, opts Options) []BatchItem {
	items := make([]BatchItem, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		items[i].Query = q

		if !q.ForceRefresh {
			entry, found, err := s.Store.Get(ctx, cache.Key{TrackingNumber: q.TrackingNumber, Type: q.Type})
			if err == nil && found {
				items[i].Result = cachedResult(entry, false)
				continue
			}
		}

		wg.Add(1)
		go func(i int, q provider.Query) {
			defer wg.Done()
			items[i].Result, items[i].Err = s.Track(ctx, q, opts)
		}(i, q)
	}
	wg.Wait()
	return items
}

func cachedResult(entry cache.Entry, stale bool) Result {
	age := entry.Age(time.Now())
	return Result{
		Shipment:   entry.Shipment,
		FromCache:  true,
		Stale:      stale,
		AgeMinutes: int(age / time.Minute),
		DataAge:    humanizeAge(age),
	}
}

// humanizeAge renders a duration as a compact "data age" annotation.
func humanizeAge(d time.Duration) string {
	if d < time.Minute {
		return "under a minute old"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	minutes := int(d/time.Minute) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh old", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm old", hours, minutes)
	default:
		return fmt.Sprintf("%dm old", minutes)
	}
}
