package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-tracking/internal/obs"
	"github.com/noah-isme/backend-tracking/internal/provider"
	"github.com/noah-isme/backend-tracking/internal/router"
)

// Orchestrator dispatches one query to its candidate providers concurrently
// and collects every outcome. A slow or failing provider never blocks or
// aborts collection of the others; error surfacing is deferred entirely to
// the merge engine.
type Orchestrator struct {
	Registry *provider.Registry
	Envelope *Envelope
	Router   *router.Selector
	Logger   zerolog.Logger
}

// Fetch fans out to every provider in the plan and waits until all calls
// have settled. Results are returned in plan order, one per provider,
// success and error alike. Provider outcomes are reported back to the router
// so the next query's scoring sees fresh failure history.
func (o *Orchestrator) Fetch(ctx context.Context, providerIDs []string, q provider.Query) []provider.RawResult {
	results := make([]provider.RawResult, len(providerIDs))
	var wg sync.WaitGroup
	for i, id := range providerIDs {
		p, ok := o.Registry.Get(id)
		if !ok {
			results[i] = provider.RawResult{
				ProviderID:     id,
				TrackingNumber: q.TrackingNumber,
				FetchedAt:      time.Now(),
				Err:            provider.NewError(id, provider.KindInvalidResponse, "provider not registered", nil),
			}
			continue
		}
		wg.Add(1)
		go func(i int, id string, p provider.Provider) {
			defer wg.Done()
			start := time.Now()
			results[i] = o.Envelope.Fetch(ctx, p, q)
			if obs.ProviderFetchLatency != nil {
				obs.ProviderFetchLatency.WithLabelValues(id).Observe(obs.DurationMillis(time.Since(start)))
			}
		}(i, id, p)
	}
	wg.Wait()

	for _, result := range results {
		if result.OK() {
			if obs.ProviderFetchTotal != nil {
				obs.ProviderFetchTotal.WithLabelValues(result.ProviderID, "success").Inc()
			}
			if o.Router != nil {
				o.Router.RecordSuccess(result.ProviderID)
			}
			continue
		}
		kind := provider.KindNetwork
		if result.Err != nil {
			kind = result.Err.Kind
		}
		if obs.ProviderFetchTotal != nil {
			obs.ProviderFetchTotal.WithLabelValues(result.ProviderID, string(kind)).Inc()
		}
		if o.Router != nil {
			o.Router.RecordFailure(result.ProviderID)
		}
		o.Logger.Warn().
			Str("provider", result.ProviderID).
			Str("tracking_number", q.TrackingNumber).
			Str("kind", string(kind)).
			Msg("provider_fetch_failed")
	}

	return results
}
