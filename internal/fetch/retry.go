package fetch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-tracking/internal/obs"
	"github.com/noah-isme/backend-tracking/internal/provider"
	"github.com/noah-isme/backend-tracking/internal/resilience"
)

const (
	attemptsPrimary    = 3
	attemptsAggregator = 2
	defaultCallTimeout = 10 * time.Second
)

// RetryPolicy bounds the retry envelope around one provider call.
type RetryPolicy struct {
	BaseDelay time.Duration
	CapDelay  time.Duration
}

// DefaultRetryPolicy provides sensible defaults.
var DefaultRetryPolicy = RetryPolicy{
	BaseDelay: 500 * time.Millisecond,
	CapDelay:  8 * time.Second,
}

// Envelope wraps a single provider call with bounded retries, exponential
// backoff and error classification. Primary carriers get one more attempt
// than low-cost aggregators. Rate-limit, auth, not-found and undecodable
// outcomes are never retried; timeouts and network failures are.
type Envelope struct {
	Policy   RetryPolicy
	Breakers map[string]*resilience.Breaker
	Logger   zerolog.Logger
}

// Fetch runs the provider call under the retry policy and always settles
// into a RawResult: either payload data or a typed provider error.
func (e *Envelope) Fetch(ctx context.Context, p provider.Provider, q provider.Query) provider.RawResult {
	profile := p.Describe()
	attempts := attemptsFor(profile.Tier)
	timeout := profile.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	breaker := e.Breakers[profile.ID]

	var lastErr *provider.Error
	for attempt := 1; attempt <= attempts; attempt++ {
		if breaker != nil && !breaker.Allow(ctx) {
			lastErr = provider.NewError(profile.ID, provider.KindNetwork, "circuit breaker open", resilience.ErrOpenCircuit)
			break
		}

		result, err := e.attempt(ctx, p, q, timeout)
		if breaker != nil {
			breaker.Report(ctx, err == nil)
		}
		if err == nil {
			if attempt > 1 && obs.ProviderRetrySuccessTotal != nil {
				obs.ProviderRetrySuccessTotal.WithLabelValues(profile.ID).Inc()
			}
			return result
		}

		lastErr = provider.Normalize(profile.ID, err)
		e.Logger.Debug().
			Str("provider", profile.ID).
			Str("kind", string(lastErr.Kind)).
			Int("attempt", attempt).
			Msg("provider_attempt_failed")

		if !lastErr.Retryable() || attempt == attempts {
			break
		}

		if obs.ProviderRetryTotal != nil {
			obs.ProviderRetryTotal.WithLabelValues(profile.ID, string(lastErr.Kind)).Inc()
		}
		delay := resilience.Backoff(e.Policy.BaseDelay, attempt, e.Policy.CapDelay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errorResult(profile, q, provider.NewError(profile.ID, provider.KindTimeout, "caller deadline during backoff", ctx.Err()))
		case <-timer.C:
		}
	}

	return errorResult(profile, q, lastErr)
}

func (e *Envelope) attempt(ctx context.Context, p provider.Provider, q provider.Query, timeout time.Duration) (provider.RawResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	result, err := p.Fetch(callCtx, q)
	if err != nil {
		return provider.RawResult{}, err
	}
	if result.Payload == nil {
		return provider.RawResult{}, provider.NewError(p.Describe().ID, provider.KindInvalidResponse, "adapter returned no payload", nil)
	}
	return result, nil
}

func attemptsFor(tier provider.Tier) int {
	if tier == provider.TierAggregator {
		return attemptsAggregator
	}
	return attemptsPrimary
}

func errorResult(profile provider.Profile, q provider.Query, err *provider.Error) provider.RawResult {
	return provider.RawResult{
		ProviderID:     profile.ID,
		TrackingNumber: q.TrackingNumber,
		FetchedAt:      time.Now(),
		Reliability:    profile.BaseReliability,
		Err:            err,
	}
}
