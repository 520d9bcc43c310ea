package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ProviderFetchTotal counts settled provider calls by outcome. The
	// result label is "success" or the provider error kind.
	ProviderFetchTotal *prometheus.CounterVec
	// ProviderFetchLatency records settled provider call latency in
	// milliseconds, retries included.
	ProviderFetchLatency *prometheus.HistogramVec
	// ProviderRetryTotal counts scheduled retry attempts by failure kind.
	ProviderRetryTotal *prometheus.CounterVec
	// ProviderRetrySuccessTotal counts calls that succeeded after at least
	// one retry.
	ProviderRetrySuccessTotal *prometheus.CounterVec
	// CacheEventsTotal counts cache lookups and mutations by event type
	// (hit, miss, expired, put, evict, invalidate).
	CacheEventsTotal *prometheus.CounterVec
	// StaleFallbackTotal counts responses served from an expired cache
	// entry after a fresh fetch failed entirely.
	StaleFallbackTotal prometheus.Counter
	// MergeTotal counts merge outcomes (merged, no_data, all_failed).
	MergeTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers the tracking domain
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ProviderFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fetch_total",
			Help:      "Count of settled provider fetches by outcome.",
		}, []string{"provider", "result"})
		ProviderFetchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_duration_ms",
			Help:      "Latency of settled provider fetches in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000},
		}, []string{"provider"})
		ProviderRetryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retry_total",
			Help:      "Count of retry attempts scheduled against providers.",
		}, []string{"provider", "kind"})
		ProviderRetrySuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retry_success_total",
			Help:      "Count of provider fetches that succeeded after retrying.",
		}, []string{"provider"})
		CacheEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Count of shipment cache events by type.",
		}, []string{"event"})
		StaleFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_fallback_total",
			Help:      "Count of responses served from stale cache after a failed fetch.",
		})
		MergeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_total",
			Help:      "Count of merge engine outcomes.",
		}, []string{"result"})

		for _, collector := range []prometheus.Collector{
			ProviderFetchTotal,
			ProviderFetchLatency,
			ProviderRetryTotal,
			ProviderRetrySuccessTotal,
			CacheEventsTotal,
			StaleFallbackTotal,
			MergeTotal,
		} {
			if err := reg.Register(collector); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}
