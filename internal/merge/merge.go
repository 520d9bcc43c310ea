package merge

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/backend-tracking/internal/obs"
	"github.com/noah-isme/backend-tracking/internal/provider"
)

// ErrNoData is returned when merge is called with no results at all.
var ErrNoData = errors.New("merge: no provider results")

// AllFailedError is returned when every provider result carries an error.
type AllFailedError struct {
	Failures []*provider.Error
}

// Error implements the error interface.
func (e *AllFailedError) Error() string {
	return fmt.Sprintf("merge: all %d providers failed", len(e.Failures))
}

// Shipment is the canonical merged record served to callers.
type Shipment struct {
	TrackingNumber string               `json:"trackingNumber"`
	TrackingType   provider.TrackingType `json:"trackingType"`
	Carrier        string               `json:"carrier"`
	Service        string               `json:"service,omitempty"`
	Status         string               `json:"status"`
	Timeline       []provider.Event     `json:"timeline"`
	Containers     []provider.Container `json:"containers,omitempty"`
	Vessel         *provider.Vessel     `json:"vessel,omitempty"`
	Route          *provider.Route      `json:"route,omitempty"`
	DataSource     string               `json:"dataSource"`
	Reliability    float64              `json:"reliability"`
	LastUpdated    time.Time            `json:"lastUpdated"`
}

// Merge reduces the settled provider results for one query into a single
// shipment. Scalar fields come verbatim from the primary result, the
// success with the highest reliability; ties go to the provider registered
// first, so the outcome depends only on reliability and registration order,
// never on the order results arrive in. The timeline is the one
// cross-provider field: the union of every success's events, deduplicated
// and sorted, because a more complete history is strictly better than any
// single provider's partial view. registered is the provider id list in
// registration order (Registry.IDs()).
func Merge(q provider.Query, results []provider.RawResult, registered []string) (Shipment, error) {
	if len(results) == 0 {
		countMerge("no_data")
		return Shipment{}, ErrNoData
	}

	successes := make([]provider.RawResult, 0, len(results))
	failures := make([]*provider.Error, 0, len(results))
	for _, r := range results {
		if r.OK() {
			successes = append(successes, r)
			continue
		}
		err := r.Err
		if err == nil {
			err = provider.NewError(r.ProviderID, provider.KindInvalidResponse, "result carried no payload", nil)
		}
		failures = append(failures, err)
	}
	if len(successes) == 0 {
		countMerge("all_failed")
		return Shipment{}, &AllFailedError{Failures: failures}
	}

	rank := registrationRanks(registered)
	sort.SliceStable(successes, func(i, j int) bool {
		return rank(successes[i].ProviderID) < rank(successes[j].ProviderID)
	})

	primary := successes[0]
	for _, r := range successes[1:] {
		if r.Reliability > primary.Reliability {
			primary = r
		}
	}

	shipment := Shipment{
		TrackingNumber: q.TrackingNumber,
		TrackingType:   q.Type,
		Carrier:        primary.Payload.Carrier,
		Service:        primary.Payload.Service,
		Status:         primary.Payload.Status,
		Timeline:       mergeTimelines(successes),
		Containers:     primary.Payload.Containers,
		Vessel:         primary.Payload.Vessel,
		Route:          primary.Payload.Route,
		DataSource:     primary.ProviderID,
		Reliability:    primary.Reliability,
		LastUpdated:    primary.FetchedAt,
	}
	countMerge("merged")
	return shipment, nil
}

// registrationRanks maps provider ids to their position in the registration
// order. Ids missing from the registry sort after every registered one.
func registrationRanks(registered []string) func(id string) int {
	ranks := make(map[string]int, len(registered))
	for i, id := range registered {
		ranks[id] = i
	}
	return func(id string) int {
		if r, ok := ranks[id]; ok {
			return r
		}
		return len(registered)
	}
}

type eventKey struct {
	status   string
	location string
	minute   int64
}

// mergeTimelines unions all successful timelines, deduplicating entries that
// share status, location and timestamp rounded to the minute, then sorting
// ascending by timestamp. Callers pass successes already ordered by
// registration rank, so duplicates resolve to the first-registered provider's
// copy and the sort stays stable for equal timestamps.
func mergeTimelines(successes []provider.RawResult) []provider.Event {
	seen := make(map[eventKey]struct{})
	merged := make([]provider.Event, 0)
	for _, r := range successes {
		for _, event := range r.Payload.Timeline {
			key := eventKey{
				status:   event.Status,
				location: event.Location,
				minute:   event.Timestamp.Truncate(time.Minute).Unix(),
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, event)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

func countMerge(result string) {
	if obs.MergeTotal != nil {
		obs.MergeTotal.WithLabelValues(result).Inc()
	}
}
