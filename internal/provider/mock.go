package provider

import (
	"context"
	"time"
)

// Mock returns canned tracking data and is useful for testing and
// development. FetchErr, when set, is returned instead of the payload.
type Mock struct {
	Profile  Profile
	Canned   *Canonical
	FetchErr *Error
	Delay    time.Duration
}

// Describe returns the static profile declared for the mock.
func (m *Mock) Describe() Profile {
	return m.Profile
}

// Fetch returns the canned payload regardless of the query.
func (m *Mock) Fetch(ctx context.Context, q Query) (RawResult, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return RawResult{}, NewError(m.Profile.ID, KindTimeout, "mock call cancelled", ctx.Err())
		case <-timer.C:
		}
	}
	if m.FetchErr != nil {
		return RawResult{}, m.FetchErr
	}
	payload := m.Canned
	if payload == nil {
		payload = &Canonical{
			Carrier: m.Profile.ID,
			Status:  "In Transit",
			Timeline: []Event{
				{ID: "evt-1", Timestamp: time.Now().Add(-48 * time.Hour), Status: "Gate In", Location: "CNSHA", Completed: true},
				{ID: "evt-2", Timestamp: time.Now().Add(-24 * time.Hour), Status: "Loaded", Location: "CNSHA", Completed: true},
			},
		}
	}
	return RawResult{
		ProviderID:     m.Profile.ID,
		TrackingNumber: q.TrackingNumber,
		Payload:        payload,
		FetchedAt:      time.Now(),
		Reliability:    m.Profile.BaseReliability,
	}, nil
}
