package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adapterFor(t *testing.T, handler http.HandlerFunc) *HTTPAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	profile := Profile{ID: "maersk", BaseReliability: 0.95, Tier: TierPrimary}
	return NewHTTPAdapter(profile, srv.URL, "test-key")
}

func TestHTTPAdapterFetch(t *testing.T) {
	adapter := adapterFor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "MAEU1234567", r.URL.Query().Get("number"))
		assert.Equal(t, "container", r.URL.Query().Get("type"))
		_ = json.NewEncoder(w).Encode(Canonical{
			Carrier: "Maersk",
			Status:  "In Transit",
			Timeline: []Event{
				{Status: "Loaded", Location: "CNSHA", Timestamp: time.Now().Add(-24 * time.Hour)},
			},
		})
	})

	result, err := adapter.Fetch(context.Background(), Query{TrackingNumber: "MAEU1234567", Type: TypeContainer})
	require.NoError(t, err)
	require.NotNil(t, result.Payload)
	assert.Equal(t, "Maersk", result.Payload.Carrier)
	assert.Equal(t, "In Transit", result.Payload.Status)
	assert.Equal(t, 0.95, result.Reliability)
	assert.Equal(t, "maersk", result.ProviderID)
	// Events arriving without an id get a synthetic one.
	require.Len(t, result.Payload.Timeline, 1)
	assert.NotEmpty(t, result.Payload.Timeline[0].ID)
}

func TestHTTPAdapterStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{name: "throttled", status: http.StatusTooManyRequests, kind: KindRateLimit},
		{name: "unknown number", status: http.StatusNotFound, kind: KindNotFound},
		{name: "bad credentials", status: http.StatusUnauthorized, kind: KindAuth},
		{name: "forbidden", status: http.StatusForbidden, kind: KindAuth},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, kind: KindTimeout},
		{name: "server error", status: http.StatusInternalServerError, kind: KindNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := adapterFor(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})

			_, err := adapter.Fetch(context.Background(), Query{TrackingNumber: "MAEU1234567"})
			typed, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tc.kind, typed.Kind)
		})
	}
}

func TestHTTPAdapterRetryAfterHeader(t *testing.T) {
	adapter := adapterFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := adapter.Fetch(context.Background(), Query{TrackingNumber: "MAEU1234567"})
	typed, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindRateLimit, typed.Kind)
	assert.Equal(t, 42*time.Second, typed.RetryAfter)
}

func TestHTTPAdapterUndecodableBody(t *testing.T) {
	adapter := adapterFor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})

	_, err := adapter.Fetch(context.Background(), Query{TrackingNumber: "MAEU1234567"})
	typed, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidResponse, typed.Kind)
}

func TestHTTPAdapterMissingStatusField(t *testing.T) {
	adapter := adapterFor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"carrier":"Maersk"}`))
	})

	_, err := adapter.Fetch(context.Background(), Query{TrackingNumber: "MAEU1234567"})
	typed, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidResponse, typed.Kind)
}

func TestHTTPAdapterDeadline(t *testing.T) {
	adapter := adapterFor(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := adapter.Fetch(ctx, Query{TrackingNumber: "MAEU1234567"})
	typed, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, typed.Kind)
}
