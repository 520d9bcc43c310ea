package tracking

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-tracking/internal/provider"
)

func newTestHandler(t *testing.T, providers ...provider.Provider) *Handler {
	t.Helper()
	return &Handler{Svc: newTestService(t, providers...), Validate: validator.New()}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlerGet(t *testing.T) {
	h := newTestHandler(t, &scriptedProvider{profile: carrierProfile("maersk")})

	req := httptest.NewRequest(http.MethodGet, "/v1/track?number=MAEU1234567&type=container", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "MAEU1234567", data["trackingNumber"])
	assert.Equal(t, "maersk", data["dataSource"])
	meta, ok := body["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, meta["fromCache"])
}

func TestHandlerGetCachedMeta(t *testing.T) {
	h := newTestHandler(t, &scriptedProvider{profile: carrierProfile("maersk")})

	first := httptest.NewRecorder()
	h.Get(first, httptest.NewRequest(http.MethodGet, "/v1/track?number=MAEU1234567", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.Get(second, httptest.NewRequest(http.MethodGet, "/v1/track?number=MAEU1234567", nil))
	require.Equal(t, http.StatusOK, second.Code)

	meta := decodeBody(t, second)["meta"].(map[string]any)
	assert.Equal(t, true, meta["fromCache"])
	assert.Equal(t, false, meta["stale"])
	assert.Equal(t, "under a minute old", meta["dataAge"])
}

func TestHandlerGetValidation(t *testing.T) {
	h := newTestHandler(t, &scriptedProvider{profile: carrierProfile("maersk")})

	cases := []struct {
		name string
		url  string
	}{
		{name: "missing number", url: "/v1/track"},
		{name: "number too short", url: "/v1/track?number=AB1"},
		{name: "unknown type", url: "/v1/track?number=MAEU1234567&type=parcel"},
		{name: "unknown tier", url: "/v1/track?number=MAEU1234567&tier=platinum"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Get(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlerGetNotFound(t *testing.T) {
	p := &scriptedProvider{
		profile: carrierProfile("maersk"),
		errs: map[string]*provider.Error{
			"MAEU1234567": provider.NewError("maersk", provider.KindNotFound, "gone", nil),
		},
	}
	h := newTestHandler(t, p)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/v1/track?number=MAEU1234567", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}

func TestHandlerBatch(t *testing.T) {
	failing := "ZZZZ9999999"
	p := &scriptedProvider{
		profile: carrierProfile("maersk"),
		errs: map[string]*provider.Error{
			failing: provider.NewError("maersk", provider.KindNotFound, "gone", nil),
		},
	}
	h := newTestHandler(t, p)

	payload := `{"queries":[{"trackingNumber":"MAEU1234567"},{"trackingNumber":"` + failing + `"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/track/batch", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Batch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	items, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Contains(t, first, "data")
	assert.NotContains(t, first, "error")

	second := items[1].(map[string]any)
	assert.Contains(t, second, "error")
	assert.NotContains(t, second, "data")
}

func TestHandlerBatchValidation(t *testing.T) {
	h := newTestHandler(t, &scriptedProvider{profile: carrierProfile("maersk")})

	cases := []struct {
		name    string
		payload string
	}{
		{name: "malformed json", payload: `{"queries":`},
		{name: "empty queries", payload: `{"queries":[]}`},
		{name: "invalid entry", payload: `{"queries":[{"trackingNumber":"x"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Batch(rec, httptest.NewRequest(http.MethodPost, "/v1/track/batch", strings.NewReader(tc.payload)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlerInvalidate(t *testing.T) {
	p := &scriptedProvider{profile: carrierProfile("maersk")}
	h := newTestHandler(t, p)

	first := httptest.NewRecorder()
	h.Get(first, httptest.NewRequest(http.MethodGet, "/v1/track?number=MAEU1234567", nil))
	require.Equal(t, http.StatusOK, first.Code)

	rec := httptest.NewRecorder()
	h.Invalidate(rec, httptest.NewRequest(http.MethodDelete, "/v1/track?number=MAEU1234567", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The next lookup goes upstream again.
	second := httptest.NewRecorder()
	h.Get(second, httptest.NewRequest(http.MethodGet, "/v1/track?number=MAEU1234567", nil))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, int64(2), p.calls.Load())
}

func TestHandlerInvalidateRequiresNumber(t *testing.T) {
	h := newTestHandler(t, &scriptedProvider{profile: carrierProfile("maersk")})

	rec := httptest.NewRecorder()
	h.Invalidate(rec, httptest.NewRequest(http.MethodDelete, "/v1/track", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
