package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-tracking/internal/resilience"
)

// HTTPAdapter turns a JSON tracking endpoint that already speaks the
// canonical shape into a Provider. It normalizes transport failures and
// status codes into the typed error taxonomy so the aggregation core never
// sees library-specific errors.
type HTTPAdapter struct {
	ProfileData Profile
	BaseURL     string
	APIKey      string
	Client      resilience.HTTPClient
}

// NewHTTPAdapter constructs an adapter with an instrumented HTTP client and
// a dedicated circuit breaker for the provider.
func NewHTTPAdapter(profile Profile, baseURL, apiKey string) *HTTPAdapter {
	breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).WithProvider(profile.ID)
	return &HTTPAdapter{
		ProfileData: profile,
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Client: resilience.HTTPClient{
			Client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker: breaker,
		},
	}
}

// Describe returns the declared profile.
func (a *HTTPAdapter) Describe() Profile {
	return a.ProfileData
}

// Fetch performs one upstream call and maps the response onto a RawResult.
func (a *HTTPAdapter) Fetch(ctx context.Context, q Query) (RawResult, error) {
	id := a.ProfileData.ID
	endpoint := fmt.Sprintf("%s/track?number=%s&type=%s", a.BaseURL, url.QueryEscape(q.TrackingNumber), url.QueryEscape(string(q.Type)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RawResult{}, NewError(id, KindNetwork, "build request", err)
	}
	if a.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}

	resp, err := a.Client.Do(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, resilience.ErrOpenCircuit):
			return RawResult{}, NewError(id, KindNetwork, "circuit breaker open", err)
		case errors.Is(err, context.DeadlineExceeded):
			return RawResult{}, NewError(id, KindTimeout, "provider call timed out", err)
		default:
			return RawResult{}, NewError(id, KindNetwork, err.Error(), err)
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return RawResult{}, a.statusError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RawResult{}, NewError(id, KindNetwork, "read response", err)
	}
	var payload Canonical
	if err := json.Unmarshal(body, &payload); err != nil {
		return RawResult{}, NewError(id, KindInvalidResponse, "decode response", err)
	}
	if payload.Status == "" {
		return RawResult{}, NewError(id, KindInvalidResponse, "response missing status", nil)
	}
	for i := range payload.Timeline {
		if payload.Timeline[i].ID == "" {
			payload.Timeline[i].ID = uuid.NewString()
		}
	}

	return RawResult{
		ProviderID:     id,
		TrackingNumber: q.TrackingNumber,
		Payload:        &payload,
		FetchedAt:      time.Now(),
		Reliability:    a.ProfileData.BaseReliability,
	}, nil
}

func (a *HTTPAdapter) statusError(resp *http.Response) *Error {
	id := a.ProfileData.ID
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		err := NewError(id, KindRateLimit, "provider throttled the call", nil)
		if after, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && after > 0 {
			err.RetryAfter = time.Duration(after) * time.Second
		}
		return err
	case http.StatusNotFound:
		return NewError(id, KindNotFound, "tracking number unknown to provider", nil)
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(id, KindAuth, "provider rejected credentials", nil)
	case http.StatusGatewayTimeout:
		return NewError(id, KindTimeout, "provider gateway timeout", nil)
	default:
		return NewError(id, KindNetwork, "unexpected status "+resp.Status, nil)
	}
}
