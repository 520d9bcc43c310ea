package resilience

import (
	"context"
	"errors"
	"net/http"
)

// HTTPClient wraps an http.Client with an optional circuit breaker. It
// intentionally does not retry or apply its own deadline: retry policy and
// per-call timeouts for provider calls live with the fetch envelope, which
// understands the typed provider error taxonomy and passes a bounded context
// down to the adapter.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
}

// Do executes the request. When the breaker is open ErrOpenCircuit is
// returned without touching the network. Responses with a 5xx status are
// reported to the breaker as failures but still returned to the caller.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
		return nil, ErrOpenCircuit
	}
	resp, err := cl.Client.Do(req.WithContext(ctx))
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, err == nil && resp.StatusCode < 500)
	}
	return resp, err
}
