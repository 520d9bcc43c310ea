package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingCache(ctx context.Context, timeout time.Duration) error
	ProviderCount() int
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	CacheTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes. A service with no
// registered providers cannot answer queries and is not ready.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	cacheStatus := "ok"
	if err := h.Checker.PingCache(r.Context(), h.cacheTimeout()); err != nil {
		cacheStatus = err.Error()
	}
	providers := h.Checker.ProviderCount()

	status := map[string]any{
		"cache":     cacheStatus,
		"providers": providers,
	}
	w.Header().Set("Content-Type", "application/json")
	if cacheStatus != "ok" || providers == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) cacheTimeout() time.Duration {
	if h.CacheTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.CacheTimeout
}
