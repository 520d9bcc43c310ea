package merge

import (
	"net/http"
	"time"

	"github.com/noah-isme/backend-tracking/internal/common"
	"github.com/noah-isme/backend-tracking/internal/provider"
)

// Collapse reduces a set of per-provider failures into the single
// caller-facing error. Precedence: all rate-limited wins (with the maximum
// retry-after across providers), then any transient transport failure, then
// uniformly not-found, then a generic retryable failure.
func Collapse(failures []*provider.Error) *common.AppError {
	if len(failures) == 0 {
		return common.NewAppError("NO_DATA", "no tracking data available", http.StatusNotFound, ErrNoData).
			WithDetails(map[string]any{"retryable": false})
	}

	allRateLimited := true
	allNotFound := true
	anyTransient := false
	var maxRetryAfter time.Duration
	for _, f := range failures {
		if f.Kind != provider.KindRateLimit {
			allRateLimited = false
		} else if f.RetryAfter > maxRetryAfter {
			maxRetryAfter = f.RetryAfter
		}
		if f.Kind != provider.KindNotFound {
			allNotFound = false
		}
		if f.Kind == provider.KindTimeout || f.Kind == provider.KindNetwork {
			anyTransient = true
		}
	}

	switch {
	case allRateLimited:
		return common.NewAppError("RATE_LIMITED", "all tracking providers are rate limited", http.StatusTooManyRequests, nil).
			WithDetails(map[string]any{
				"retryable":         true,
				"retryAfterSeconds": int(maxRetryAfter / time.Second),
			})
	case anyTransient:
		return common.NewAppError("UPSTREAM_UNAVAILABLE", "tracking providers temporarily unavailable", http.StatusServiceUnavailable, nil).
			WithDetails(map[string]any{"retryable": true})
	case allNotFound:
		return common.NewAppError("NOT_FOUND", "tracking number not found with any provider", http.StatusNotFound, nil).
			WithDetails(map[string]any{"retryable": false})
	default:
		return common.NewAppError("TRACKING_FAILED", "failed to retrieve tracking data", http.StatusInternalServerError, nil).
			WithDetails(map[string]any{"retryable": true})
	}
}
