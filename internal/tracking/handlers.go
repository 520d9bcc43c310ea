package tracking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-tracking/internal/common"
	"github.com/noah-isme/backend-tracking/internal/provider"
	"github.com/noah-isme/backend-tracking/internal/router"
)

// Handler exposes the tracking HTTP endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type trackRequest struct {
	TrackingNumber      string `validate:"required,min=6,max=40"`
	TrackingType        string `validate:"omitempty,oneof=container booking bol"`
	ForceRefresh        bool
	CostOptimize        bool
	ReliabilityOptimize bool
	UserTier            string `validate:"omitempty,oneof=free premium enterprise"`
}

// Get answers GET /v1/track.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tracking service not configured", nil)
		return
	}
	params := r.URL.Query()
	req := trackRequest{
		TrackingNumber:      strings.TrimSpace(params.Get("number")),
		TrackingType:        strings.TrimSpace(params.Get("type")),
		ForceRefresh:        parseBoolParam(params.Get("forceRefresh")),
		CostOptimize:        parseBoolParam(params.Get("costOptimize")),
		ReliabilityOptimize: parseBoolParam(params.Get("reliabilityOptimize")),
		UserTier:            strings.TrimSpace(params.Get("tier")),
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	result, err := h.Svc.Track(r.Context(), provider.Query{
		TrackingNumber: req.TrackingNumber,
		Type:           provider.ParseTrackingType(req.TrackingType),
		ForceRefresh:   req.ForceRefresh,
	}, Options{
		CostOptimize:        req.CostOptimize,
		ReliabilityOptimize: req.ReliabilityOptimize,
		UserTier:            router.Tier(req.UserTier),
	})
	if err != nil {
		writeTrackingError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": result.Shipment,
		"meta": resultMeta(result),
	})
}

type batchQuery struct {
	TrackingNumber string `json:"trackingNumber" validate:"required,min=6,max=40"`
	TrackingType   string `json:"trackingType" validate:"omitempty,oneof=container booking bol"`
	ForceRefresh   bool   `json:"forceRefresh"`
}

type batchRequest struct {
	Queries             []batchQuery `json:"queries" validate:"required,min=1,max=50,dive"`
	CostOptimize        bool         `json:"costOptimize"`
	ReliabilityOptimize bool         `json:"reliabilityOptimize"`
	UserTier            string       `json:"userTier" validate:"omitempty,oneof=free premium enterprise"`
}

// Batch answers POST /v1/track/batch. Each query settles independently: the
// response carries a per-query outcome, never a batch-wide failure.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tracking service not configured", nil)
		return
	}
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	queries := make([]provider.Query, 0, len(req.Queries))
	for _, q := range req.Queries {
		queries = append(queries, provider.Query{
			TrackingNumber: strings.TrimSpace(q.TrackingNumber),
			Type:           provider.ParseTrackingType(q.TrackingType),
			ForceRefresh:   q.ForceRefresh,
		})
	}
	items := h.Svc.TrackBatch(r.Context(), queries, Options{
		CostOptimize:        req.CostOptimize,
		ReliabilityOptimize: req.ReliabilityOptimize,
		UserTier:            router.Tier(req.UserTier),
	})

	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		entry := map[string]any{
			"trackingNumber": item.Query.TrackingNumber,
			"trackingType":   string(item.Query.Type),
		}
		if item.Err != nil {
			entry["error"] = errorBody(item.Err)
		} else {
			entry["data"] = item.Result.Shipment
			entry["meta"] = resultMeta(item.Result)
		}
		payload = append(payload, entry)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payload})
}

// Invalidate answers DELETE /v1/track.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tracking service not configured", nil)
		return
	}
	number := strings.TrimSpace(r.URL.Query().Get("number"))
	if number == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "number is required", nil)
		return
	}
	trackingType := provider.ParseTrackingType(strings.TrimSpace(r.URL.Query().Get("type")))
	if err := h.Svc.Invalidate(r.Context(), number, trackingType); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to invalidate cache entry", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func resultMeta(result Result) map[string]any {
	meta := map[string]any{
		"fromCache":  result.FromCache,
		"stale":      result.Stale,
		"ageMinutes": result.AgeMinutes,
	}
	if result.DataAge != "" {
		meta["dataAge"] = result.DataAge
	}
	if result.Strategy != "" {
		meta["strategy"] = string(result.Strategy)
	}
	return meta
}

func errorBody(err error) common.ErrorBody {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return common.ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}
	return common.ErrorBody{Code: "INTERNAL", Message: "failed to retrieve tracking data"}
}

func writeTrackingError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to retrieve tracking data", nil)
}

func parseBoolParam(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
