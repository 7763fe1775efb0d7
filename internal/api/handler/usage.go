package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/botforgehq/botforge/internal/api/middleware"
	"github.com/botforgehq/botforge/internal/api/response"
	"github.com/botforgehq/botforge/internal/service"
)

// UsageHandler serves aggregated usage statistics
type UsageHandler struct {
	statsService *service.StatsService
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(statsService *service.StatsService) *UsageHandler {
	return &UsageHandler{statsService: statsService}
}

// since parses an optional RFC 3339 "since" query parameter
func since(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// TenantUsage returns usage aggregates for the whole tenant
func (h *UsageHandler) TenantUsage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	from, ok := since(r)
	if !ok {
		response.BadRequest(w, "invalid since timestamp, expected RFC 3339")
		return
	}

	stats, err := h.statsService.TenantUsage(r.Context(), tenantID, from)
	if err != nil {
		response.InternalError(w, "failed to get usage")
		return
	}

	response.OK(w, stats)
}

// UserUsage returns usage aggregates for one user within the tenant
func (h *UsageHandler) UserUsage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		response.BadRequest(w, "missing user ID")
		return
	}

	from, ok := since(r)
	if !ok {
		response.BadRequest(w, "invalid since timestamp, expected RFC 3339")
		return
	}

	stats, err := h.statsService.UserUsage(r.Context(), tenantID, userID, from)
	if err != nil {
		response.InternalError(w, "failed to get usage")
		return
	}

	response.OK(w, stats)
}
