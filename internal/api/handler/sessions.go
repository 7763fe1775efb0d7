package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/botforgehq/botforge/internal/api/middleware"
	"github.com/botforgehq/botforge/internal/api/response"
	"github.com/botforgehq/botforge/internal/domain"
	"github.com/botforgehq/botforge/internal/service"
	"github.com/botforgehq/botforge/internal/tracking"
)

// SessionHandler serves live and persisted session views
type SessionHandler struct {
	tracker      *tracking.Tracker
	statsService *service.StatsService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(tracker *tracking.Tracker, statsService *service.StatsService) *SessionHandler {
	return &SessionHandler{
		tracker:      tracker,
		statsService: statsService,
	}
}

// ListActive returns the tenant's currently active in-memory sessions
func (h *SessionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sessions := h.tracker.ActiveSessions(tenantID)

	response.OK(w, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// ListRecent returns the tenant's most recently started persisted sessions
func (h *SessionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := h.statsService.ListRecentSessions(r.Context(), tenantID, limit)
	if err != nil {
		response.InternalError(w, "failed to list sessions")
		return
	}

	response.OK(w, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Get returns one persisted session by ID
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	session, err := h.statsService.GetSession(r.Context(), tenantID, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "session not found")
			return
		}
		response.InternalError(w, "failed to get session")
		return
	}

	response.OK(w, session)
}
