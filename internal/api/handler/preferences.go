package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/botforgehq/botforge/internal/api/middleware"
	"github.com/botforgehq/botforge/internal/api/response"
	"github.com/botforgehq/botforge/internal/service"
)

// PreferenceHandler handles per-user preference endpoints
type PreferenceHandler struct {
	prefService *service.PreferenceService
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(prefService *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{prefService: prefService}
}

// GetPersona returns the persona configured for a user
func (h *PreferenceHandler) GetPersona(w http.ResponseWriter, r *http.Request) {
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

	persona, err := h.prefService.GetPersona(r.Context(), tenantID, userID)
	if err != nil {
		response.InternalError(w, "failed to get persona")
		return
	}

	response.OK(w, map[string]string{
		"user_id": userID,
		"persona": persona,
	})
}

// SetPersona stores the persona choice for a user
func (h *PreferenceHandler) SetPersona(w http.ResponseWriter, r *http.Request) {
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

	var input struct {
		Persona string `json:"persona" validate:"required,max=64"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	if err := h.prefService.SetPersona(r.Context(), tenantID, userID, input.Persona); err != nil {
		if errors.Is(err, service.ErrInvalidPersona) {
			response.BadRequest(w, "invalid persona name")
			return
		}
		response.InternalError(w, "failed to set persona")
		return
	}

	response.OK(w, map[string]string{
		"user_id": userID,
		"persona": input.Persona,
	})
}
