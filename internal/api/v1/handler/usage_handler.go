package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"careerguide/internal/api/v1/dto"
	"careerguide/internal/backend"
	"careerguide/internal/middleware"
	"careerguide/internal/model"
	"careerguide/internal/service"
	"careerguide/internal/usage"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UsageHandler serves local usage estimates and access decisions.
type UsageHandler struct {
	entSvc   service.EntitlementService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(entSvc service.EntitlementService, validate *validator.Validate, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{entSvc: entSvc, validate: validate, logger: logger}
}

// RegisterRoutes registers usage and access endpoints.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/usage", authMw(http.HandlerFunc(h.ListUsage)))
	mux.Handle("/usage/", authMw(http.HandlerFunc(h.handleUsage)))
	mux.Handle("/access/check", authMw(http.HandlerFunc(h.CheckAccess)))
	mux.Handle("/access/", authMw(http.HandlerFunc(h.Decide)))
}

func meterFromPath(path, prefix string) model.Meter {
	return model.Meter(strings.Trim(strings.TrimPrefix(path, prefix), "/"))
}

func (h *UsageHandler) usageError(w http.ResponseWriter, err error) {
	if errors.Is(err, usage.ErrUnknownMeter) {
		http.Error(w, "unknown metered feature", http.StatusNotFound)
		return
	}
	h.logger.Error().Err(err).Msg("usage store failure")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// ListUsage godoc
// @Summary List local usage estimates
// @Description Returns this month's local estimate for every metered feature. Estimates are not authoritative.
// @Tags usage
// @Produce json
// @Success 200 {object} dto.UsageSummaryDTO
// @Failure 401 {string} string "unauthorized"
// @Router /usage [get]
func (h *UsageHandler) ListUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, token, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	tier, items, err := h.entSvc.UsageSummary(r.Context(), userID, token)
	if err != nil {
		h.usageError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.UsageSummaryDTO{Tier: tier, Items: items})
}

func (h *UsageHandler) handleUsage(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetUsage(w, r)
	case http.MethodPost:
		h.RecordUsage(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GetUsage godoc
// @Summary Get the local usage estimate for a feature
// @Tags usage
// @Produce json
// @Param feature path string true "Metered feature"
// @Success 200 {object} model.LocalUsageEstimate
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "unknown metered feature"
// @Router /usage/{feature} [get]
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	est, err := h.entSvc.Usage(r.Context(), userID, token, meterFromPath(r.URL.Path, "/usage/"))
	if err != nil {
		h.usageError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, est)
}

// RecordUsage godoc
// @Summary Record one use of a feature
// @Description Increments this month's local counter and returns the new estimate.
// @Tags usage
// @Produce json
// @Param feature path string true "Metered feature"
// @Success 200 {object} model.LocalUsageEstimate
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "unknown metered feature"
// @Router /usage/{feature} [post]
func (h *UsageHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	est, err := h.entSvc.RecordUsage(r.Context(), userID, token, meterFromPath(r.URL.Path, "/usage/"))
	if err != nil {
		h.usageError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, est)
}

// Decide godoc
// @Summary Decide locally whether a metered feature can be used
// @Description Uses server-reported usage when the snapshot has it, otherwise the local estimate (authoritative=false).
// @Tags access
// @Produce json
// @Param feature path string true "Metered feature"
// @Success 200 {object} model.AccessDecision
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "unknown metered feature"
// @Router /access/{feature} [get]
func (h *UsageHandler) Decide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, token, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	d, err := h.entSvc.Decide(r.Context(), userID, token, meterFromPath(r.URL.Path, "/access/"))
	if err != nil {
		h.usageError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, d)
}

// CheckAccess godoc
// @Summary Ask the backend whether a feature can be used
// @Tags access
// @Accept json
// @Produce json
// @Param request body dto.AccessCheckRequestDTO true "Feature and optional level"
// @Success 200 {object} model.RemoteAccessCheck
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 502 {string} string "backend unavailable"
// @Router /access/check [post]
func (h *UsageHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, token, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.AccessCheckRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.entSvc.CheckAccess(r.Context(), token, req.FeatureType, req.Level)
	if backend.IsStatus(err, http.StatusUnauthorized) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, "backend unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}
