package handler

import (
	"errors"
	"net/http"
	"strings"

	"careerguide/internal/api/v1/dto"
	"careerguide/internal/entitlement"
	"careerguide/internal/middleware"
	"careerguide/internal/model"
	"careerguide/internal/service"

	"github.com/rs/zerolog"
)

// EntitlementHandler serves the user's subscription state and feature checks.
type EntitlementHandler struct {
	entSvc service.EntitlementService
	paySvc service.PaymentService
	logger zerolog.Logger
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(entSvc service.EntitlementService, paySvc service.PaymentService, logger zerolog.Logger) *EntitlementHandler {
	return &EntitlementHandler{entSvc: entSvc, paySvc: paySvc, logger: logger}
}

// RegisterRoutes registers the entitlement endpoints.
func (h *EntitlementHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/entitlements", authMw(http.HandlerFunc(h.GetEntitlements)))
	mux.Handle("/entitlements/invalidate", authMw(http.HandlerFunc(h.Invalidate)))
	mux.Handle("/features/", authMw(http.HandlerFunc(h.GetFeature)))
	mux.Handle("/logout", authMw(http.HandlerFunc(h.Logout)))
}

func toEntitlementDTO(st entitlement.State) dto.EntitlementResponseDTO {
	tier := st.Tier()
	res := dto.EntitlementResponseDTO{
		Tier:            tier,
		TierDisplayName: entitlement.TierDisplayName(tier),
		IsPremium:       st.IsPremium(),
		PremiumSignals: dto.PremiumSignalsDTO{
			ServerFlag:     st.Plan.FlagPremium,
			PlanName:       st.Plan.NamePremium,
			Disagree:       st.Plan.Disagree(),
			PlanRecognized: st.Plan.Recognized,
		},
		EnabledFeatures: entitlement.FeatureAccess(tier).EnabledFeatures,
		Subscription:    st.Snapshot,
		Loading:         st.Loading,
		Error:           st.Err,
	}
	if st.Snapshot != nil {
		res.PlanName = st.Snapshot.PlanName
	}
	if !st.FetchedAt.IsZero() {
		t := st.FetchedAt
		res.FetchedAt = &t
	}
	return res
}

// GetEntitlements godoc
// @Summary Get the user's entitlements
// @Description Returns the cached subscription snapshot, derived tier and enabled features. A failed refresh is reported in the error field.
// @Tags entitlements
// @Produce json
// @Param force query bool false "Bypass the freshness window"
// @Success 200 {object} dto.EntitlementResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /entitlements [get]
func (h *EntitlementHandler) GetEntitlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, token, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	force := r.URL.Query().Get("force") == "true"
	st := h.entSvc.State(r.Context(), userID, token, force)
	writeJSON(w, h.logger, http.StatusOK, toEntitlementDTO(st))
}

// Invalidate godoc
// @Summary Drop and refetch the user's entitlements
// @Description Clears the cached snapshot, fetches it again and notifies other gateway instances.
// @Tags entitlements
// @Produce json
// @Success 200 {object} dto.EntitlementResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /entitlements/invalidate [post]
func (h *EntitlementHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, token, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	st := h.entSvc.Refresh(r.Context(), userID, token)
	writeJSON(w, h.logger, http.StatusOK, toEntitlementDTO(st))
}

// GetFeature godoc
// @Summary Check a gated feature
// @Description Reports whether the user's tier includes the feature, the lowest tier that does, and whether an upgrade is possible.
// @Tags entitlements
// @Produce json
// @Param feature path string true "Feature name"
// @Success 200 {object} model.FeatureCheck
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "unknown feature"
// @Router /features/{feature} [get]
func (h *EntitlementHandler) GetFeature(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, token, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	feature := strings.Trim(strings.TrimPrefix(r.URL.Path, "/features/"), "/")
	if feature == "" {
		http.Error(w, "feature is required", http.StatusBadRequest)
		return
	}
	res, err := h.entSvc.Feature(r.Context(), userID, token, model.Feature(feature))
	if errors.Is(err, service.ErrUnknownFeature) {
		http.Error(w, "unknown feature", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to check feature")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

// Logout godoc
// @Summary Forget the user's cached state
// @Description Drops the entitlement cache and the pending payment order for the user.
// @Tags entitlements
// @Success 204
// @Failure 401 {string} string "unauthorized"
// @Router /logout [post]
func (h *EntitlementHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, _, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.entSvc.Forget(userID)
	if err := h.paySvc.Forget(r.Context(), userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to clear pending order on logout")
	}
	w.WriteHeader(http.StatusNoContent)
}
