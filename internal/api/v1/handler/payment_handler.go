package handler

import (
	"encoding/json"
	"net/http"

	"careerguide/internal/api/v1/dto"
	"careerguide/internal/middleware"
	"careerguide/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PaymentHandler handles the pending order and payment return endpoints.
type PaymentHandler struct {
	paySvc   service.PaymentService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paySvc service.PaymentService, validate *validator.Validate, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{paySvc: paySvc, validate: validate, logger: logger}
}

// RegisterRoutes registers the payment endpoints.
func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/payments/pending", authMw(http.HandlerFunc(h.SetPending)))
	mux.Handle("/payments/return", authMw(http.HandlerFunc(h.Return)))
}

// SetPending godoc
// @Summary Remember the order being paid
// @Description Stores the order ID before the user is sent to the payment gateway.
// @Tags payments
// @Accept json
// @Param request body dto.PendingOrderRequestDTO true "Pending order"
// @Success 204
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to save pending order"
// @Router /payments/pending [post]
func (h *PaymentHandler) SetPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, _, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.PendingOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.paySvc.SetPending(r.Context(), userID, req.OrderID); err != nil {
		http.Error(w, "failed to save pending order", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Return godoc
// @Summary Resolve the payment return
// @Description Polls the order named in the query, or the stored pending order, until it reaches a terminal status. Timeouts and missing orders are reported as failed.
// @Tags payments
// @Produce json
// @Param order_id query string false "Order ID from the gateway redirect"
// @Success 200 {object} model.PaymentOutcome
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to check payment status"
// @Router /payments/return [get]
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, token, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	outcome, err := h.paySvc.Return(r.Context(), userID, token, r.URL.Query().Get("order_id"))
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away.
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to check payment status")
		http.Error(w, "failed to check payment status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, outcome)
}
