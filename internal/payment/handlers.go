package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aqualife-vn/backend-aqualife/internal/common"
)

// AttemptReader loads persisted attempts for status polling.
type AttemptReader interface {
	GetAttempt(ctx context.Context, orderID string) (Attempt, error)
}

// Handler exposes the lifecycle state and attempt status over HTTP.
type Handler struct {
	Sessions *Sessions
	Attempts AttemptReader
}

// State reports the authenticated shopper's current lifecycle snapshot.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	common.JSON(w, http.StatusOK, h.Sessions.For(userID).Snapshot())
}

// Reset returns the shopper's lifecycle to Idle. Refused with 409 while a
// provider call is in flight.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	if !h.Sessions.For(userID).Reset() {
		common.JSONError(w, http.StatusConflict, "IN_FLIGHT", "a payment request is still processing", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"phase": string(PhaseIdle)})
}

// Attempt reports the settlement status of a recorded attempt.
func (h *Handler) Attempt(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Attempts == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	if _, ok := common.UserID(r.Context()); !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "orderId is required", nil)
		return
	}
	attempt, err := h.Attempts.GetAttempt(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			common.JSONError(w, http.StatusNotFound, "ATTEMPT_NOT_FOUND", "no attempt for order", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "STATUS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"orderId":   attempt.OrderID,
		"method":    attempt.Method,
		"status":    attempt.Status,
		"amount":    attempt.Amount,
		"expiresAt": attempt.ExpiresAt,
	})
}
