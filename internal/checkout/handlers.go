package checkout

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/aqualife-vn/backend-aqualife/internal/common"
	"github.com/aqualife-vn/backend-aqualife/internal/payment"
)

// Handler exposes the checkout pay endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Pay initiates a payment for the authenticated shopper's cart.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "CHECKOUT_NOT_CONFIGURED", "checkout handler unavailable", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	var in PayInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "method is required", nil)
			return
		}
	}
	state, err := h.Svc.Pay(r.Context(), userID, clientIP(r), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownMethod):
			common.JSONError(w, http.StatusBadRequest, "UNKNOWN_METHOD", err.Error(), nil)
		case errors.Is(err, ErrEmptyCart):
			common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart has nothing to pay for", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "CHECKOUT_FAILED", err.Error(), nil)
		}
		return
	}
	common.JSON(w, statusFor(state), state)
}

// statusFor maps the lifecycle outcome to an HTTP status so clients can
// branch without parsing the body.
func statusFor(state payment.State) int {
	switch state.Phase {
	case payment.PhaseReady:
		return http.StatusOK
	case payment.PhaseProcessing:
		return http.StatusAccepted
	case payment.PhaseError:
		switch state.Code {
		case payment.CodeValidation:
			return http.StatusUnprocessableEntity
		case payment.CodeUnsupported:
			return http.StatusBadRequest
		case payment.CodeCrypto:
			return http.StatusInternalServerError
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusOK
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
