package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aqualife-vn/backend-aqualife/internal/payment"
)

// CartReader is the collaborator supplying the payable total for the
// shopper's cart.
type CartReader interface {
	TotalAmount(ctx context.Context, userID string) (int64, error)
}

// PayInput carries the checkout form fields collected by the app.
type PayInput struct {
	Method     string `json:"method" validate:"required"`
	PayerName  string `json:"payerName"`
	PayerPhone string `json:"payerPhone"`
	PayerEmail string `json:"payerEmail"`
	Note       string `json:"note"`
}

// ErrEmptyCart is returned when the cart has nothing to pay for.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// ErrUnknownMethod is returned for a method outside the closed set.
var ErrUnknownMethod = errors.New("checkout: unknown payment method")

// Service assembles a checkout request from the collaborators and drives
// the shopper's payment lifecycle.
type Service struct {
	Cart     CartReader
	Sessions *payment.Sessions
	Logger   zerolog.Logger
}

// Pay resolves the cart total, builds the checkout request and initiates
// the payment. The returned state is the lifecycle's observable value once
// the provider call settles.
func (s *Service) Pay(ctx context.Context, userID, clientIP string, in PayInput) (payment.State, error) {
	if s == nil || s.Sessions == nil {
		return payment.State{}, errors.New("checkout: service not configured")
	}
	method, ok := payment.ParseMethod(in.Method)
	if !ok {
		return payment.State{}, fmt.Errorf("%w: %q", ErrUnknownMethod, in.Method)
	}
	var amount int64
	if s.Cart != nil {
		total, err := s.Cart.TotalAmount(ctx, userID)
		if err != nil {
			return payment.State{}, fmt.Errorf("checkout: resolve cart total: %w", err)
		}
		amount = total
	}
	if amount <= 0 {
		return payment.State{}, ErrEmptyCart
	}
	req := payment.CheckoutRequest{
		PayerName:  strings.TrimSpace(in.PayerName),
		PayerPhone: strings.TrimSpace(in.PayerPhone),
		PayerEmail: strings.TrimSpace(in.PayerEmail),
		Amount:     amount,
		OrderNote:  strings.TrimSpace(in.Note),
		ClientIP:   clientIP,
	}
	state := s.Sessions.For(userID).Initiate(ctx, req, method)
	s.Logger.Debug().
		Str("user_id", userID).
		Str("method", string(method)).
		Str("phase", string(state.Phase)).
		Msg("checkout pay")
	return state, nil
}
