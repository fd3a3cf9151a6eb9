package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CheckoutRequest captures the checkout fields a provider needs to open a
// payment. Amounts are whole VND; the currency has no fractional unit.
type CheckoutRequest struct {
	PayerName  string `json:"payerName"`
	PayerPhone string `json:"payerPhone"`
	PayerEmail string `json:"payerEmail"`
	Amount     int64  `json:"amount"`
	OrderNote  string `json:"orderNote"`
	ClientIP   string `json:"-"`
}

// Validate enforces the checkout contract: all three contact fields present
// and a strictly positive amount. Called before any provider is touched.
func (r CheckoutRequest) Validate() error {
	if strings.TrimSpace(r.PayerName) == "" ||
		strings.TrimSpace(r.PayerPhone) == "" ||
		strings.TrimSpace(r.PayerEmail) == "" {
		return validationError(MsgMissingContact)
	}
	if r.Amount <= 0 {
		return validationError(MsgInvalidAmount)
	}
	return nil
}

// PayableArtifact is the time-bounded bundle the shopper uses to pay: a
// deep link or redirect URL plus a QR rendering of it.
type PayableArtifact struct {
	Method     Method    `json:"method"`
	OrderID    string    `json:"orderId,omitempty"`
	PayURL     string    `json:"payUrl,omitempty"`
	QRImageURL string    `json:"qrImageUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired reports whether the payment window has closed.
func (a PayableArtifact) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// Provider builds a provider-specific signed payment request from a generic
// checkout intent and normalises the outcome into a PayableArtifact.
type Provider interface {
	Method() Method
	CreatePayment(ctx context.Context, req CheckoutRequest) (PayableArtifact, error)
}

// PaymentWindow is the user-facing TTL applied to artifacts from both
// gateways. Distinct from the outbound network timeout.
const PaymentWindow = 10 * time.Minute

// newOrderID issues a distinct order/request token. The millisecond prefix
// keeps tokens roughly sortable; the random suffix prevents collisions under
// rapid repeat submission.
func newOrderID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
