package payment

import "context"

// Bank is the placeholder adapter for direct bank transfer. The channel is
// listed in the app but intentionally disabled.
type Bank struct{}

// Method identifies the adapter.
func (Bank) Method() Method { return MethodBank }

// CreatePayment always refuses; the transfer flow has no gateway yet.
func (Bank) CreatePayment(context.Context, CheckoutRequest) (PayableArtifact, error) {
	return PayableArtifact{}, unsupported("Phương thức chuyển khoản ngân hàng chưa được hỗ trợ.")
}
