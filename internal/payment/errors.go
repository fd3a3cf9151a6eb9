package payment

import "errors"

// ErrorCode classifies payment failures for callers and metrics labels.
type ErrorCode string

const (
	// CodeValidation marks missing or malformed checkout input. No provider
	// call has happened when this is returned.
	CodeValidation ErrorCode = "VALIDATION"
	// CodeCrypto marks a signing failure (missing key material). Fatal for
	// the attempt; retrying cannot succeed without new configuration.
	CodeCrypto ErrorCode = "CRYPTO"
	// CodeProviderRejected marks a non-success result from the gateway.
	CodeProviderRejected ErrorCode = "PROVIDER_REJECTED"
	// CodeNetwork marks a transport-level failure talking to the gateway.
	CodeNetwork ErrorCode = "NETWORK"
	// CodeUnsupported marks a payment method without an implementation.
	CodeUnsupported ErrorCode = "UNSUPPORTED"
)

// Error carries a classification code alongside a human-readable message
// suitable for surfacing to the mobile client.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MsgMissingContact is shown when any receiver contact field is blank.
const MsgMissingContact = "Vui lòng nhập đủ thông tin người nhận."

// MsgInvalidAmount is shown when the checkout amount is not positive.
const MsgInvalidAmount = "Số tiền thanh toán không hợp lệ."

func validationError(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

func cryptoError(err error) *Error {
	return &Error{Code: CodeCrypto, Message: "không thể ký yêu cầu thanh toán", Err: err}
}

func providerRejected(message string) *Error {
	return &Error{Code: CodeProviderRejected, Message: message}
}

func networkError(err error) *Error {
	return &Error{Code: CodeNetwork, Message: "không thể kết nối cổng thanh toán, vui lòng thử lại", Err: err}
}

func unsupported(message string) *Error {
	return &Error{Code: CodeUnsupported, Message: message}
}

// CodeOf extracts the payment error code, defaulting to CodeNetwork for
// unclassified failures so the client is nudged towards retrying.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeNetwork
}
