package payment

import "strings"

// Method identifies a payment channel offered at checkout.
type Method string

const (
	MethodMomo  Method = "MOMO"
	MethodVnpay Method = "VNPAY"
	MethodBank  Method = "BANK"
)

// Label returns the display name shown to the shopper.
func (m Method) Label() string {
	switch m {
	case MethodMomo:
		return "Ví MoMo"
	case MethodVnpay:
		return "VNPay"
	case MethodBank:
		return "Chuyển khoản ngân hàng"
	default:
		return string(m)
	}
}

// ParseMethod normalises a client-supplied method name.
func ParseMethod(value string) (Method, bool) {
	switch Method(strings.ToUpper(strings.TrimSpace(value))) {
	case MethodMomo:
		return MethodMomo, true
	case MethodVnpay:
		return MethodVnpay, true
	case MethodBank:
		return MethodBank, true
	default:
		return "", false
	}
}
