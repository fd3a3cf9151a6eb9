package payment

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// vnpayLocation pins timestamp rendering to UTC+7 as the gateway expects,
// regardless of the server's local zone.
var vnpayLocation = time.FixedZone("ICT", 7*60*60)

const vnpayTimeLayout = "20060102150405"

// VnpayConfig holds the terminal credentials for the VNPay gateway.
type VnpayConfig struct {
	TmnCode    string
	HashSecret string
	BaseURL    string
	ReturnURL  string
	OrderType  string
	Locale     string
}

// Vnpay implements Provider for the VNPay redirect flow. No order-creation
// call is made: the signed URL itself is the payable artifact.
type Vnpay struct {
	Config VnpayConfig
	QR     QRBuilder
	TTL    time.Duration
	Now    func() time.Time
}

// Method identifies the adapter.
func (v Vnpay) Method() Method { return MethodVnpay }

// CreatePayment signs the vnp_* parameter set and returns the redirect URL
// plus its QR rendering.
func (v Vnpay) CreatePayment(_ context.Context, req CheckoutRequest) (PayableArtifact, error) {
	now := v.now()
	txnRef := newOrderID(now)
	expiresAt := now.Add(v.ttl())

	params := v.buildParams(txnRef, req, now, expiresAt)
	signature, err := Sign(vnpayHashData(params), v.Config.HashSecret, AlgorithmHmacSHA512)
	if err != nil {
		return PayableArtifact{}, err
	}
	payURL := strings.TrimRight(v.Config.BaseURL, "?") + "?" + vnpayQuery(params) + "&vnp_SecureHash=" + signature

	return PayableArtifact{
		Method:     MethodVnpay,
		OrderID:    txnRef,
		PayURL:     payURL,
		QRImageURL: v.QR.BuildQRURL(payURL),
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}, nil
}

// buildParams assembles every signed vnp_* field. The gateway counts in
// minor units, so the whole-VND amount is multiplied by 100.
func (v Vnpay) buildParams(txnRef string, req CheckoutRequest, createdAt, expiresAt time.Time) map[string]string {
	orderInfo := strings.TrimSpace(req.OrderNote)
	if orderInfo == "" {
		orderInfo = "Thanh toan don hang AquaLife"
	}
	ip := strings.TrimSpace(req.ClientIP)
	if ip == "" {
		ip = "127.0.0.1"
	}
	orderType := strings.TrimSpace(v.Config.OrderType)
	if orderType == "" {
		orderType = "billpayment"
	}
	locale := strings.TrimSpace(v.Config.Locale)
	if locale == "" {
		locale = "vn"
	}
	return map[string]string{
		"vnp_Version":    "2.1.0",
		"vnp_Command":    "pay",
		"vnp_TmnCode":    v.Config.TmnCode,
		"vnp_Amount":     strconv.FormatInt(req.Amount*100, 10),
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     txnRef,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  orderType,
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  v.Config.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": createdAt.In(vnpayLocation).Format(vnpayTimeLayout),
		"vnp_ExpireDate": expiresAt.In(vnpayLocation).Format(vnpayTimeLayout),
	}
}

func (v Vnpay) ttl() time.Duration {
	if v.TTL > 0 {
		return v.TTL
	}
	return PaymentWindow
}

func (v Vnpay) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
