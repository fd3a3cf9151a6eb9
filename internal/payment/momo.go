package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aqualife-vn/backend-aqualife/internal/resilience"
)

// MomoMode selects how the adapter produces a payable artifact.
type MomoMode string

const (
	// MomoModeAPI calls the gateway's create-order endpoint.
	MomoModeAPI MomoMode = "api"
	// MomoModeDeeplink synthesises a direct wallet-transfer deep link
	// without any network call. Used when the partner account cannot
	// reach the gateway (offline demo / degraded operation).
	MomoModeDeeplink MomoMode = "deeplink"
)

// MomoConfig holds the partner credentials and endpoints for the MoMo
// gateway. Secrets are injected from the environment, never hardcoded.
type MomoConfig struct {
	PartnerCode string
	PartnerName string
	StoreID     string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	RedirectURL string
	IpnURL      string
	RequestType string
	// StorePhone receives direct transfers in deeplink mode.
	StorePhone string
	Mode       MomoMode
}

// Momo implements Provider for the MoMo wallet.
type Momo struct {
	Config MomoConfig
	HTTP   *resilience.HTTPClient
	QR     QRBuilder
	TTL    time.Duration
	Now    func() time.Time
}

// Method identifies the adapter.
func (m Momo) Method() Method { return MethodMomo }

// CreatePayment builds and signs a create-order request, submits it (or
// synthesises a transfer deep link) and wraps the result with the payment
// window.
func (m Momo) CreatePayment(ctx context.Context, req CheckoutRequest) (PayableArtifact, error) {
	now := m.now()
	orderID := newOrderID(now)

	if m.Config.Mode == MomoModeDeeplink {
		return m.deeplinkArtifact(orderID, req, now), nil
	}
	return m.apiArtifact(ctx, orderID, req, now)
}

// momoCreateOrderRequest mirrors the gateway's JSON body. Amount is a
// string per the wire contract even though it is numeric.
type momoCreateOrderRequest struct {
	PartnerCode string `json:"partnerCode"`
	PartnerName string `json:"partnerName"`
	StoreID     string `json:"storeId"`
	RequestID   string `json:"requestId"`
	Amount      string `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	Lang        string `json:"lang"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	AutoCapture bool   `json:"autoCapture"`
	Signature   string `json:"signature"`
}

type momoCreateOrderResponse struct {
	ResultCode *int   `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	Deeplink   string `json:"deeplink"`
	QRCodeURL  string `json:"qrCodeUrl"`
}

func (m Momo) apiArtifact(ctx context.Context, orderID string, req CheckoutRequest, now time.Time) (PayableArtifact, error) {
	cfg := m.Config
	amount := strconv.FormatInt(req.Amount, 10)
	orderInfo := m.orderInfo(req)
	extraData := momoExtraData(req)

	canonical := momoSignatureBase(cfg.AccessKey, amount, extraData, cfg.IpnURL,
		orderID, orderInfo, cfg.PartnerCode, cfg.RedirectURL, orderID, m.requestType())
	signature, err := Sign(canonical, cfg.SecretKey, AlgorithmHmacSHA256)
	if err != nil {
		return PayableArtifact{}, err
	}

	body := momoCreateOrderRequest{
		PartnerCode: cfg.PartnerCode,
		PartnerName: cfg.PartnerName,
		StoreID:     cfg.StoreID,
		RequestID:   orderID,
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   orderInfo,
		RedirectURL: cfg.RedirectURL,
		IpnURL:      cfg.IpnURL,
		Lang:        "vi",
		ExtraData:   extraData,
		RequestType: m.requestType(),
		AutoCapture: true,
		Signature:   signature,
	}
	resp, err := m.postCreateOrder(ctx, body)
	if err != nil {
		return PayableArtifact{}, err
	}
	if resp.ResultCode != nil && *resp.ResultCode != 0 {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = fmt.Sprintf("gateway rejected order with code %d", *resp.ResultCode)
		}
		return PayableArtifact{}, providerRejected(msg)
	}
	payURL := strings.TrimSpace(resp.PayURL)
	if payURL == "" {
		payURL = strings.TrimSpace(resp.Deeplink)
	}
	if payURL == "" {
		return PayableArtifact{}, providerRejected("gateway returned no payable URL")
	}
	qrURL := strings.TrimSpace(resp.QRCodeURL)
	if qrURL == "" {
		qrURL = m.QR.BuildQRURL(payURL)
	}
	return PayableArtifact{
		Method:     MethodMomo,
		OrderID:    orderID,
		PayURL:     payURL,
		QRImageURL: qrURL,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl()),
	}, nil
}

func (m Momo) postCreateOrder(ctx context.Context, body momoCreateOrderRequest) (momoCreateOrderResponse, error) {
	var out momoCreateOrderResponse
	payload, err := json.Marshal(body)
	if err != nil {
		return out, networkError(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return out, networkError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.HTTP == nil {
		return out, networkError(fmt.Errorf("momo: http client not configured"))
	}
	httpResp, err := m.HTTP.Do(ctx, httpReq)
	if err != nil {
		return out, networkError(err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return out, networkError(err)
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return out, providerRejected(fmt.Sprintf("gateway responded %s", httpResp.Status))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, providerRejected("gateway returned an unreadable response")
	}
	return out, nil
}

// deeplinkArtifact builds the direct-transfer fallback:
// momo://transfer?phone=..&amount=..&note=.. rendered as a QR code.
func (m Momo) deeplinkArtifact(orderID string, req CheckoutRequest, now time.Time) PayableArtifact {
	deeplink := fmt.Sprintf("momo://transfer?phone=%s&amount=%d&note=%s",
		m.Config.StorePhone, req.Amount, url.QueryEscape(m.orderInfo(req)))
	return PayableArtifact{
		Method:     MethodMomo,
		OrderID:    orderID,
		PayURL:     deeplink,
		QRImageURL: m.QR.BuildQRURL(deeplink),
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl()),
	}
}

func (m Momo) orderInfo(req CheckoutRequest) string {
	note := strings.TrimSpace(req.OrderNote)
	if note == "" {
		note = "Thanh toan don hang AquaLife"
	}
	return note
}

func (m Momo) requestType() string {
	if v := strings.TrimSpace(m.Config.RequestType); v != "" {
		return v
	}
	return "captureWallet"
}

func (m Momo) ttl() time.Duration {
	if m.TTL > 0 {
		return m.TTL
	}
	return PaymentWindow
}

func (m Momo) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// momoExtraData encodes the receiver contact blob the app unwraps after
// redirect: percent-encoded name/phone/email pairs, base64 wrapped.
func momoExtraData(req CheckoutRequest) string {
	blob := fmt.Sprintf("name=%s&phone=%s&email=%s",
		url.QueryEscape(req.PayerName),
		url.QueryEscape(req.PayerPhone),
		url.QueryEscape(req.PayerEmail))
	return base64.StdEncoding.EncodeToString([]byte(blob))
}

// momoSignatureBase concatenates the exact field order the gateway hashes.
// Reordering any pair invalidates the signature contract.
func momoSignatureBase(accessKey, amount, extraData, ipnURL, orderID, orderInfo, partnerCode, redirectURL, requestID, requestType string) string {
	parts := []string{
		"accessKey=" + accessKey,
		"amount=" + amount,
		"extraData=" + extraData,
		"ipnUrl=" + ipnURL,
		"orderId=" + orderID,
		"orderInfo=" + orderInfo,
		"partnerCode=" + partnerCode,
		"redirectUrl=" + redirectURL,
		"requestId=" + requestID,
		"requestType=" + requestType,
	}
	return strings.Join(parts, "&")
}
