package payment

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aqualife-vn/backend-aqualife/internal/common"
	"github.com/aqualife-vn/backend-aqualife/internal/obs"
)

// Settler moves a recorded attempt to a terminal status.
type Settler interface {
	Settle(ctx context.Context, orderID string, status AttemptStatus, reason string, at time.Time) error
}

// Webhook verifies and settles provider callbacks. Both gateways retry
// deliveries, so processing is guarded by a Redis replay key and the
// settlement itself is idempotent.
type Webhook struct {
	Settler   Settler
	Momo      MomoConfig
	Vnpay     VnpayConfig
	Replay    *redis.Client
	ReplayTTL time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

// momoIPN mirrors the gateway's result notification body.
type momoIPN struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// HandleMomoIPN processes the MoMo result notification. The gateway expects
// 204 on acceptance and retries otherwise.
func (h Webhook) HandleMomoIPN(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.count("momo", "bad_body")
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	var ipn momoIPN
	if err := json.Unmarshal(body, &ipn); err != nil {
		h.count("momo", "bad_body")
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed notification", nil)
		return
	}
	expected, err := Sign(momoIPNSignatureBase(h.Momo.AccessKey, ipn), h.Momo.SecretKey, AlgorithmHmacSHA256)
	if err != nil || !hmacEqualFold(expected, ipn.Signature) {
		h.count("momo", "invalid_signature")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if replayed, err := h.replayed(r.Context(), "momo", common.Sha256Hex(string(body))); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
		return
	} else if replayed {
		h.count("momo", "replay")
		common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate notification", nil)
		return
	}

	status := AttemptPaid
	reason := ""
	if ipn.ResultCode != 0 {
		status = AttemptFailed
		reason = fmt.Sprintf("momo result %d: %s", ipn.ResultCode, ipn.Message)
	}
	if err := h.settle(r.Context(), ipn.OrderID, status, reason); err != nil {
		h.count("momo", "settle_error")
		common.JSONError(w, http.StatusInternalServerError, "SETTLE_ERROR", err.Error(), nil)
		return
	}
	h.count("momo", strings.ToLower(string(status)))
	h.Logger.Info().
		Str("order_id", ipn.OrderID).
		Int("result_code", ipn.ResultCode).
		Int64("trans_id", ipn.TransID).
		Msg("momo ipn settled")
	w.WriteHeader(http.StatusNoContent)
}

// HandleVnpayReturn processes the VNPay IPN/return call. Responses follow
// the gateway's RspCode contract so it stops retrying once confirmed.
func (h Webhook) HandleVnpayReturn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	received := query.Get("vnp_SecureHash")

	params := make(map[string]string)
	for key := range query {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if strings.HasPrefix(key, "vnp_") {
			params[key] = query.Get(key)
		}
	}
	expected, err := Sign(vnpayHashData(params), h.Vnpay.HashSecret, AlgorithmHmacSHA512)
	if err != nil || !hmacEqualFold(expected, received) {
		h.count("vnpay", "invalid_signature")
		common.JSON(w, http.StatusOK, map[string]string{"RspCode": "97", "Message": "Invalid signature"})
		return
	}
	txnRef := params["vnp_TxnRef"]
	if txnRef == "" {
		h.count("vnpay", "bad_body")
		common.JSON(w, http.StatusOK, map[string]string{"RspCode": "01", "Message": "Order not found"})
		return
	}
	if replayed, err := h.replayed(r.Context(), "vnpay", common.Sha256Hex(vnpayHashData(params))); err != nil {
		common.JSON(w, http.StatusOK, map[string]string{"RspCode": "99", "Message": "Unknown error"})
		return
	} else if replayed {
		h.count("vnpay", "replay")
		common.JSON(w, http.StatusOK, map[string]string{"RspCode": "02", "Message": "Order already confirmed"})
		return
	}

	status := AttemptPaid
	reason := ""
	if code := params["vnp_ResponseCode"]; code != "00" {
		status = AttemptFailed
		reason = "vnpay response " + code
	}
	if err := h.settle(r.Context(), txnRef, status, reason); err != nil {
		h.count("vnpay", "settle_error")
		common.JSON(w, http.StatusOK, map[string]string{"RspCode": "99", "Message": "Unknown error"})
		return
	}
	h.count("vnpay", strings.ToLower(string(status)))
	h.Logger.Info().
		Str("txn_ref", txnRef).
		Str("response_code", params["vnp_ResponseCode"]).
		Msg("vnpay callback settled")
	common.JSON(w, http.StatusOK, map[string]string{"RspCode": "00", "Message": "Confirm Success"})
}

func (h Webhook) settle(ctx context.Context, orderID string, status AttemptStatus, reason string) error {
	if h.Settler == nil {
		return nil
	}
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	return h.Settler.Settle(ctx, orderID, status, reason, now)
}

func (h Webhook) replayed(ctx context.Context, provider, digest string) (bool, error) {
	if h.Replay == nil || h.ReplayTTL <= 0 {
		return false, nil
	}
	key := fmt.Sprintf("wh:%s:%s", provider, digest)
	ok, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (h Webhook) count(provider, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}

// momoIPNSignatureBase builds the canonical string the gateway signs its
// notifications with. Field order is pinned by the provider.
func momoIPNSignatureBase(accessKey string, ipn momoIPN) string {
	parts := []string{
		"accessKey=" + accessKey,
		"amount=" + strconv.FormatInt(ipn.Amount, 10),
		"extraData=" + ipn.ExtraData,
		"message=" + ipn.Message,
		"orderId=" + ipn.OrderID,
		"orderInfo=" + ipn.OrderInfo,
		"orderType=" + ipn.OrderType,
		"partnerCode=" + ipn.PartnerCode,
		"payType=" + ipn.PayType,
		"requestId=" + ipn.RequestID,
		"responseTime=" + strconv.FormatInt(ipn.ResponseTime, 10),
		"resultCode=" + strconv.Itoa(ipn.ResultCode),
		"transId=" + strconv.FormatInt(ipn.TransID, 10),
	}
	return strings.Join(parts, "&")
}

func hmacEqualFold(expected, received string) bool {
	if expected == "" || received == "" {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(strings.TrimSpace(received))))
}
