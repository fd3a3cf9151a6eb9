package payment_test

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aqualife-vn/backend-aqualife/internal/payment"
)

var vnpayTestNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func vnpayTestAdapter() payment.Vnpay {
	return payment.Vnpay{
		Config: payment.VnpayConfig{
			TmnCode:    "AQUA0001",
			HashSecret: "vnpay-secret",
			BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL:  "https://shop.example/vnpay/return",
		},
		Now: func() time.Time { return vnpayTestNow },
	}
}

func TestVnpayCreatePaymentBuildsSignedURL(t *testing.T) {
	artifact, err := vnpayTestAdapter().CreatePayment(context.Background(), payment.CheckoutRequest{
		PayerName:  "Trần Thị B",
		PayerPhone: "0911222333",
		PayerEmail: "b@example.com",
		Amount:     250000,
		OrderNote:  "Thanh toan ho ca",
		ClientIP:   "203.0.113.7",
	})
	require.NoError(t, err)
	require.Equal(t, payment.MethodVnpay, artifact.Method)
	require.True(t, strings.HasPrefix(artifact.PayURL, "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?"))

	parsed, err := url.Parse(artifact.PayURL)
	require.NoError(t, err)
	query := parsed.Query()

	require.Equal(t, "25000000", query.Get("vnp_Amount"), "whole VND scaled to minor units")
	require.Equal(t, "VND", query.Get("vnp_CurrCode"))
	require.Equal(t, "2.1.0", query.Get("vnp_Version"))
	require.Equal(t, "pay", query.Get("vnp_Command"))
	require.Equal(t, "AQUA0001", query.Get("vnp_TmnCode"))
	require.Equal(t, "billpayment", query.Get("vnp_OrderType"))
	require.Equal(t, "vn", query.Get("vnp_Locale"))
	require.Equal(t, "203.0.113.7", query.Get("vnp_IpAddr"))
	require.Equal(t, artifact.OrderID, query.Get("vnp_TxnRef"))
	require.NotEmpty(t, query.Get("vnp_SecureHash"))
}

func TestVnpaySecureHashRecomputes(t *testing.T) {
	artifact, err := vnpayTestAdapter().CreatePayment(context.Background(), payment.CheckoutRequest{
		PayerName:  "C",
		PayerPhone: "0900000000",
		PayerEmail: "c@example.com",
		Amount:     99000,
	})
	require.NoError(t, err)

	parsed, err := url.Parse(artifact.PayURL)
	require.NoError(t, err)
	query := parsed.Query()
	received := query.Get("vnp_SecureHash")
	require.Len(t, received, 128)

	keys := make([]string, 0, len(query))
	for key := range query {
		if key == "vnp_SecureHash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+query.Get(key))
	}
	expected, err := payment.Sign(strings.Join(pairs, "&"), "vnpay-secret", payment.AlgorithmHmacSHA512)
	require.NoError(t, err)
	require.Equal(t, expected, received)
}

func TestVnpayTimestampsRenderInICT(t *testing.T) {
	artifact, err := vnpayTestAdapter().CreatePayment(context.Background(), payment.CheckoutRequest{
		PayerName:  "D",
		PayerPhone: "0900000001",
		PayerEmail: "d@example.com",
		Amount:     10000,
	})
	require.NoError(t, err)

	parsed, err := url.Parse(artifact.PayURL)
	require.NoError(t, err)
	query := parsed.Query()

	// 09:30 UTC is 16:30 in UTC+7.
	require.Equal(t, "20250314163000", query.Get("vnp_CreateDate"))
	require.Equal(t, "20250314164000", query.Get("vnp_ExpireDate"))
	require.Equal(t, vnpayTestNow.Add(10*time.Minute), artifact.ExpiresAt)
}

func TestVnpayMissingSecretFails(t *testing.T) {
	adapter := vnpayTestAdapter()
	adapter.Config.HashSecret = ""

	_, err := adapter.CreatePayment(context.Background(), payment.CheckoutRequest{
		PayerName:  "E",
		PayerPhone: "0900000002",
		PayerEmail: "e@example.com",
		Amount:     5000,
	})
	require.Error(t, err)
	require.Equal(t, payment.CodeCrypto, payment.CodeOf(err))
}

func TestVnpayDefaultOrderInfoAndIP(t *testing.T) {
	artifact, err := vnpayTestAdapter().CreatePayment(context.Background(), payment.CheckoutRequest{
		PayerName:  "F",
		PayerPhone: "0900000003",
		PayerEmail: "f@example.com",
		Amount:     5000,
	})
	require.NoError(t, err)

	parsed, err := url.Parse(artifact.PayURL)
	require.NoError(t, err)
	query := parsed.Query()
	require.Equal(t, "Thanh toan don hang AquaLife", query.Get("vnp_OrderInfo"))
	require.Equal(t, "127.0.0.1", query.Get("vnp_IpAddr"))
}
