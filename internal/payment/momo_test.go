package payment_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aqualife-vn/backend-aqualife/internal/payment"
	"github.com/aqualife-vn/backend-aqualife/internal/resilience"
)

var momoTestNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func momoTestConfig(endpoint string) payment.MomoConfig {
	return payment.MomoConfig{
		PartnerCode: "AQUAPARTNER",
		PartnerName: "AquaLife",
		StoreID:     "AquaLifeStore",
		AccessKey:   "access-key",
		SecretKey:   "secret-key",
		Endpoint:    endpoint,
		RedirectURL: "https://shop.example/return",
		IpnURL:      "https://shop.example/ipn",
		Mode:        payment.MomoModeAPI,
	}
}

func momoTestRequest() payment.CheckoutRequest {
	return payment.CheckoutRequest{
		PayerName:  "Nguyễn Văn A",
		PayerPhone: "0909123456",
		PayerEmail: "a@example.com",
		Amount:     150000,
		OrderNote:  "Mua cá betta",
	}
}

func testHTTPClient(client *http.Client) *resilience.HTTPClient {
	return &resilience.HTTPClient{
		Client:      client,
		MaxAttempts: 1,
		Timeout:     time.Second,
	}
}

func TestMomoCreatePaymentSignsCreateOrder(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(body, &decoded))
		received <- decoded
		_ = json.NewEncoder(w).Encode(map[string]any{
			"resultCode": 0,
			"payUrl":     "https://pay.momo.vn/order/abc",
			"qrCodeUrl":  "https://pay.momo.vn/qr/abc",
		})
	}))
	t.Cleanup(srv.Close)

	adapter := payment.Momo{
		Config: momoTestConfig(srv.URL),
		HTTP:   testHTTPClient(srv.Client()),
		Now:    func() time.Time { return momoTestNow },
	}
	artifact, err := adapter.CreatePayment(context.Background(), momoTestRequest())
	require.NoError(t, err)
	require.Equal(t, payment.MethodMomo, artifact.Method)
	require.Equal(t, "https://pay.momo.vn/order/abc", artifact.PayURL)
	require.Equal(t, "https://pay.momo.vn/qr/abc", artifact.QRImageURL)
	require.Equal(t, momoTestNow, artifact.CreatedAt)
	require.Equal(t, 10*time.Minute, artifact.ExpiresAt.Sub(artifact.CreatedAt))

	body := <-received
	require.Equal(t, "150000", body["amount"], "amount travels as a string")
	require.Equal(t, "vi", body["lang"])
	require.Equal(t, true, body["autoCapture"])
	require.Equal(t, body["orderId"], body["requestId"])
	require.Equal(t, "captureWallet", body["requestType"])

	canonical := strings.Join([]string{
		"accessKey=access-key",
		"amount=" + body["amount"].(string),
		"extraData=" + body["extraData"].(string),
		"ipnUrl=https://shop.example/ipn",
		"orderId=" + body["orderId"].(string),
		"orderInfo=" + body["orderInfo"].(string),
		"partnerCode=AQUAPARTNER",
		"redirectUrl=https://shop.example/return",
		"requestId=" + body["requestId"].(string),
		"requestType=captureWallet",
	}, "&")
	expected, err := payment.Sign(canonical, "secret-key", payment.AlgorithmHmacSHA256)
	require.NoError(t, err)
	require.Equal(t, expected, body["signature"])
}

func TestMomoExtraDataCarriesReceiverContact(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var decoded struct {
			ExtraData string `json:"extraData"`
		}
		require.NoError(t, json.Unmarshal(body, &decoded))
		received <- decoded.ExtraData
		_ = json.NewEncoder(w).Encode(map[string]any{"resultCode": 0, "payUrl": "https://pay.momo.vn/x"})
	}))
	t.Cleanup(srv.Close)

	adapter := payment.Momo{Config: momoTestConfig(srv.URL), HTTP: testHTTPClient(srv.Client())}
	_, err := adapter.CreatePayment(context.Background(), momoTestRequest())
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(<-received)
	require.NoError(t, err)
	values, err := url.ParseQuery(string(raw))
	require.NoError(t, err)
	require.Equal(t, "Nguyễn Văn A", values.Get("name"))
	require.Equal(t, "0909123456", values.Get("phone"))
	require.Equal(t, "a@example.com", values.Get("email"))
}

func TestMomoCreatePaymentGatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"resultCode": 41, "message": "duplicate orderId"})
	}))
	t.Cleanup(srv.Close)

	adapter := payment.Momo{Config: momoTestConfig(srv.URL), HTTP: testHTTPClient(srv.Client())}
	_, err := adapter.CreatePayment(context.Background(), momoTestRequest())
	require.Error(t, err)
	require.Equal(t, payment.CodeProviderRejected, payment.CodeOf(err))
	require.Contains(t, err.Error(), "duplicate orderId")
}

func TestMomoCreatePaymentNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // refuse connections

	adapter := payment.Momo{Config: momoTestConfig(srv.URL), HTTP: testHTTPClient(http.DefaultClient)}
	_, err := adapter.CreatePayment(context.Background(), momoTestRequest())
	require.Error(t, err)
	require.Equal(t, payment.CodeNetwork, payment.CodeOf(err))
}

func TestMomoDeeplinkModeSkipsGateway(t *testing.T) {
	cfg := momoTestConfig("http://unreachable.invalid")
	cfg.Mode = payment.MomoModeDeeplink
	cfg.StorePhone = "0912345678"

	adapter := payment.Momo{
		Config: cfg,
		Now:    func() time.Time { return momoTestNow },
	}
	artifact, err := adapter.CreatePayment(context.Background(), momoTestRequest())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(artifact.PayURL, "momo://transfer?phone=0912345678&amount=150000&note="))
	require.NotEmpty(t, artifact.QRImageURL)
	require.Equal(t, momoTestNow.Add(10*time.Minute), artifact.ExpiresAt)
}

func TestMomoMissingSecretFailsBeforeNetwork(t *testing.T) {
	cfg := momoTestConfig("http://unreachable.invalid")
	cfg.SecretKey = ""

	adapter := payment.Momo{Config: cfg, HTTP: testHTTPClient(http.DefaultClient)}
	_, err := adapter.CreatePayment(context.Background(), momoTestRequest())
	require.Error(t, err)
	require.Equal(t, payment.CodeCrypto, payment.CodeOf(err))
}
