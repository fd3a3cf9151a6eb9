package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aqualife-vn/backend-aqualife/internal/common"
	"github.com/aqualife-vn/backend-aqualife/internal/payment"
)

type fakeAttemptReader struct {
	attempts map[string]payment.Attempt
}

func (f *fakeAttemptReader) GetAttempt(_ context.Context, orderID string) (payment.Attempt, error) {
	attempt, ok := f.attempts[orderID]
	if !ok {
		return payment.Attempt{}, payment.ErrAttemptNotFound
	}
	return attempt, nil
}

func newSessionRouter(h *payment.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/payments/state", h.State)
	r.Post("/payments/reset", h.Reset)
	r.Get("/payments/attempts/{orderId}", h.Attempt)
	return r
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(common.WithUserID(req.Context(), "user-1"))
}

func newHandlerSessions() *payment.Sessions {
	return payment.NewSessions(func() *payment.Lifecycle {
		return payment.NewLifecycle(nil, nil, zerolog.Nop())
	})
}

func TestStateStartsIdlePerUser(t *testing.T) {
	h := &payment.Handler{Sessions: newHandlerSessions()}
	rec := httptest.NewRecorder()
	newSessionRouter(h).ServeHTTP(rec, authedRequest(http.MethodGet, "/payments/state"))

	require.Equal(t, http.StatusOK, rec.Code)
	var state payment.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Equal(t, payment.PhaseIdle, state.Phase)
}

func TestStateRequiresAuth(t *testing.T) {
	h := &payment.Handler{Sessions: newHandlerSessions()}
	rec := httptest.NewRecorder()
	newSessionRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/state", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResetReturnsIdlePhase(t *testing.T) {
	h := &payment.Handler{Sessions: newHandlerSessions()}
	rec := httptest.NewRecorder()
	newSessionRouter(h).ServeHTTP(rec, authedRequest(http.MethodPost, "/payments/reset"))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, string(payment.PhaseIdle), body["phase"])
}

func TestAttemptLookup(t *testing.T) {
	expires := time.Date(2025, 3, 14, 9, 40, 0, 0, time.UTC)
	reader := &fakeAttemptReader{attempts: map[string]payment.Attempt{
		"1741944600000-abcd1234": {
			OrderID:   "1741944600000-abcd1234",
			Method:    payment.MethodMomo,
			Amount:    150000,
			Status:    payment.AttemptPaid,
			ExpiresAt: expires,
		},
	}}
	h := &payment.Handler{Sessions: newHandlerSessions(), Attempts: reader}

	rec := httptest.NewRecorder()
	newSessionRouter(h).ServeHTTP(rec, authedRequest(http.MethodGet, "/payments/attempts/1741944600000-abcd1234"))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "PAID", body["status"])
	require.Equal(t, float64(150000), body["amount"])

	rec = httptest.NewRecorder()
	newSessionRouter(h).ServeHTTP(rec, authedRequest(http.MethodGet, "/payments/attempts/unknown"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsIsolatePerUser(t *testing.T) {
	sessions := newHandlerSessions()
	a := sessions.For("user-a")
	b := sessions.For("user-b")
	require.NotSame(t, a, b)
	require.Same(t, a, sessions.For("user-a"))

	sessions.Drop("user-a")
	require.NotSame(t, a, sessions.For("user-a"))
}

func TestParseMethod(t *testing.T) {
	m, ok := payment.ParseMethod(" momo ")
	require.True(t, ok)
	require.Equal(t, payment.MethodMomo, m)

	m, ok = payment.ParseMethod("VNPAY")
	require.True(t, ok)
	require.Equal(t, payment.MethodVnpay, m)

	_, ok = payment.ParseMethod("zalopay")
	require.False(t, ok)

	require.Equal(t, "Ví MoMo", payment.MethodMomo.Label())
	require.Equal(t, "Chuyển khoản ngân hàng", payment.MethodBank.Label())
}
