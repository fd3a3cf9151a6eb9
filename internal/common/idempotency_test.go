package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aqualife-vn/backend-aqualife/internal/common"
)

func newIdemHandler(t *testing.T) (http.Handler, *int) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	idem := common.Idem{R: client, TTL: time.Minute}
	return idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})), &calls
}

func TestIdemDuplicateKeyRejected(t *testing.T) {
	handler, calls := newIdemHandler(t)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout/pay", nil)
	req.Header.Set("Idempotency-Key", "pay-abc")
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/checkout/pay", nil)
	req.Header.Set("Idempotency-Key", "pay-abc")
	handler.ServeHTTP(second, req)
	require.Equal(t, http.StatusConflict, second.Code)

	require.Equal(t, 1, *calls)
}

func TestIdemDistinctKeysPass(t *testing.T) {
	handler, calls := newIdemHandler(t)

	for _, key := range []string{"pay-1", "pay-2"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout/pay", nil)
		req.Header.Set("Idempotency-Key", key)
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	require.Equal(t, 2, *calls)
}

func TestIdemMissingKeyPassesThrough(t *testing.T) {
	handler, calls := newIdemHandler(t)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/pay", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	require.Equal(t, 2, *calls)
}
