package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aqualife-vn/backend-aqualife/internal/resilience"
)

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	b := resilience.NewBreaker(4, 0.5, time.Minute)

	for i := 0; i < 4; i++ {
		require.True(t, b.Allow())
		b.Report(false)
	}
	require.False(t, b.Allow(), "breaker should open once the window is hot")
	require.Equal(t, resilience.Open, b.CurrentState())
}

func TestBreakerStaysClosedUnderMinRequests(t *testing.T) {
	b := resilience.NewBreaker(10, 0.5, time.Minute)
	for i := 0; i < 5; i++ {
		b.Report(false)
	}
	require.True(t, b.Allow())
}

func TestBackoffGrowsExponentially(t *testing.T) {
	base := 100 * time.Millisecond
	first := resilience.Backoff(base, 1, 0)
	second := resilience.Backoff(base, 2, 0)
	third := resilience.Backoff(base, 3, 0)
	require.Equal(t, base, first)
	require.Equal(t, 2*base, second)
	require.Equal(t, 4*base, third)
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := &resilience.HTTPClient{
		Client:      srv.Client(),
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		Timeout:     time.Second,
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(3), hits.Load())
}

func TestHTTPClientOpenBreakerShortCircuits(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := &resilience.HTTPClient{
		Client:      srv.Client(),
		Breaker:     resilience.NewBreaker(1, 0.1, time.Minute),
		MaxAttempts: 5,
		BaseBackoff: time.Millisecond,
		Timeout:     time.Second,
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(context.Background(), req)
	require.Error(t, err)
	require.Less(t, hits.Load(), int64(5), "open breaker must stop further attempts")
}
