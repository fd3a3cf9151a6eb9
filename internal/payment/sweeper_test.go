package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aqualife-vn/backend-aqualife/internal/lock"
	"github.com/aqualife-vn/backend-aqualife/internal/payment"
)

type fakeExpirer struct {
	cutoffs []time.Time
	expired int64
	err     error
}

func (f *fakeExpirer) ExpireOverdue(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.expired, f.err
}

func newTestSweeper(t *testing.T, expirer *fakeExpirer) payment.Sweeper {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return payment.Sweeper{
		Attempts: expirer,
		Locker:   lock.Locker{R: client, RetryBackoff: time.Millisecond},
		LockTTL:  time.Second,
		Logger:   zerolog.Nop(),
	}
}

func TestSweeperExpiresWithPinnedCutoff(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 40, 0, 0, time.UTC)
	expirer := &fakeExpirer{expired: 3}
	s := newTestSweeper(t, expirer)
	s.Now = func() time.Time { return now }

	require.NoError(t, s.Sweep(context.Background()))
	require.Equal(t, []time.Time{now}, expirer.cutoffs)
}

func TestSweeperPropagatesStoreError(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("db unavailable")}
	s := newTestSweeper(t, expirer)

	err := s.Sweep(context.Background())
	require.ErrorContains(t, err, "db unavailable")
}

func TestSweeperRequiresStore(t *testing.T) {
	err := payment.Sweeper{}.Sweep(context.Background())
	require.Error(t, err)
}
