package payment

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqualife-vn/backend-aqualife/internal/lock"
	"github.com/aqualife-vn/backend-aqualife/internal/obs"
)

// OverdueExpirer closes out pending attempts whose window has passed.
type OverdueExpirer interface {
	ExpireOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper enforces the payment window in the database. The lifecycle
// already refuses to present an expired artifact; the sweeper makes the
// same cutoff durable so a stale PENDING row can never settle later.
type Sweeper struct {
	Attempts OverdueExpirer
	Locker   lock.Locker
	LockTTL  time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time
}

const sweepLockKey = "lock:payment:expire-sweep"

// Sweep expires overdue attempts under a distributed lock so concurrent
// worker replicas do not double-count.
func (s Sweeper) Sweep(ctx context.Context) error {
	if s.Attempts == nil {
		return errors.New("payment: sweeper not configured")
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return s.Locker.WithLock(ctx, sweepLockKey, ttl, func(ctx context.Context) error {
		now := time.Now()
		if s.Now != nil {
			now = s.Now()
		}
		expired, err := s.Attempts.ExpireOverdue(ctx, now)
		if err != nil {
			return err
		}
		if expired > 0 {
			obs.PaymentExpiredTotal.Add(float64(expired))
			s.Logger.Info().Int64("expired", expired).Msg("closed overdue payment attempts")
		}
		return nil
	})
}
