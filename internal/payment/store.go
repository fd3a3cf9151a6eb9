package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptStatus tracks a persisted attempt across its settlement.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "PENDING"
	AttemptPaid    AttemptStatus = "PAID"
	AttemptFailed  AttemptStatus = "FAILED"
	AttemptExpired AttemptStatus = "EXPIRED"
)

// Attempt is the durable record of a payment attempt that reached a
// provider. The in-memory lifecycle owns the artifact; this row is what the
// IPN handlers and the expiry sweeper settle against.
type Attempt struct {
	OrderID       string
	Method        Method
	Amount        int64
	PayURL        string
	QRImageURL    string
	Status        AttemptStatus
	FailureReason string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	SettledAt     *time.Time
}

// AttemptFromArtifact converts a fresh artifact into its PENDING record.
func AttemptFromArtifact(a PayableArtifact, amount int64) Attempt {
	return Attempt{
		OrderID:    a.OrderID,
		Method:     a.Method,
		Amount:     amount,
		PayURL:     a.PayURL,
		QRImageURL: a.QRImageURL,
		Status:     AttemptPending,
		CreatedAt:  a.CreatedAt,
		ExpiresAt:  a.ExpiresAt,
	}
}

// ErrAttemptNotFound is returned when no attempt exists for an order id.
var ErrAttemptNotFound = errors.New("payment: attempt not found")

// Store persists payment attempts in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// RecordAttempt inserts the attempt row. A duplicate order id is treated as
// already recorded; order ids are never reused across initiations.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	if s == nil || s.Pool == nil {
		return errors.New("payment: store not configured")
	}
	const q = `
		INSERT INTO payment_attempts
			(order_id, method, amount, pay_url, qr_image_url, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.Pool.Exec(ctx, q,
		a.OrderID, string(a.Method), a.Amount, a.PayURL, a.QRImageURL,
		string(a.Status), a.CreatedAt, a.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("payment: record attempt: %w", err)
	}
	return nil
}

// GetAttempt loads the attempt for an order id.
func (s *Store) GetAttempt(ctx context.Context, orderID string) (Attempt, error) {
	var a Attempt
	if s == nil || s.Pool == nil {
		return a, errors.New("payment: store not configured")
	}
	const q = `
		SELECT order_id, method, amount, pay_url, qr_image_url, status,
		       COALESCE(failure_reason, ''), created_at, expires_at, settled_at
		FROM payment_attempts
		WHERE order_id = $1`
	var method, status string
	err := s.Pool.QueryRow(ctx, q, orderID).Scan(
		&a.OrderID, &method, &a.Amount, &a.PayURL, &a.QRImageURL,
		&status, &a.FailureReason, &a.CreatedAt, &a.ExpiresAt, &a.SettledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, ErrAttemptNotFound
		}
		return a, fmt.Errorf("payment: get attempt: %w", err)
	}
	a.Method = Method(method)
	a.Status = AttemptStatus(status)
	return a, nil
}

// Settle moves a PENDING attempt to a terminal status. Settling an already
// settled attempt is a no-op, which makes IPN retries idempotent.
func (s *Store) Settle(ctx context.Context, orderID string, status AttemptStatus, reason string, at time.Time) error {
	if s == nil || s.Pool == nil {
		return errors.New("payment: store not configured")
	}
	if status != AttemptPaid && status != AttemptFailed && status != AttemptExpired {
		return fmt.Errorf("payment: %q is not a settlement status", status)
	}
	const q = `
		UPDATE payment_attempts
		SET status = $2, failure_reason = NULLIF($3, ''), settled_at = $4
		WHERE order_id = $1 AND status = 'PENDING'`
	if _, err := s.Pool.Exec(ctx, q, orderID, string(status), reason, at); err != nil {
		return fmt.Errorf("payment: settle attempt: %w", err)
	}
	return nil
}

// ExpireOverdue marks every PENDING attempt whose window closed before the
// cutoff as EXPIRED and returns the number of rows touched. Run by the
// background sweeper.
func (s *Store) ExpireOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.Pool == nil {
		return 0, errors.New("payment: store not configured")
	}
	const q = `
		UPDATE payment_attempts
		SET status = 'EXPIRED', settled_at = $1
		WHERE status = 'PENDING' AND expires_at < $1`
	tag, err := s.Pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("payment: expire overdue: %w", err)
	}
	return tag.RowsAffected(), nil
}
