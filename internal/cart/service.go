// Package cart is the read-only collaborator supplying the shopper's cart
// contents at checkout time. Cart mutation lives in the storefront service;
// the payments backend only needs items and the payable total.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Item is one cart line as priced at checkout.
type Item struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Qty       int32  `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
}

// Service reads cart state from the shared database.
type Service struct {
	Pool *pgxpool.Pool
}

// Items lists the shopper's current cart lines.
func (s *Service) Items(ctx context.Context, userID string) ([]Item, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("cart: service not configured")
	}
	const q = `
		SELECT product_id, name, qty, unit_price
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at`
	rows, err := s.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("cart: list items: %w", err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Qty, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("cart: scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// TotalAmount returns the payable cart total in whole VND.
func (s *Service) TotalAmount(ctx context.Context, userID string) (int64, error) {
	if s == nil || s.Pool == nil {
		return 0, errors.New("cart: service not configured")
	}
	const q = `
		SELECT COALESCE(SUM(qty * unit_price), 0)
		FROM cart_items
		WHERE user_id = $1`
	var total int64
	if err := s.Pool.QueryRow(ctx, q, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("cart: total: %w", err)
	}
	return total, nil
}
