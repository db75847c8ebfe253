package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mikelady/showcase/internal/services"
)

// Compile-time interface compliance check
var _ services.OrderLookup = (*OrderStore)(nil)

// OrderStore reads orders owned by the order service. It never writes.
type OrderStore struct {
	db DBTX
}

// NewOrderStore creates a new database-backed order lookup
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{db: pool}
}

// NewOrderStoreWithDB creates an order lookup over any DBTX (used with pgxmock).
func NewOrderStoreWithDB(db DBTX) *OrderStore {
	return &OrderStore{db: db}
}

// GetOrder returns nil, nil when the order does not exist.
func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*services.Order, error) {
	var (
		o          services.Order
		photoAfter *string
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, unique_code, status, amount, photo_after_url FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.UniqueCode, &o.Status, &o.Amount, &photoAfter)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if photoAfter != nil {
		o.PhotoAfterURL = *photoAfter
	}
	return &o, nil
}
