package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stella-events/ticketing/internal/model"
)

// OrderRepository handles persistence for orders. Orders are insert-only:
// created exactly once per external payment reference, never mutated,
// never deleted.
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository constructs an OrderRepository.
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order. The orders_external_ref_key unique constraint is
// the race-safe half of the idempotency guard: if a concurrent duplicate
// delivery wins the insert, Create returns ErrDuplicateOrder.
func (r *OrderRepository) Create(ctx context.Context, o *model.Order) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO orders (id, external_ref, event_id, ticket_type_id, quantity,
		                     buyer_email, buyer_name, currency, total_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.ExternalRef, o.EventID, o.TicketTypeID, o.Quantity,
		o.BuyerEmail, o.BuyerName, o.Currency, o.TotalCents, o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByExternalRef returns the order created for a payment reference, or
// ErrNotFound. This is the first half of the idempotency guard.
func (r *OrderRepository) GetByExternalRef(ctx context.Context, ref string) (*model.Order, error) {
	return r.get(ctx, `WHERE external_ref = $1`, ref)
}

// GetByID returns a single order or ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *OrderRepository) get(ctx context.Context, where string, arg any) (*model.Order, error) {
	var o model.Order
	err := r.db.QueryRow(ctx,
		`SELECT id, external_ref, event_id, ticket_type_id, quantity,
		        buyer_email, buyer_name, currency, total_cents, created_at
		 FROM orders `+where,
		arg,
	).Scan(&o.ID, &o.ExternalRef, &o.EventID, &o.TicketTypeID, &o.Quantity,
		&o.BuyerEmail, &o.BuyerName, &o.Currency, &o.TotalCents, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}
