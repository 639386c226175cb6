package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stella-events/ticketing/internal/model"
)

// TicketRepository handles persistence for tickets.
//
// The redeem transition is deliberately a single conditional UPDATE rather
// than a read-check-then-write sequence. Two gate devices can present the
// same token within milliseconds; if both read status=active before either
// writes, both would mark the ticket redeemed and both devices would report
// success. The conditional UPDATE lets the database serialise the attempts:
// exactly one caller observes "a row changed", everyone else observes
// nothing changed and re-reads the current state.
type TicketRepository struct {
	db *pgxpool.Pool
}

// NewTicketRepository constructs a TicketRepository.
func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, order_id, event_id, ticket_type_id, token, status, redeemed_at, created_at`

// Create inserts a ticket row. A token collision with an existing row
// returns ErrDuplicateToken so the caller can regenerate and retry.
func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tickets (id, order_id, event_id, ticket_type_id, token, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.OrderID, t.EventID, t.TicketTypeID, t.Token, t.Status, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// CountByOrder returns how many tickets exist for an order. The fulfillment
// pipeline compares this against the order's recorded quantity to detect and
// repair partial issuance.
func (r *TicketRepository) CountByOrder(ctx context.Context, orderID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE order_id = $1`, orderID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

// ListByOrder returns all tickets of an order in issuance order.
func (r *TicketRepository) ListByOrder(ctx context.Context, orderID string) ([]model.Ticket, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE order_id = $1 ORDER BY created_at ASC, id ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.OrderID, &t.EventID, &t.TicketTypeID,
			&t.Token, &t.Status, &t.RedeemedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// FindByToken returns the ticket holding a token, or ErrNotFound.
func (r *TicketRepository) FindByToken(ctx context.Context, token string) (*model.Ticket, error) {
	var t model.Ticket
	err := r.db.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE token = $1`, token,
	).Scan(&t.ID, &t.OrderID, &t.EventID, &t.TicketTypeID,
		&t.Token, &t.Status, &t.RedeemedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find ticket by token: %w", err)
	}
	return &t, nil
}

// Redeem attempts the active→redeemed transition as one conditional update.
// It returns the updated ticket and true when this call won the transition,
// and (nil, false) when no row changed: either the token does not exist or
// the ticket already left the active state.
func (r *TicketRepository) Redeem(ctx context.Context, token string, at time.Time) (*model.Ticket, bool, error) {
	var t model.Ticket
	err := r.db.QueryRow(ctx,
		`UPDATE tickets
		 SET status = $1, redeemed_at = $2
		 WHERE token = $3 AND status = $4
		 RETURNING `+ticketColumns,
		model.TicketRedeemed, at, token, model.TicketActive,
	).Scan(&t.ID, &t.OrderID, &t.EventID, &t.TicketTypeID,
		&t.Token, &t.Status, &t.RedeemedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redeem ticket: %w", err)
	}
	return &t, true, nil
}

// Void performs the administrative active→void transition with the same
// conditional-update shape as Redeem. It reports whether a row changed.
func (r *TicketRepository) Void(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET status = $1 WHERE id = $2 AND status = $3`,
		model.TicketVoid, id, model.TicketActive,
	)
	if err != nil {
		return false, fmt.Errorf("void ticket: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID returns a single ticket or ErrNotFound.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	err := r.db.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id,
	).Scan(&t.ID, &t.OrderID, &t.EventID, &t.TicketTypeID,
		&t.Token, &t.Status, &t.RedeemedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &t, nil
}
