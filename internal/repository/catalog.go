package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stella-events/ticketing/internal/model"
)

// CatalogRepository reads events and ticket types. The catalog is immutable
// for this engine; writes happen out of band.
type CatalogRepository struct {
	db *pgxpool.Pool
}

// NewCatalogRepository constructs a CatalogRepository.
func NewCatalogRepository(db *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetEvent returns a single event or ErrNotFound.
func (r *CatalogRepository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, title, venue, address, start_at FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Title, &e.Venue, &e.Address, &e.StartAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// ListEvents returns all events ordered by start time.
func (r *CatalogRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, venue, address, start_at FROM events ORDER BY start_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Venue, &e.Address, &e.StartAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetTicketType returns a single ticket type or ErrNotFound.
func (r *CatalogRepository) GetTicketType(ctx context.Context, id string) (*model.TicketType, error) {
	var tt model.TicketType
	err := r.db.QueryRow(ctx,
		`SELECT id, event_id, name, price_cents, currency FROM ticket_types WHERE id = $1`,
		id,
	).Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.PriceCents, &tt.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket type: %w", err)
	}
	return &tt, nil
}

// ListTicketTypes returns the ticket types of one event.
func (r *CatalogRepository) ListTicketTypes(ctx context.Context, eventID string) ([]model.TicketType, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, name, price_cents, currency
		 FROM ticket_types WHERE event_id = $1 ORDER BY price_cents ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}
	defer rows.Close()

	var types []model.TicketType
	for rows.Next() {
		var tt model.TicketType
		if err := rows.Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.PriceCents, &tt.Currency); err != nil {
			return nil, fmt.Errorf("scan ticket type: %w", err)
		}
		types = append(types, tt)
	}
	return types, rows.Err()
}
