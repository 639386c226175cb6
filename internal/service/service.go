// Package service implements the fulfillment pipeline, the redemption state
// machine, and checkout session initiation. All concurrency control lives in
// the store's conditional primitives; no service holds a lock across I/O.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/stella-events/ticketing/internal/model"
)

// ErrReferenceNotFound marks a confirmation naming an event or ticket type
// this system does not know. That is an upstream configuration error:
// redelivering the same confirmation cannot fix it, so it is surfaced once
// and not retried.
var ErrReferenceNotFound = errors.New("referenced event or ticket type not found")

// ErrNotVoidable is returned when voiding a ticket that already left the
// active state.
var ErrNotVoidable = errors.New("ticket is not voidable")

// OrderStore is the order persistence the services need.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByExternalRef(ctx context.Context, ref string) (*model.Order, error)
	GetByID(ctx context.Context, id string) (*model.Order, error)
}

// CatalogStore resolves events and ticket types.
type CatalogStore interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	GetTicketType(ctx context.Context, id string) (*model.TicketType, error)
}

// TicketStore is the ticket persistence plus the conditional-update
// primitives the lifecycle transitions run on.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	CountByOrder(ctx context.Context, orderID string) (int, error)
	ListByOrder(ctx context.Context, orderID string) ([]model.Ticket, error)
	FindByToken(ctx context.Context, token string) (*model.Ticket, error)
	Redeem(ctx context.Context, token string, at time.Time) (*model.Ticket, bool, error)
	Void(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
}

// RedemptionLog appends audit entries; best-effort by contract.
type RedemptionLog interface {
	Append(ctx context.Context, rec *model.RedemptionRecord) error
}

// NotificationOutbox queues failed ticket emails for the resend worker.
type NotificationOutbox interface {
	Enqueue(ctx context.Context, orderID, recipient, lastError string) error
}
