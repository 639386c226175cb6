// Package model defines the core domain types for the ticketing engine.
package model

import "time"

// Event is a published event tickets can be sold for. Immutable as far as
// this engine is concerned; catalog management happens elsewhere.
type Event struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Venue   string    `json:"venue"`
	Address string    `json:"address,omitempty"`
	StartAt time.Time `json:"start_at"`
}

// TicketType is a priced admission class belonging to one event.
type TicketType struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
}

// Order represents one completed payment. Exactly one Order exists per
// external payment reference; it is created once and never mutated.
type Order struct {
	ID           string    `json:"id"`
	ExternalRef  string    `json:"external_ref"`
	EventID      string    `json:"event_id"`
	TicketTypeID string    `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
	BuyerEmail   string    `json:"buyer_email"`
	BuyerName    string    `json:"buyer_name,omitempty"`
	Currency     string    `json:"currency"`
	TotalCents   int64     `json:"total_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

// TicketStatus is the closed lifecycle of a ticket.
type TicketStatus string

const (
	TicketActive   TicketStatus = "active"
	TicketRedeemed TicketStatus = "redeemed"
	TicketVoid     TicketStatus = "void"
)

// Ticket is one redeemable entry credential. The row is the audit record:
// tickets are never deleted, and the token is never reused.
type Ticket struct {
	ID           string       `json:"id"`
	OrderID      string       `json:"order_id"`
	EventID      string       `json:"event_id"`
	TicketTypeID string       `json:"ticket_type_id"`
	Token        string       `json:"token,omitempty"`
	Status       TicketStatus `json:"status"`
	RedeemedAt   *time.Time   `json:"redeemed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Redeemable reports whether a gate scan could still accept this ticket.
func (t *Ticket) Redeemable() bool {
	return t.Status == TicketActive
}

// RedemptionRecord is one append-only audit entry for a redemption attempt,
// written regardless of the verdict.
type RedemptionRecord struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	EventID     string    `json:"event_id"`
	Verdict     string    `json:"verdict"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// Confirmation is a payment confirmation as it reaches the fulfillment
// pipeline, after the processor's signature has been verified. Delivery is
// at-least-once; the pipeline must tolerate replays.
type Confirmation struct {
	ExternalRef  string `json:"external_reference"`
	EventID      string `json:"event_id"`
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
	BuyerEmail   string `json:"buyer_email"`
	BuyerName    string `json:"buyer_name,omitempty"`
}

// PendingNotification is one row of the notification outbox, the resend
// mechanism for ticket emails whose first dispatch failed.
type PendingNotification struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	Recipient     string    `json:"recipient"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VerdictKind enumerates the possible outcomes of a gate scan. These are
// first-class responses, not errors.
type VerdictKind string

const (
	VerdictAccepted        VerdictKind = "accepted"
	VerdictAlreadyRedeemed VerdictKind = "already_redeemed"
	VerdictInvalid         VerdictKind = "invalid"
	VerdictVoid            VerdictKind = "void"
	VerdictInactive        VerdictKind = "inactive"
)

// Verdict is the structured result a gate device receives for a scan.
type Verdict struct {
	Kind       VerdictKind `json:"verdict"`
	TicketID   string      `json:"ticket_id,omitempty"`
	EventID    string      `json:"event_id,omitempty"`
	RedeemedAt *time.Time  `json:"redeemed_at,omitempty"`
}

// CheckoutRequest is the payload for starting a payment session.
type CheckoutRequest struct {
	EventID      string `json:"event_id"`
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
	BuyerEmail   string `json:"buyer_email"`
	BuyerName    string `json:"buyer_name,omitempty"`
}

// ScanRequest is the payload a gate device submits.
type ScanRequest struct {
	Token string `json:"token"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
