// Package notify builds and dispatches ticket emails. Dispatch is
// best-effort: issuance has already committed by the time anything in this
// package runs, and a lost email never invalidates a ticket.
package notify

import "context"

// Attachment is one inline image of a message, referenced from the HTML
// body by its CID.
type Attachment struct {
	Filename string
	CID      string
	Content  []byte
}

// Message is a fully built notification ready for dispatch.
type Message struct {
	To          string
	ToName      string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Dispatcher delivers messages to buyers.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}
