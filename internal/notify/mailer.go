package notify

import (
	"bytes"
	"context"
	"fmt"

	mail "github.com/wneessen/go-mail"
)

// SMTPMailer dispatches messages over SMTP with the QR images embedded
// inline by CID.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

// NewSMTPMailer dials nothing up front; the client connects per send.
func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}
	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: from}, nil
}

// Send delivers one message. Errors are returned for the caller to log or
// enqueue for retry; they are never fulfillment failures.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	mm := mail.NewMsg()
	if err := mm.From(m.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := mm.AddToFormat(msg.ToName, msg.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextHTML, msg.HTML)

	for _, a := range msg.Attachments {
		if err := mm.EmbedReader(a.Filename, bytes.NewReader(a.Content),
			mail.WithFileContentID(a.CID)); err != nil {
			return fmt.Errorf("embed %s: %w", a.Filename, err)
		}
	}

	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}
