// Package payment integrates the Stripe payment processor: creating hosted
// checkout sessions and parsing signature-verified webhook events back into
// confirmations.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/stella-events/ticketing/internal/model"
)

// ErrMissingMetadata is returned when a completed session comes back without
// the correlation payload the checkout call attached. The webhook cannot be
// fulfilled without it.
var ErrMissingMetadata = errors.New("confirmation is missing required metadata")

// SessionParams carries everything needed to start one hosted checkout. The
// metadata fields round-trip through the processor verbatim and reappear on
// the confirmation; the pipeline treats them as untrusted and re-validates.
type SessionParams struct {
	EventID      string
	TicketTypeID string
	Quantity     int
	BuyerEmail   string
	BuyerName    string
	ProductName  string
	UnitCents    int64
	Currency     string
}

// StripeProvider talks to Stripe with a secret key and verifies inbound
// webhooks with the endpoint secret.
type StripeProvider struct {
	webhookSecret string
	appURL        string
}

// NewStripeProvider configures the global Stripe client key and returns a
// provider bound to the webhook endpoint secret.
func NewStripeProvider(secretKey, webhookSecret, appURL string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{webhookSecret: webhookSecret, appURL: strings.TrimRight(appURL, "/")}
}

// CreateSession starts a hosted checkout and returns the redirect URL.
func (p *StripeProvider) CreateSession(ctx context.Context, sp SessionParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(sp.BuyerEmail),
		SuccessURL:    stripe.String(p.appURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(p.appURL + "/events/" + sp.EventID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(int64(sp.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(sp.Currency)),
				UnitAmount: stripe.Int64(sp.UnitCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(sp.ProductName),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata("event_id", sp.EventID)
	params.AddMetadata("ticket_type_id", sp.TicketTypeID)
	params.AddMetadata("quantity", strconv.Itoa(sp.Quantity))
	params.AddMetadata("buyer_email", sp.BuyerEmail)
	params.AddMetadata("buyer_name", sp.BuyerName)

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// ParseConfirmation verifies the webhook signature and extracts a
// confirmation. ok is false for event types this engine ignores; those must
// be acknowledged upstream so the processor stops redelivering them.
func (p *StripeProvider) ParseConfirmation(payload []byte, sigHeader string) (model.Confirmation, bool, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return model.Confirmation{}, false, fmt.Errorf("verify webhook signature: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return model.Confirmation{}, false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return model.Confirmation{}, false, fmt.Errorf("decode checkout session: %w", err)
	}

	md := sess.Metadata
	qty, _ := strconv.Atoi(md["quantity"])
	if qty == 0 {
		qty = 1
	}
	email := md["buyer_email"]
	if email == "" {
		email = sess.CustomerEmail
	}

	c := model.Confirmation{
		ExternalRef:  sess.ID,
		EventID:      md["event_id"],
		TicketTypeID: md["ticket_type_id"],
		Quantity:     qty,
		BuyerEmail:   email,
		BuyerName:    md["buyer_name"],
	}
	if c.EventID == "" || c.TicketTypeID == "" || c.BuyerEmail == "" {
		return model.Confirmation{}, false, ErrMissingMetadata
	}
	return c, true, nil
}
