package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stella-events/ticketing/internal/model"
	"github.com/stella-events/ticketing/internal/payment"
)

// PaymentProvider starts a hosted payment session and returns the redirect
// target for the buyer.
type PaymentProvider interface {
	CreateSession(ctx context.Context, p payment.SessionParams) (string, error)
}

// CheckoutService validates a purchase request and hands it to the payment
// processor with the correlation metadata the webhook needs to fulfill it.
// The metadata is validated again on the way back; this validation only
// keeps obviously broken requests from reaching the processor.
type CheckoutService struct {
	catalog  CatalogStore
	provider PaymentProvider
	log      zerolog.Logger
}

// NewCheckoutService constructs a CheckoutService.
func NewCheckoutService(catalog CatalogStore, provider PaymentProvider, log zerolog.Logger) *CheckoutService {
	return &CheckoutService{catalog: catalog, provider: provider, log: log}
}

// CreateSession validates the request and returns the processor's redirect
// URL.
func (s *CheckoutService) CreateSession(ctx context.Context, req model.CheckoutRequest) (string, error) {
	req.BuyerEmail = strings.TrimSpace(strings.ToLower(req.BuyerEmail))
	if req.BuyerEmail == "" || !strings.Contains(req.BuyerEmail, "@") {
		return "", fmt.Errorf("buyer_email is required")
	}
	if req.EventID == "" || req.TicketTypeID == "" {
		return "", fmt.Errorf("event_id and ticket_type_id are required")
	}
	qty := clampQuantity(req.Quantity)

	event, err := s.catalog.GetEvent(ctx, req.EventID)
	if err != nil {
		return "", err
	}
	tt, err := s.catalog.GetTicketType(ctx, req.TicketTypeID)
	if err != nil {
		return "", err
	}
	if tt.EventID != event.ID {
		return "", fmt.Errorf("ticket type %s does not belong to event %s", tt.ID, event.ID)
	}

	url, err := s.provider.CreateSession(ctx, payment.SessionParams{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		Quantity:     qty,
		BuyerEmail:   req.BuyerEmail,
		BuyerName:    strings.TrimSpace(req.BuyerName),
		ProductName:  fmt.Sprintf("%s — %s", event.Title, tt.Name),
		UnitCents:    tt.PriceCents,
		Currency:     tt.Currency,
	})
	if err != nil {
		return "", fmt.Errorf("create payment session: %w", err)
	}

	s.log.Info().Str("event_id", event.ID).Str("ticket_type_id", tt.ID).
		Int("quantity", qty).Msg("checkout session created")
	return url, nil
}
