package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stella-events/ticketing/internal/model"
	"github.com/stella-events/ticketing/internal/payment"
	"github.com/stella-events/ticketing/internal/repository"
)

type fakeProvider struct {
	last payment.SessionParams
	url  string
}

func (p *fakeProvider) CreateSession(ctx context.Context, sp payment.SessionParams) (string, error) {
	p.last = sp
	return p.url, nil
}

func TestCreateSessionForwardsCatalogPricing(t *testing.T) {
	store := newMemStore()
	store.seedCatalog()
	provider := &fakeProvider{url: "https://pay.example/s/123"}
	svc := NewCheckoutService(store, provider, zerolog.Nop())

	url, err := svc.CreateSession(context.Background(), model.CheckoutRequest{
		EventID: "E1", TicketTypeID: "T1", Quantity: 3,
		BuyerEmail: "A@B.com", BuyerName: " Ada ",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if url != provider.url {
		t.Errorf("url = %s", url)
	}
	if provider.last.UnitCents != 1200 || provider.last.Currency != "EUR" {
		t.Errorf("pricing = %d %s, want catalog values", provider.last.UnitCents, provider.last.Currency)
	}
	if provider.last.Quantity != 3 {
		t.Errorf("quantity = %d", provider.last.Quantity)
	}
	if provider.last.BuyerEmail != "a@b.com" {
		t.Errorf("email not normalised: %s", provider.last.BuyerEmail)
	}
	if provider.last.BuyerName != "Ada" {
		t.Errorf("name not trimmed: %q", provider.last.BuyerName)
	}
	if provider.last.ProductName == "" {
		t.Error("product name empty")
	}
}

func TestCreateSessionClampsQuantity(t *testing.T) {
	store := newMemStore()
	store.seedCatalog()
	provider := &fakeProvider{url: "u"}
	svc := NewCheckoutService(store, provider, zerolog.Nop())

	if _, err := svc.CreateSession(context.Background(), model.CheckoutRequest{
		EventID: "E1", TicketTypeID: "T1", Quantity: 99, BuyerEmail: "a@b.com",
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if provider.last.Quantity != 10 {
		t.Errorf("quantity = %d, want clamped to 10", provider.last.Quantity)
	}
}

func TestCreateSessionRejectsUnknownCatalogRefs(t *testing.T) {
	store := newMemStore()
	store.seedCatalog()
	svc := NewCheckoutService(store, &fakeProvider{}, zerolog.Nop())

	_, err := svc.CreateSession(context.Background(), model.CheckoutRequest{
		EventID: "nope", TicketTypeID: "T1", Quantity: 1, BuyerEmail: "a@b.com",
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown event err = %v, want ErrNotFound", err)
	}

	_, err = svc.CreateSession(context.Background(), model.CheckoutRequest{
		EventID: "E1", TicketTypeID: "nope", Quantity: 1, BuyerEmail: "a@b.com",
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown ticket type err = %v, want ErrNotFound", err)
	}
}

func TestCreateSessionRequiresEmail(t *testing.T) {
	store := newMemStore()
	store.seedCatalog()
	svc := NewCheckoutService(store, &fakeProvider{}, zerolog.Nop())

	if _, err := svc.CreateSession(context.Background(), model.CheckoutRequest{
		EventID: "E1", TicketTypeID: "T1", Quantity: 1,
	}); err == nil {
		t.Error("expected error for missing buyer_email")
	}
}
