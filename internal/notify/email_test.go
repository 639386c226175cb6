package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stella-events/ticketing/internal/model"
)

func testFixtures(n int) (*model.Order, *model.Event, *model.TicketType, []model.Ticket, map[string][]byte) {
	order := &model.Order{
		ID:         "ord-1",
		BuyerEmail: "ada@example.com",
		BuyerName:  "Ada",
		Quantity:   n,
	}
	event := &model.Event{
		ID:      "E1",
		Title:   "Midnight Premiere",
		Venue:   "Grand Hall",
		StartAt: time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC),
	}
	tt := &model.TicketType{ID: "T1", EventID: "E1", Name: "Standard", PriceCents: 1200, Currency: "eur"}

	tickets := make([]model.Ticket, n)
	images := make(map[string][]byte, n)
	for i := range tickets {
		id := fmt.Sprintf("tk-%d", i+1)
		tickets[i] = model.Ticket{ID: id, OrderID: order.ID, Status: model.TicketActive}
		images[id] = []byte{0x89, 'P', 'N', 'G', byte(i)}
	}
	return order, event, tt, tickets, images
}

func TestBuildTicketEmailOneBlockPerTicket(t *testing.T) {
	order, event, tt, tickets, images := testFixtures(3)

	msg := BuildTicketEmail(order, event, tt, tickets, images)

	if msg.To != "ada@example.com" || msg.ToName != "Ada" {
		t.Fatalf("got recipient %q (%q)", msg.To, msg.ToName)
	}
	if !strings.Contains(msg.Subject, "Midnight Premiere") {
		t.Fatalf("subject %q should name the event", msg.Subject)
	}
	if len(msg.Attachments) != 3 {
		t.Fatalf("got %d attachments, want 3", len(msg.Attachments))
	}
	for i, a := range msg.Attachments {
		cid := fmt.Sprintf("ticket-%d@stella-events", i+1)
		if a.CID != cid {
			t.Fatalf("attachment %d has CID %q, want %q", i, a.CID, cid)
		}
		if !strings.Contains(msg.HTML, "cid:"+cid) {
			t.Fatalf("body is missing an inline image reference for %q", cid)
		}
		want := images[tickets[i].ID]
		if string(a.Content) != string(want) {
			t.Fatalf("attachment %d content does not match its ticket's image", i)
		}
	}
}

func TestBuildTicketEmailFallbackGreeting(t *testing.T) {
	order, event, tt, tickets, images := testFixtures(1)
	order.BuyerName = ""

	msg := BuildTicketEmail(order, event, tt, tickets, images)

	if !strings.Contains(msg.HTML, "Hi there,") {
		t.Fatal("expected a neutral greeting when the buyer name is unknown")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		cents    int64
		currency string
		want     string
	}{
		{1200, "eur", "€12.00"},
		{1205, "EUR", "€12.05"},
		{999, "usd", "$9.99"},
		{50, "gbp", "£0.50"},
		{2500, "chf", "CHF 25.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.cents, tc.currency); got != tc.want {
			t.Errorf("FormatAmount(%d, %q) = %q, want %q", tc.cents, tc.currency, got, tc.want)
		}
	}
}
