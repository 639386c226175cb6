package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stella-events/ticketing/internal/model"
)

func newRedemption(store *memStore) *RedemptionService {
	return NewRedemptionService(ticketStore{store}, store, zerolog.Nop())
}

func seedTicket(store *memStore, token string, status model.TicketStatus) *model.Ticket {
	t := &model.Ticket{
		ID: "tick_" + token, OrderID: "ord_1", EventID: "E1", TicketTypeID: "T1",
		Token: token, Status: status, CreatedAt: time.Now().UTC(),
	}
	store.tickets[t.ID] = t
	store.byToken[t.Token] = t.ID
	return t
}

func TestRedeemAcceptsActiveTicket(t *testing.T) {
	store := newMemStore()
	tk := seedTicket(store, "abc", model.TicketActive)
	svc := newRedemption(store)

	v, err := svc.Redeem(context.Background(), "abc")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if v.Kind != model.VerdictAccepted {
		t.Fatalf("verdict = %s, want accepted", v.Kind)
	}
	if v.TicketID != tk.ID || v.EventID != "E1" {
		t.Errorf("verdict ids = %s/%s", v.TicketID, v.EventID)
	}
	if v.RedeemedAt == nil {
		t.Error("accepted verdict has no redeemed_at")
	}
}

func TestRedeemSecondScanIsAlreadyRedeemed(t *testing.T) {
	store := newMemStore()
	seedTicket(store, "abc", model.TicketActive)
	svc := newRedemption(store)

	first, err := svc.Redeem(context.Background(), "abc")
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	second, err := svc.Redeem(context.Background(), "abc")
	if err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if second.Kind != model.VerdictAlreadyRedeemed {
		t.Fatalf("verdict = %s, want already_redeemed", second.Kind)
	}
	if second.RedeemedAt == nil || !second.RedeemedAt.Equal(*first.RedeemedAt) {
		t.Errorf("loser must see the winner's timestamp: %v vs %v",
			second.RedeemedAt, first.RedeemedAt)
	}
}

func TestRedeemConcurrentScansAcceptExactlyOne(t *testing.T) {
	store := newMemStore()
	seedTicket(store, "abc", model.TicketActive)
	svc := newRedemption(store)

	const devices = 16
	verdicts := make([]model.Verdict, devices)
	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := svc.Redeem(context.Background(), "abc")
			if err != nil {
				t.Errorf("device %d: %v", i, err)
				return
			}
			verdicts[i] = v
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, v := range verdicts {
		switch v.Kind {
		case model.VerdictAccepted:
			accepted++
		case model.VerdictAlreadyRedeemed:
		default:
			t.Errorf("unexpected verdict %s", v.Kind)
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want exactly 1", accepted)
	}
}

func TestRedeemUnknownTokenIsInvalid(t *testing.T) {
	store := newMemStore()
	svc := newRedemption(store)

	v, err := svc.Redeem(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if v.Kind != model.VerdictInvalid {
		t.Errorf("verdict = %s, want invalid", v.Kind)
	}
	if v.TicketID != "" {
		t.Errorf("invalid verdict leaks a ticket id: %s", v.TicketID)
	}
	if len(store.tickets) != 0 {
		t.Error("unknown token mutated the store")
	}
}

func TestRedeemEmptyTokenIsInvalid(t *testing.T) {
	store := newMemStore()
	svc := newRedemption(store)
	v, err := svc.Redeem(context.Background(), "   ")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if v.Kind != model.VerdictInvalid {
		t.Errorf("verdict = %s, want invalid", v.Kind)
	}
}

func TestRedeemVoidTicket(t *testing.T) {
	store := newMemStore()
	seedTicket(store, "gone", model.TicketVoid)
	svc := newRedemption(store)

	v, err := svc.Redeem(context.Background(), "gone")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if v.Kind != model.VerdictVoid {
		t.Errorf("verdict = %s, want void", v.Kind)
	}
}

func TestRedeemAppendsAuditPerAttempt(t *testing.T) {
	store := newMemStore()
	seedTicket(store, "abc", model.TicketActive)
	svc := newRedemption(store)

	_, _ = svc.Redeem(context.Background(), "abc")
	_, _ = svc.Redeem(context.Background(), "abc")
	_, _ = svc.Redeem(context.Background(), "abc")

	if len(store.records) != 3 {
		t.Fatalf("audit records = %d, want 3 (one per attempt)", len(store.records))
	}
	if store.records[0].Verdict != string(model.VerdictAccepted) {
		t.Errorf("first record verdict = %s", store.records[0].Verdict)
	}
	if store.records[1].Verdict != string(model.VerdictAlreadyRedeemed) {
		t.Errorf("second record verdict = %s", store.records[1].Verdict)
	}
}

func TestVoidTransitions(t *testing.T) {
	store := newMemStore()
	tk := seedTicket(store, "abc", model.TicketActive)
	svc := newRedemption(store)

	if err := svc.Void(context.Background(), tk.ID); err != nil {
		t.Fatalf("void: %v", err)
	}
	if err := svc.Void(context.Background(), tk.ID); err != ErrNotVoidable {
		t.Errorf("second void err = %v, want ErrNotVoidable", err)
	}

	v, err := svc.Redeem(context.Background(), "abc")
	if err != nil {
		t.Fatalf("redeem voided: %v", err)
	}
	if v.Kind != model.VerdictVoid {
		t.Errorf("verdict = %s, want void", v.Kind)
	}
}
