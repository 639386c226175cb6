package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stella-events/ticketing/internal/model"
	"github.com/stella-events/ticketing/internal/notify"
	"github.com/stella-events/ticketing/internal/repository"
)

// memStore is an in-memory stand-in for the ticket store. Its mutex plays
// the role of the database's row-level atomicity: Redeem and Void are
// compare-and-set under the lock, exactly the contract the pgx repositories
// get from their conditional UPDATEs.
type memStore struct {
	mu      sync.Mutex
	orders  map[string]*model.Order  // by id
	byRef   map[string]string        // external ref -> order id
	tickets map[string]*model.Ticket // by id
	byToken map[string]string        // token -> ticket id
	events  map[string]*model.Event
	types   map[string]*model.TicketType
	records []*model.RedemptionRecord
	outbox  []string // order ids enqueued for resend

	okTicketInserts int  // with failNextInsert set, how many inserts succeed first
	failNextInsert  bool // one transient failure after okTicketInserts successes
	dupTokenOnce    bool // next ticket create reports a token collision
}

func newMemStore() *memStore {
	return &memStore{
		orders:  make(map[string]*model.Order),
		byRef:   make(map[string]string),
		tickets: make(map[string]*model.Ticket),
		byToken: make(map[string]string),
		events:  make(map[string]*model.Event),
		types:   make(map[string]*model.TicketType),
	}
}

var errTransient = errors.New("transient store error")

func (m *memStore) seedCatalog() (*model.Event, *model.TicketType) {
	ev := &model.Event{ID: "E1", Title: "Midnight Premiere", Venue: "Grand Hall",
		StartAt: time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)}
	tt := &model.TicketType{ID: "T1", EventID: "E1", Name: "Standard", PriceCents: 1200, Currency: "EUR"}
	m.events[ev.ID] = ev
	m.types[tt.ID] = tt
	return ev, tt
}

func (m *memStore) Create(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byRef[o.ExternalRef]; dup {
		return repository.ErrDuplicateOrder
	}
	cp := *o
	m.orders[o.ID] = &cp
	m.byRef[o.ExternalRef] = o.ID
	return nil
}

func (m *memStore) GetByExternalRef(ctx context.Context, ref string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRef[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m.orders[id]
	return &cp, nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ev, nil
}

func (m *memStore) GetTicketType(ctx context.Context, id string) (*model.TicketType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tt, ok := m.types[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return tt, nil
}

func (m *memStore) CreateTicket(ctx context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNextInsert {
		if m.okTicketInserts == 0 {
			m.failNextInsert = false
			return errTransient
		}
		m.okTicketInserts--
	}
	if m.dupTokenOnce {
		m.dupTokenOnce = false
		return repository.ErrDuplicateToken
	}
	if _, dup := m.byToken[t.Token]; dup {
		return repository.ErrDuplicateToken
	}
	cp := *t
	m.tickets[t.ID] = &cp
	m.byToken[t.Token] = t.ID
	return nil
}

func (m *memStore) CountByOrder(ctx context.Context, orderID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickets {
		if t.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListByOrder(ctx context.Context, orderID string) ([]model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Ticket
	for _, t := range m.tickets {
		if t.OrderID == orderID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FindByToken(ctx context.Context, token string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m.tickets[id]
	return &cp, nil
}

func (m *memStore) Redeem(ctx context.Context, token string, at time.Time) (*model.Ticket, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[token]
	if !ok {
		return nil, false, nil
	}
	t := m.tickets[id]
	if t.Status != model.TicketActive {
		return nil, false, nil
	}
	t.Status = model.TicketRedeemed
	ts := at
	t.RedeemedAt = &ts
	cp := *t
	return &cp, true, nil
}

func (m *memStore) Void(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.Status != model.TicketActive {
		return false, nil
	}
	t.Status = model.TicketVoid
	return true, nil
}

func (m *memStore) GetByIDTicket(ctx context.Context, id string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) Append(ctx context.Context, rec *model.RedemptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) Enqueue(ctx context.Context, orderID, recipient, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, orderID)
	return nil
}

// ticketStore adapts memStore to the TicketStore interface (Create and
// GetByID collide with the order-side method names).
type ticketStore struct{ *memStore }

func (s ticketStore) Create(ctx context.Context, t *model.Ticket) error {
	return s.CreateTicket(ctx, t)
}

func (s ticketStore) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	return s.GetByIDTicket(ctx, id)
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(token string) ([]byte, error) {
	return []byte("png:" + token), nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Message
	fail bool
}

func (d *recordingDispatcher) Send(ctx context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("smtp unavailable")
	}
	d.sent = append(d.sent, msg)
	return nil
}
