package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stella-events/ticketing/internal/encoder"
	"github.com/stella-events/ticketing/internal/metrics"
	"github.com/stella-events/ticketing/internal/model"
	"github.com/stella-events/ticketing/internal/notify"
	"github.com/stella-events/ticketing/internal/repository"
	"github.com/stella-events/ticketing/internal/token"
)

// Quantity bounds per confirmation; out-of-range values are clamped, the
// same policy the checkout call applies.
const (
	minQuantity = 1
	maxQuantity = 10
)

// How many times a single ticket insert retries on a token collision before
// the pipeline gives up. Collisions are astronomically unlikely; the bound
// exists so a broken entropy source cannot spin forever.
const tokenRetryLimit = 5

// FulfillmentService turns payment confirmations into order and ticket rows
// exactly once, no matter how often the confirmation is delivered.
type FulfillmentService struct {
	orders     OrderStore
	catalog    CatalogStore
	tickets    TicketStore
	outbox     NotificationOutbox
	encoder    encoder.Encoder
	dispatcher notify.Dispatcher
	log        zerolog.Logger
}

// NewFulfillmentService constructs a FulfillmentService with its
// dependencies.
func NewFulfillmentService(
	orders OrderStore,
	catalog CatalogStore,
	tickets TicketStore,
	outbox NotificationOutbox,
	enc encoder.Encoder,
	dispatcher notify.Dispatcher,
	log zerolog.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		orders:     orders,
		catalog:    catalog,
		tickets:    tickets,
		outbox:     outbox,
		encoder:    enc,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Fulfill processes one payment confirmation. It is safe to call any number
// of times with the same external reference: replays and retries resolve to
// the already-created order, topping up tickets if a previous attempt died
// partway through issuance.
//
// Only two failures reach the caller: ErrReferenceNotFound for confirmations
// naming unknown catalog entries, and transient store errors, which are safe
// to retry because re-entry is idempotent.
func (s *FulfillmentService) Fulfill(ctx context.Context, c model.Confirmation) (*model.Order, error) {
	start := time.Now()
	defer func() { metrics.FulfillmentDuration.Observe(time.Since(start).Seconds()) }()

	c.ExternalRef = strings.TrimSpace(c.ExternalRef)
	c.BuyerEmail = strings.TrimSpace(strings.ToLower(c.BuyerEmail))
	if c.ExternalRef == "" {
		return nil, fmt.Errorf("confirmation has no external reference")
	}
	if c.BuyerEmail == "" {
		return nil, fmt.Errorf("confirmation has no buyer email")
	}
	c.Quantity = clampQuantity(c.Quantity)

	log := s.log.With().Str("ref", c.ExternalRef).Logger()

	// Idempotency guard: a confirmation we have seen before resolves to its
	// existing order before any write happens.
	existing, err := s.orders.GetByExternalRef(ctx, c.ExternalRef)
	if err == nil {
		return s.resume(ctx, log, existing)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		metrics.FulfillmentsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("lookup order by reference: %w", err)
	}

	// The confirmation's metadata originated client-side; re-validate it
	// against the catalog instead of trusting it.
	event, err := s.catalog.GetEvent(ctx, c.EventID)
	if err != nil {
		return nil, s.referenceErr(log, "event", c.EventID, err)
	}
	tt, err := s.catalog.GetTicketType(ctx, c.TicketTypeID)
	if err != nil {
		return nil, s.referenceErr(log, "ticket type", c.TicketTypeID, err)
	}
	if tt.EventID != event.ID {
		metrics.FulfillmentsTotal.WithLabelValues("reference_not_found").Inc()
		log.Error().Str("ticket_type_id", tt.ID).Str("event_id", event.ID).
			Msg("ticket type does not belong to event")
		return nil, ErrReferenceNotFound
	}

	order := &model.Order{
		ID:           uuid.New().String(),
		ExternalRef:  c.ExternalRef,
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		Quantity:     c.Quantity,
		BuyerEmail:   c.BuyerEmail,
		BuyerName:    strings.TrimSpace(c.BuyerName),
		Currency:     tt.Currency,
		TotalCents:   tt.PriceCents * int64(c.Quantity),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			// Lost the insert race against a concurrent duplicate delivery.
			// The row exists, so this delivery succeeds quietly.
			log.Info().Msg("order insert lost duplicate race, resolving to existing order")
			existing, err := s.orders.GetByExternalRef(ctx, c.ExternalRef)
			if err != nil {
				return nil, fmt.Errorf("fetch order after duplicate insert: %w", err)
			}
			return s.resume(ctx, log, existing)
		}
		metrics.FulfillmentsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create order: %w", err)
	}

	log.Info().Str("order_id", order.ID).Int("quantity", order.Quantity).
		Int64("total_cents", order.TotalCents).Msg("order created")

	if err := s.issue(ctx, order, 0); err != nil {
		// The order row is committed; a retry of the same confirmation will
		// land in resume() and top up the missing tickets.
		metrics.FulfillmentsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.FulfillmentsTotal.WithLabelValues("created").Inc()
	s.deliverAndLog(ctx, log, order)
	return order, nil
}

// resume handles a confirmation whose order already exists: either a pure
// replay (nothing to do) or the retry after a partial issuance (top up the
// missing tickets, then deliver).
func (s *FulfillmentService) resume(ctx context.Context, log zerolog.Logger, order *model.Order) (*model.Order, error) {
	have, err := s.tickets.CountByOrder(ctx, order.ID)
	if err != nil {
		metrics.FulfillmentsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("count tickets for order %s: %w", order.ID, err)
	}

	if have >= order.Quantity {
		log.Info().Str("order_id", order.ID).Msg("confirmation already processed")
		metrics.FulfillmentsTotal.WithLabelValues("duplicate").Inc()
		return order, nil
	}

	log.Warn().Str("order_id", order.ID).Int("have", have).Int("want", order.Quantity).
		Msg("partial issuance detected, topping up")
	if err := s.issue(ctx, order, have); err != nil {
		metrics.FulfillmentsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.FulfillmentsTotal.WithLabelValues("resumed").Inc()
	s.deliverAndLog(ctx, log, order)
	return order, nil
}

// issue creates ticket rows from index have up to the order's quantity. A
// token unique-violation regenerates and retries that single insert; any
// other error aborts, leaving the order resumable.
func (s *FulfillmentService) issue(ctx context.Context, order *model.Order, have int) error {
	for i := have; i < order.Quantity; i++ {
		inserted := false
		for attempt := 0; attempt < tokenRetryLimit; attempt++ {
			t := &model.Ticket{
				ID:           uuid.New().String(),
				OrderID:      order.ID,
				EventID:      order.EventID,
				TicketTypeID: order.TicketTypeID,
				Token:        token.New(),
				Status:       model.TicketActive,
				CreatedAt:    time.Now().UTC(),
			}
			err := s.tickets.Create(ctx, t)
			if err == nil {
				metrics.TicketsIssuedTotal.Inc()
				inserted = true
				break
			}
			if errors.Is(err, repository.ErrDuplicateToken) {
				s.log.Warn().Str("order_id", order.ID).Msg("token collision, regenerating")
				continue
			}
			return fmt.Errorf("insert ticket %d/%d for order %s: %w", i+1, order.Quantity, order.ID, err)
		}
		if !inserted {
			return fmt.Errorf("token collisions exhausted for order %s", order.ID)
		}
	}
	return nil
}

// deliverAndLog dispatches the ticket email and, on failure, hands the
// order to the outbox. Nothing here can fail fulfillment: the tickets are
// already valid and redeemable.
func (s *FulfillmentService) deliverAndLog(ctx context.Context, log zerolog.Logger, order *model.Order) {
	if err := s.Deliver(ctx, order.ID); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("order_id", order.ID).Msg("ticket email dispatch failed, enqueueing for resend")
		if qerr := s.outbox.Enqueue(ctx, order.ID, order.BuyerEmail, err.Error()); qerr != nil {
			log.Error().Err(qerr).Str("order_id", order.ID).Msg("outbox enqueue failed")
		}
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

// Deliver rebuilds and sends the ticket email for an order. The resend
// worker calls this for outbox entries; the pipeline calls it once after
// issuance.
func (s *FulfillmentService) Deliver(ctx context.Context, orderID string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	event, err := s.catalog.GetEvent(ctx, order.EventID)
	if err != nil {
		return fmt.Errorf("load event for order %s: %w", orderID, err)
	}
	tt, err := s.catalog.GetTicketType(ctx, order.TicketTypeID)
	if err != nil {
		return fmt.Errorf("load ticket type for order %s: %w", orderID, err)
	}
	tickets, err := s.tickets.ListByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("load tickets for order %s: %w", orderID, err)
	}

	images := make(map[string][]byte, len(tickets))
	for _, t := range tickets {
		png, err := s.encoder.Encode(t.Token)
		if err != nil {
			return fmt.Errorf("encode credential for ticket %s: %w", t.ID, err)
		}
		images[t.ID] = png
	}

	msg := notify.BuildTicketEmail(order, event, tt, tickets, images)
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		return err
	}
	s.log.Info().Str("order_id", order.ID).Int("tickets", len(tickets)).Msg("ticket email sent")
	return nil
}

// Order returns an order with its tickets for the read surface.
func (s *FulfillmentService) Order(ctx context.Context, id string) (*model.Order, []model.Ticket, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	tickets, err := s.tickets.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return order, tickets, nil
}

func (s *FulfillmentService) referenceErr(log zerolog.Logger, kind, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		metrics.FulfillmentsTotal.WithLabelValues("reference_not_found").Inc()
		log.Error().Str("id", id).Msgf("confirmation references unknown %s", kind)
		return ErrReferenceNotFound
	}
	metrics.FulfillmentsTotal.WithLabelValues("error").Inc()
	return fmt.Errorf("resolve %s %s: %w", kind, id, err)
}

func clampQuantity(q int) int {
	if q < minQuantity {
		return minQuantity
	}
	if q > maxQuantity {
		return maxQuantity
	}
	return q
}
