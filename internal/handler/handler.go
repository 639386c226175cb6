// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stella-events/ticketing/internal/model"
	"github.com/stella-events/ticketing/internal/payment"
	"github.com/stella-events/ticketing/internal/repository"
	"github.com/stella-events/ticketing/internal/service"
)

// Fulfiller processes verified payment confirmations.
type Fulfiller interface {
	Fulfill(ctx context.Context, c model.Confirmation) (*model.Order, error)
}

// ConfirmationParser verifies and decodes raw webhook deliveries.
type ConfirmationParser interface {
	ParseConfirmation(payload []byte, sigHeader string) (model.Confirmation, bool, error)
}

// Redeemer runs the gate-side ticket lifecycle.
type Redeemer interface {
	Redeem(ctx context.Context, token string) (model.Verdict, error)
	Void(ctx context.Context, ticketID string) error
}

// CheckoutStarter begins hosted payment sessions.
type CheckoutStarter interface {
	CreateSession(ctx context.Context, req model.CheckoutRequest) (string, error)
}

// Catalog serves the read-only event/ticket-type surface.
type Catalog interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]model.TicketType, error)
}

// OrderReader serves the order read surface.
type OrderReader interface {
	Order(ctx context.Context, id string) (*model.Order, []model.Ticket, error)
}

// Handler holds all HTTP handlers for the ticketing API.
type Handler struct {
	parser    ConfirmationParser
	fulfiller Fulfiller
	redeemer  Redeemer
	checkout  CheckoutStarter
	catalog   Catalog
	orders    OrderReader
	dedupe    *redis.Client // optional advisory replay fast path
	log       zerolog.Logger
}

// New constructs a Handler. dedupe may be nil; the database's uniqueness
// constraint stays authoritative either way.
func New(parser ConfirmationParser, fulfiller Fulfiller, redeemer Redeemer,
	checkout CheckoutStarter, catalog Catalog, orders OrderReader,
	dedupe *redis.Client, log zerolog.Logger) *Handler {
	return &Handler{
		parser:    parser,
		fulfiller: fulfiller,
		redeemer:  redeemer,
		checkout:  checkout,
		catalog:   catalog,
		orders:    orders,
		dedupe:    dedupe,
		log:       log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// PaymentWebhook handles POST /webhooks/payment. The processor delivers
// at-least-once; anything that cannot be improved by redelivery is
// acknowledged with 200 so the processor stops retrying.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		writeError(w, http.StatusBadRequest, "missing signature")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	confirmation, ok, err := h.parser.ParseConfirmation(body, sig)
	if err != nil {
		if errors.Is(err, payment.ErrMissingMetadata) {
			h.log.Error().Err(err).Msg("confirmation missing metadata")
			writeError(w, http.StatusBadRequest, "missing required metadata")
			return
		}
		h.log.Warn().Err(err).Msg("webhook rejected")
		writeError(w, http.StatusBadRequest, "signature verification failed")
		return
	}
	if !ok {
		// An event type this engine does not handle; acknowledge it.
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	ctx := r.Context()
	dedupeKey := "fulfilled:" + confirmation.ExternalRef
	if h.dedupe != nil {
		if n, err := h.dedupe.Exists(ctx, dedupeKey).Result(); err == nil && n > 0 {
			h.log.Info().Str("ref", confirmation.ExternalRef).Msg("replay short-circuited by cache")
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
	}

	order, err := h.fulfiller.Fulfill(ctx, confirmation)
	if err != nil {
		if errors.Is(err, service.ErrReferenceNotFound) {
			// Redelivery cannot fix a missing catalog row. Acknowledge and
			// leave the loud log/metric trail for operators.
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		h.log.Error().Err(err).Str("ref", confirmation.ExternalRef).Msg("fulfillment failed")
		writeError(w, http.StatusInternalServerError, "fulfillment failed")
		return
	}

	if h.dedupe != nil {
		// Advisory only; set after success so a crashed attempt stays
		// retryable through the resume path.
		h.dedupe.Set(ctx, dedupeKey, order.ID, 24*time.Hour)
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "order_id": order.ID})
}

type scanResponse struct {
	model.Verdict
	Message string `json:"message"`
}

// Scan handles POST /api/scan. Every verdict is a distinct status and
// message so gate staff can make an entry decision without guessing.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req model.ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	verdict, err := h.redeemer.Redeem(r.Context(), req.Token)
	if err != nil {
		h.log.Error().Err(err).Msg("redeem failed")
		writeError(w, http.StatusServiceUnavailable, "ticket store unavailable")
		return
	}

	status, message := http.StatusOK, ""
	switch verdict.Kind {
	case model.VerdictAccepted:
		message = "Check-in successful"
	case model.VerdictAlreadyRedeemed:
		status, message = http.StatusConflict, "Ticket already used"
	case model.VerdictVoid:
		status, message = http.StatusGone, "Ticket has been voided"
	case model.VerdictInactive:
		status, message = http.StatusForbidden, "Ticket is not active"
	default:
		status, message = http.StatusNotFound, "Invalid ticket"
	}
	writeJSON(w, status, scanResponse{Verdict: verdict, Message: message})
}

// VoidTicket handles POST /api/tickets/{id}/void.
func (h *Handler) VoidTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.redeemer.Void(r.Context(), id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "ticket not found")
	case errors.Is(err, service.ErrNotVoidable):
		writeError(w, http.StatusConflict, "ticket is not voidable")
	default:
		h.log.Error().Err(err).Str("ticket_id", id).Msg("void failed")
		writeError(w, http.StatusInternalServerError, "failed to void ticket")
	}
}

// CreateCheckout handles POST /api/checkout and returns the processor's
// redirect target.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	url, err := h.checkout.CreateSession(r.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event or ticket type not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": url})
}

// ListEvents handles GET /api/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.catalog.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /api/events/{id} and includes the event's ticket
// types for the buyer flow.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	event, err := h.catalog.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	types, err := h.catalog.ListTicketTypes(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list ticket types")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": event, "ticket_types": types})
}

// GetOrder handles GET /api/orders/{id}. Tokens are bearer credentials and
// never leave over this surface; only a recognisable suffix is returned.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, tickets, err := h.orders.Order(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	for i := range tickets {
		tickets[i].Token = redactToken(tickets[i].Token)
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order, "tickets": tickets})
}

func redactToken(tok string) string {
	const visible = 6
	if len(tok) <= visible {
		return tok
	}
	return "…" + tok[len(tok)-visible:]
}

// HealthCheck handles GET /health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
