package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stella-events/ticketing/internal/metrics"
	"github.com/stella-events/ticketing/internal/model"
	"github.com/stella-events/ticketing/internal/repository"
)

// RedemptionService runs the ticket lifecycle at the gate. The only
// mechanism deciding who gets in is the store's conditional update: the
// service issues it unconditionally and branches on whether a row changed,
// so two devices scanning the same token milliseconds apart resolve
// deterministically to one Accepted and one AlreadyRedeemed.
type RedemptionService struct {
	tickets TicketStore
	audit   RedemptionLog
	log     zerolog.Logger
	now     func() time.Time
}

// NewRedemptionService constructs a RedemptionService.
func NewRedemptionService(tickets TicketStore, audit RedemptionLog, log zerolog.Logger) *RedemptionService {
	return &RedemptionService{
		tickets: tickets,
		audit:   audit,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Redeem consumes a ticket's validity. Invalid, already-redeemed, and void
// outcomes are verdicts, not errors; the returned error is non-nil only for
// store unavailability.
func (s *RedemptionService) Redeem(ctx context.Context, tok string) (model.Verdict, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		// Same verdict as an unknown token: the response must not tell a
		// scanning adversary why a token was rejected.
		metrics.RedemptionsTotal.WithLabelValues(string(model.VerdictInvalid)).Inc()
		return model.Verdict{Kind: model.VerdictInvalid}, nil
	}

	attemptedAt := s.now()
	t, won, err := s.tickets.Redeem(ctx, tok, attemptedAt)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("redeem: %w", err)
	}
	if won {
		s.logAttempt(ctx, t, model.VerdictAccepted, attemptedAt)
		metrics.RedemptionsTotal.WithLabelValues(string(model.VerdictAccepted)).Inc()
		s.log.Info().Str("ticket_id", t.ID).Str("event_id", t.EventID).Msg("ticket redeemed")
		return model.Verdict{
			Kind:       model.VerdictAccepted,
			TicketID:   t.ID,
			EventID:    t.EventID,
			RedeemedAt: t.RedeemedAt,
		}, nil
	}

	// No row changed: the token is unknown, or the ticket already left the
	// active state. Re-read to tell gate staff which.
	cur, err := s.tickets.FindByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RedemptionsTotal.WithLabelValues(string(model.VerdictInvalid)).Inc()
			s.log.Warn().Msg("scan of unknown token")
			return model.Verdict{Kind: model.VerdictInvalid}, nil
		}
		return model.Verdict{}, fmt.Errorf("re-read ticket: %w", err)
	}

	var verdict model.Verdict
	switch cur.Status {
	case model.TicketRedeemed:
		verdict = model.Verdict{
			Kind:       model.VerdictAlreadyRedeemed,
			TicketID:   cur.ID,
			EventID:    cur.EventID,
			RedeemedAt: cur.RedeemedAt,
		}
	case model.TicketVoid:
		verdict = model.Verdict{Kind: model.VerdictVoid, TicketID: cur.ID, EventID: cur.EventID}
	default:
		verdict = model.Verdict{Kind: model.VerdictInactive, TicketID: cur.ID, EventID: cur.EventID}
	}

	s.logAttempt(ctx, cur, verdict.Kind, attemptedAt)
	metrics.RedemptionsTotal.WithLabelValues(string(verdict.Kind)).Inc()
	return verdict, nil
}

// Void performs the administrative active→void transition.
func (s *RedemptionService) Void(ctx context.Context, ticketID string) error {
	changed, err := s.tickets.Void(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("void: %w", err)
	}
	if changed {
		s.log.Info().Str("ticket_id", ticketID).Msg("ticket voided")
		return nil
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("re-read ticket: %w", err)
	}
	return ErrNotVoidable
}

// logAttempt appends to the audit trail. The log never gates the verdict;
// failures are logged and dropped.
func (s *RedemptionService) logAttempt(ctx context.Context, t *model.Ticket, kind model.VerdictKind, at time.Time) {
	rec := &model.RedemptionRecord{
		ID:          uuid.New().String(),
		TicketID:    t.ID,
		EventID:     t.EventID,
		Verdict:     string(kind),
		AttemptedAt: at,
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("ticket_id", t.ID).Msg("audit append failed")
	}
}
