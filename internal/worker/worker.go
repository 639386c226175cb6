// Package worker retries ticket emails whose first dispatch failed. The
// outbox is the only state it owns; issuance has long since committed by the
// time a row lands here.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stella-events/ticketing/internal/metrics"
	"github.com/stella-events/ticketing/internal/model"
)

// Outbox is the queue side the worker drains.
type Outbox interface {
	ClaimBatch(ctx context.Context, limit int) ([]model.PendingNotification, error)
	MarkSent(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string, attempts int, lastError string, nextAttempt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error
}

// Deliverer rebuilds and sends the ticket email for one order.
type Deliverer interface {
	Deliver(ctx context.Context, orderID string) error
}

// Config tunes the poll loop.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Backoff      BackoffConfig
}

// Notifier polls the outbox and re-attempts deliveries.
type Notifier struct {
	outbox    Outbox
	deliverer Deliverer
	cfg       Config
	log       zerolog.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(outbox Outbox, deliverer Deliverer, cfg Config, log zerolog.Logger) *Notifier {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	return &Notifier{outbox: outbox, deliverer: deliverer, cfg: cfg, log: log}
}

// Run polls until the context is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.log.Info().Dur("interval", n.cfg.PollInterval).Msg("notification worker started")
	ticker := time.NewTicker(n.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.ProcessBatch(ctx); err != nil {
				n.log.Error().Err(err).Msg("outbox batch failed")
			}
		}
	}
}

// ProcessBatch claims and works through one batch. Exported so operators can
// trigger it out of cycle and tests can drive it directly.
func (n *Notifier) ProcessBatch(ctx context.Context) error {
	batch, err := n.outbox.ClaimBatch(ctx, n.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, pending := range batch {
		n.process(ctx, pending)
	}
	return nil
}

func (n *Notifier) process(ctx context.Context, pending model.PendingNotification) {
	log := n.log.With().Str("outbox_id", pending.ID).Str("order_id", pending.OrderID).Logger()

	err := n.deliverer.Deliver(ctx, pending.OrderID)
	if err == nil {
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		if err := n.outbox.MarkSent(ctx, pending.ID); err != nil {
			// The email went out but the row stays claimable; the buyer may
			// get a duplicate. Acceptable for a best-effort channel.
			log.Error().Err(err).Msg("mark sent failed")
		}
		log.Info().Msg("ticket email resent")
		return
	}

	metrics.NotificationsTotal.WithLabelValues("failed").Inc()
	attempts := pending.Attempts + 1
	if attempts >= n.cfg.MaxAttempts {
		log.Error().Err(err).Int("attempts", attempts).Msg("notification exhausted retries, parking")
		if err := n.outbox.MarkFailed(ctx, pending.ID, attempts, err.Error()); err != nil {
			log.Error().Err(err).Msg("mark failed failed")
		}
		return
	}

	next := NextRetryAt(time.Now().UTC(), attempts, n.cfg.Backoff, nil)
	log.Warn().Err(err).Int("attempts", attempts).Time("next_attempt", next).Msg("notification send failed, will retry")
	if err := n.outbox.MarkRetry(ctx, pending.ID, attempts, err.Error(), next); err != nil {
		log.Error().Err(err).Msg("mark retry failed")
	}
}
