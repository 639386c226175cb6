// cmd/worker drains the notification outbox: ticket emails whose first
// dispatch failed are rebuilt and resent with backoff until they go out
// or exhaust their attempts.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/stella-events/ticketing/internal/config"
	"github.com/stella-events/ticketing/internal/database"
	"github.com/stella-events/ticketing/internal/encoder"
	"github.com/stella-events/ticketing/internal/metrics"
	"github.com/stella-events/ticketing/internal/notify"
	"github.com/stella-events/ticketing/internal/repository"
	"github.com/stella-events/ticketing/internal/service"
	"github.com/stella-events/ticketing/internal/worker"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg.Log.Level, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	pool, err := database.NewPool(ctx, cfg.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	mailer, err := notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	if err != nil {
		log.Fatal().Err(err).Msg("smtp")
	}

	outboxRepo := repository.NewOutboxRepository(pool)

	// Deliveries are rebuilt from the order, not replayed from a stored
	// payload, so the worker carries the full fulfillment wiring.
	fulfillSvc := service.NewFulfillmentService(
		repository.NewOrderRepository(pool),
		repository.NewCatalogRepository(pool),
		repository.NewTicketRepository(pool),
		outboxRepo,
		encoder.NewQR(),
		mailer,
		log,
	)

	notifier := worker.NewNotifier(outboxRepo, fulfillSvc, worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		MaxAttempts:  cfg.Worker.MaxAttempts,
		Backoff:      worker.DefaultBackoff(),
	}, log)

	log.Info().Dur("poll_interval", cfg.Worker.PollInterval).Int("batch_size", cfg.Worker.BatchSize).Msg("worker starting")
	if err := notifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("worker stopped")
	}
	log.Info().Msg("worker stopped")
}

func newLogger(level, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("component", component).Logger()
}
