// cmd/consumer reads payment confirmations from Kafka and runs them
// through the fulfillment pipeline. It shares the service layer with
// cmd/server; only the ingress differs.
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
	"github.com/stella-events/ticketing/internal/stream"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg.Log.Level, "consumer")

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

	fulfillSvc := service.NewFulfillmentService(
		repository.NewOrderRepository(pool),
		repository.NewCatalogRepository(pool),
		repository.NewTicketRepository(pool),
		repository.NewOutboxRepository(pool),
		encoder.NewQR(),
		mailer,
		log,
	)

	consumer := stream.NewConsumer(cfg.Kafka, fulfillSvc, log)
	defer consumer.Close()

	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("consumer starting")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("consumer stopped")
	}
	log.Info().Msg("consumer stopped")
}

func newLogger(level, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("component", component).Logger()
}
