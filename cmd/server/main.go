// cmd/server is the HTTP entry point: checkout, webhooks, gate scans and
// the read API. Fulfillment from the confirmation stream runs in
// cmd/consumer; email retries run in cmd/worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stella-events/ticketing/internal/config"
	"github.com/stella-events/ticketing/internal/database"
	"github.com/stella-events/ticketing/internal/encoder"
	"github.com/stella-events/ticketing/internal/handler"
	"github.com/stella-events/ticketing/internal/metrics"
	"github.com/stella-events/ticketing/internal/notify"
	"github.com/stella-events/ticketing/internal/payment"
	"github.com/stella-events/ticketing/internal/repository"
	"github.com/stella-events/ticketing/internal/service"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg.Log.Level, "server")

	ctx := context.Background()
	metrics.Register()

	// ── 1. Connect to PostgreSQL (and Redis when configured) ─────────────
	pool, err := database.NewPool(ctx, cfg.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			// The cache is an advisory fast path only; keep serving without it.
			log.Warn().Err(err).Msg("redis unavailable, replay cache disabled")
			rdb = nil
		}
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	orderRepo := repository.NewOrderRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	redemptionRepo := repository.NewRedemptionLogRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)

	mailer, err := notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	if err != nil {
		log.Fatal().Err(err).Msg("smtp")
	}
	provider := payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.App.URL)

	fulfillSvc := service.NewFulfillmentService(
		orderRepo, catalogRepo, ticketRepo, outboxRepo,
		encoder.NewQR(), mailer, log,
	)
	redeemSvc := service.NewRedemptionService(ticketRepo, redemptionRepo, log)
	checkoutSvc := service.NewCheckoutService(catalogRepo, provider, log)

	h := handler.New(provider, fulfillSvc, redeemSvc, checkoutSvc, catalogRepo, fulfillSvc, rdb, log)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger(log))
	r.Use(handler.CORS)
	r.Use(handler.Instrument)

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/payment", h.PaymentWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/checkout", h.CreateCheckout)
		r.Post("/scan", h.Scan)
		r.Get("/events", h.ListEvents)
		r.Get("/events/{id}", h.GetEvent)
		r.Get("/orders/{id}", h.GetOrder)
		r.Post("/tickets/{id}/void", h.VoidTicket)
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func newLogger(level, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("component", component).Logger()
}
