package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rcallaway/fieldpay/internal"
	"github.com/rcallaway/fieldpay/internal/billing"
	"github.com/rcallaway/fieldpay/internal/domain"
	"github.com/rcallaway/fieldpay/internal/events"
	"github.com/rcallaway/fieldpay/internal/handler"
	"github.com/rcallaway/fieldpay/internal/jobs"
	"github.com/rcallaway/fieldpay/internal/memory"
	"github.com/rcallaway/fieldpay/internal/middleware"
	"github.com/rcallaway/fieldpay/internal/postgres"
	"github.com/rcallaway/fieldpay/internal/router"
	"github.com/rcallaway/fieldpay/internal/routes"
	"github.com/rcallaway/fieldpay/internal/service"
	"github.com/rcallaway/fieldpay/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// ==========================================================================
	// Storage
	// ==========================================================================

	var store domain.Store
	if cfg.DatabaseUrl != "" {
		// database/sql connection for migrations
		logger.Info("Connecting to database...")
		sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer sqlDB.Close()

		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		logger.Info("Database connection established")

		logger.Info("Running database migrations...")
		if err := internal.RunMigrations(sqlDB); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database migrations completed successfully")

		// pgx connection pool for the application
		pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		store = postgres.NewStore(pool)
	} else {
		logger.Warn("No DATABASE_URL configured, using in-memory store; data will not survive restarts")
		store = memory.NewStore()
	}

	// ==========================================================================
	// Providers
	// ==========================================================================

	// Stripe backs refunds for card and online payments; without a key,
	// refunds only touch the local records.
	var billingProvider billing.Provider
	if cfg.Stripe.APIKey != "" {
		stripeProvider, err := billing.NewStripeProvider(cfg.Stripe)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
		billingProvider = stripeProvider
		logger.Info("Stripe billing provider initialized", "test_mode", cfg.Stripe.IsTestMode())
	} else {
		logger.Warn("No STRIPE_SECRET_KEY configured, refunds will not reach the card processor")
	}

	// NATS carries payment and invoice events to downstream consumers.
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NatsUrl != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NatsUrl)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("NATS event publisher initialized", "url", cfg.NatsUrl)
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	validator := service.NewPaymentValidator(store, service.Rules{
		MaxPaymentCents:      cfg.Payments.MaxPaymentCents,
		AllowOverpayment:     cfg.Payments.AllowOverpayment,
		AllowPartialPayments: cfg.Payments.AllowPartialPayments,
		RequireInvoiceMatch:  cfg.Payments.RequireInvoiceMatch,
	})
	paymentService := service.NewPaymentService(store, validator, billingProvider, publisher)
	invoiceService := service.NewInvoiceService(store)

	// ==========================================================================
	// Telemetry and routing
	// ==========================================================================

	metrics := middleware.NewMetrics("fieldpay")
	telemetry.InitBusinessMetrics("fieldpay")

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.MaxBodySize(middleware.SmallMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	apiDeps := routes.APIDeps{
		PaymentHandler: handler.NewPaymentHandler(paymentService, logger),
		InvoiceHandler: handler.NewInvoiceHandler(invoiceService, logger),
	}
	if billingProvider != nil && cfg.Stripe.WebhookSecret != "" {
		apiDeps.WebhookHandler = handler.NewWebhookHandler(billingProvider, cfg.Stripe.WebhookSecret, logger)
	}
	routes.RegisterAPIRoutes(r, apiDeps)

	// ==========================================================================
	// Background jobs
	// ==========================================================================

	// Nightly sweep moving past-due sent invoices to overdue.
	sweeper := jobs.NewOverdueSweeper(invoiceService, 24*time.Hour, logger)
	go sweeper.Start(ctx)

	// ==========================================================================
	// Start server
	// ==========================================================================

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr, "env", cfg.Env)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
