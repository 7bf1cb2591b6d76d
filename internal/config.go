package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/rcallaway/fieldpay/internal/billing"
)

type Config struct {
	Env         string
	LogLevel    string
	Port        uint16
	DatabaseUrl string
	NatsUrl     string
	Payments    PaymentRulesConfig
	Stripe      billing.StripeConfig
}

// PaymentRulesConfig tunes the payment validation policy.
type PaymentRulesConfig struct {
	// MaxPaymentCents caps a single payment amount.
	MaxPaymentCents int64

	// AllowOverpayment downgrades overpayment rejection to a warning.
	AllowOverpayment bool

	// AllowPartialPayments permits payments below the remaining balance.
	AllowPartialPayments bool

	// RequireInvoiceMatch rejects payments whose invoice number matches no
	// known invoice.
	RequireInvoiceMatch bool
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	err := godotenv.Load()
	if err != nil {
		// Walk up directories to find .env (max 2 parent directories)
		dir, _ := os.Getwd()
		found := false
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				found = true
				break
			}
		}
		if !found {
			slog.Default().Warn("Warning: .env file not found, using environment variables and defaults")
		}
	}

	cfg := &Config{
		Env:         getEnv("ENV", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvUint16("PORT", 3000),
		DatabaseUrl: getEnv("DATABASE_URL", ""),
		NatsUrl:     getEnv("NATS_URL", ""),
		Payments: PaymentRulesConfig{
			MaxPaymentCents:      getEnvInt64("MAX_PAYMENT_CENTS", 5_000_000),
			AllowOverpayment:     getEnvBool("ALLOW_OVERPAYMENT", false),
			AllowPartialPayments: getEnvBool("ALLOW_PARTIAL_PAYMENTS", true),
			RequireInvoiceMatch:  getEnvBool("REQUIRE_INVOICE_MATCH", true),
		},
		Stripe: billing.StripeConfig{
			APIKey:        getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
	}

	// Validate env
	validEnv := cfg.Env == "dev" || cfg.Env == "prod"
	if !validEnv {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.Env))
		cfg.Env = "prod"
	}

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", cfg.LogLevel))
		cfg.LogLevel = "info"
	}

	// A database is mandatory outside dev; dev falls back to the in-memory store.
	if cfg.Env == "prod" && cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set in production environment")
	}

	if cfg.Payments.MaxPaymentCents <= 0 {
		return nil, fmt.Errorf("MAX_PAYMENT_CENTS must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint16(key string, defaultValue uint16) uint16 {
	if value := os.Getenv(key); value != "" {
		var intValue uint16
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var intValue int64
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
