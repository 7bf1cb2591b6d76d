// Package jobs contains background jobs run alongside the API server.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/rcallaway/fieldpay/internal/domain"
	"github.com/rcallaway/fieldpay/internal/telemetry"
)

// OverdueSweeper periodically moves past-due sent invoices to overdue.
type OverdueSweeper struct {
	invoices domain.InvoiceService
	interval time.Duration
	logger   *slog.Logger
}

// NewOverdueSweeper creates a sweeper. A zero interval defaults to 24 hours.
func NewOverdueSweeper(invoices domain.InvoiceService, interval time.Duration, logger *slog.Logger) *OverdueSweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueSweeper{
		invoices: invoices,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the sweep loop until ctx is cancelled. It sweeps once
// immediately so a restart does not delay overdue marking by a full
// interval.
func (s *OverdueSweeper) Start(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OverdueSweeper) sweep(ctx context.Context) {
	count, err := s.invoices.MarkInvoicesOverdue(ctx)
	if err != nil {
		s.logger.Error("overdue sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("marked invoices overdue", "count", count)
		if telemetry.Business != nil {
			telemetry.Business.InvoicesOverdue.Add(float64(count))
		}
	}
}
