// Package telemetry exposes Prometheus metrics for business-level
// observability of the payment and invoice pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Payments
	PaymentsRecorded *prometheus.CounterVec
	PaymentsRejected *prometheus.CounterVec
	PaymentsRefunded *prometheus.CounterVec
	PaymentAmount    *prometheus.HistogramVec

	// Validation outcomes
	ValidationWarnings *prometheus.CounterVec

	// Invoices
	InvoicesCreated *prometheus.CounterVec
	InvoicesPaid    prometheus.Counter
	InvoicesOverdue prometheus.Counter

	// Refund amounts
	RefundAmount prometheus.Counter
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "fieldpay"
	}

	subsystem := "business"

	m := &BusinessMetrics{
		PaymentsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_recorded_total",
				Help:      "Total payments recorded",
			},
			[]string{"method", "status"},
		),
		PaymentsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_rejected_total",
				Help:      "Total payments rejected by validation",
			},
			[]string{"method"},
		),
		PaymentsRefunded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_refunded_total",
				Help:      "Total payments refunded",
			},
			[]string{"method"},
		),
		PaymentAmount: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_amount_cents",
				Help:      "Recorded payment amount distribution in cents",
				Buckets:   []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000},
			},
			[]string{"method"},
		),
		ValidationWarnings: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "validation_warnings_total",
				Help:      "Total validation warnings attached to accepted payments",
			},
			[]string{"kind"}, // kind: partial, duplicate, other
		),
		InvoicesCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoices_created_total",
				Help:      "Total invoices created",
			},
			[]string{"status"},
		),
		InvoicesPaid: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoices_paid_total",
				Help:      "Total invoices settled in full",
			},
		),
		InvoicesOverdue: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoices_overdue_total",
				Help:      "Total invoices marked overdue by the nightly sweep",
			},
		),
		RefundAmount: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refund_amount_cents",
				Help:      "Total refund amount in cents",
			},
		),
	}

	return m
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
