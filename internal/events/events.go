// Package events publishes domain events for downstream consumers
// (receipt emails, dashboards, audit trails). Publishing is best-effort:
// the payment flow never fails because an event could not be delivered.
package events

import (
	"context"
	"time"
)

// Subjects for published events.
const (
	SubjectPaymentRecorded = "fieldpay.payment.recorded"
	SubjectPaymentUpdated  = "fieldpay.payment.updated"
	SubjectPaymentDeleted  = "fieldpay.payment.deleted"
	SubjectPaymentRefunded = "fieldpay.payment.refunded"
	SubjectInvoicePaid     = "fieldpay.invoice.paid"
)

// PaymentEvent describes a payment write.
type PaymentEvent struct {
	PaymentID     string    `json:"payment_id"`
	PaymentNumber string    `json:"payment_number"`
	InvoiceNumber string    `json:"invoice_number"`
	AmountCents   int64     `json:"amount_cents"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// InvoiceEvent describes an invoice status change.
type InvoiceEvent struct {
	InvoiceID     string    `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	BalanceCents  int64     `json:"balance_cents"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers domain events to a message bus.
type Publisher interface {
	// Publish sends a JSON-encoded event on the given subject.
	Publish(ctx context.Context, subject string, event any) error

	// Close releases the underlying connection.
	Close()
}

// NoopPublisher discards events. Used when no message bus is configured.
type NoopPublisher struct{}

// Publish discards the event.
func (NoopPublisher) Publish(ctx context.Context, subject string, event any) error { return nil }

// Close is a no-op.
func (NoopPublisher) Close() {}
