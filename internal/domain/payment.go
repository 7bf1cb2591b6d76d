package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod identifies how a payment was made.
type PaymentMethod string

const (
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
	MethodCheck        PaymentMethod = "check"
	MethodOnline       PaymentMethod = "online"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCreditCard, MethodBankTransfer, MethodCash, MethodCheck, MethodOnline:
		return true
	}
	return false
}

// PaymentStatus is the lifecycle state of a payment.
// Only completed payments count toward an invoice's paid amount.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Payment records money received against an invoice.
// The invoice is referenced by its human-readable number, not its id.
type Payment struct {
	ID            uuid.UUID     `json:"id"`
	PaymentNumber string        `json:"payment_number"`
	InvoiceNumber string        `json:"invoice_number"`
	ClientName    string        `json:"client_name"`
	AmountCents   int64         `json:"amount_cents"`
	PaymentDate   time.Time     `json:"payment_date"`
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	Reference     string        `json:"reference"`
	Notes         string        `json:"notes"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// PaymentInput is a candidate payment submitted for validation and
// processing. Zero values mean "not supplied".
type PaymentInput struct {
	PaymentNumber string
	InvoiceNumber string
	ClientName    string
	AmountCents   int64
	PaymentDate   time.Time
	Method        PaymentMethod
	Status        PaymentStatus
	Reference     string
	Notes         string
}

// ValidationResult accumulates problems found while validating a candidate
// payment. Errors block the operation; warnings allow it but flag it.
type ValidationResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether the candidate may proceed. Warnings never block.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// PaymentResult is the outcome of a payment write operation.
type PaymentResult struct {
	Success        bool     `json:"success"`
	Payment        *Payment `json:"payment,omitempty"`
	UpdatedInvoice *Invoice `json:"updated_invoice,omitempty"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
}

// PaymentSummary aggregates completed payments against one invoice.
type PaymentSummary struct {
	InvoiceNumber         string     `json:"invoice_number"`
	TotalPaidCents        int64      `json:"total_paid_cents"`
	RemainingBalanceCents int64      `json:"remaining_balance_cents"`
	PaymentCount          int        `json:"payment_count"`
	LastPaymentDate       *time.Time `json:"last_payment_date,omitempty"`
}

// PaymentRepository provides access to the payment collection.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, p *Payment) error

	// GetByID retrieves a payment by its internal id.
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// List returns payments ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int32) ([]Payment, error)

	// ListByInvoiceNumber returns all payments referencing an invoice number,
	// regardless of status.
	ListByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]Payment, error)

	// Update persists changes to an existing payment.
	Update(ctx context.Context, p *Payment) error

	// Delete removes a payment.
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentService coordinates validated payment writes with invoice balance
// and status recomputation.
type PaymentService interface {
	// ProcessPayment validates the candidate and, if valid, persists it and
	// recomputes the target invoice. Validation failures are returned in the
	// result, not as an error.
	ProcessPayment(ctx context.Context, candidate PaymentInput) (*PaymentResult, error)

	// UpdatePayment merges updates onto an existing payment, re-validates the
	// merged record (excluding the payment itself from duplicate and
	// overpayment checks), and recomputes every affected invoice.
	UpdatePayment(ctx context.Context, paymentID string, updates PaymentInput) (*PaymentResult, error)

	// DeletePayment removes a payment and recomputes the invoice it
	// referenced. The updated invoice is nil when the invoice no longer
	// exists; that is tolerated, not an error.
	DeletePayment(ctx context.Context, paymentID string) (*Invoice, error)

	// GetPayment retrieves a payment by ID.
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)

	// ListPayments lists payments with pagination.
	ListPayments(ctx context.Context, limit, offset int32) ([]Payment, error)

	// RefundPayment marks a completed payment refunded and recomputes its
	// invoice. Card and online payments are refunded through the billing
	// provider first.
	RefundPayment(ctx context.Context, paymentID string) (*PaymentResult, error)

	// GetInvoicePaymentSummary aggregates completed payments for an invoice.
	GetInvoicePaymentSummary(ctx context.Context, invoiceNumber string) (*PaymentSummary, error)
}
