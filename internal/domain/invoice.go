package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// LineItem is a single billable line on an invoice.
// TotalCents is stored as written, not re-derived on read.
type LineItem struct {
	Description    string `json:"description"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// Invoice is a bill issued to a client for work at a property.
//
// InvoiceNumber is the human-readable key payments reference by value.
// Uniqueness is enforced at creation time.
type Invoice struct {
	ID              uuid.UUID     `json:"id"`
	InvoiceNumber   string        `json:"invoice_number"`
	ClientName      string        `json:"client_name"`
	PropertyAddress string        `json:"property_address"`
	IssueDate       time.Time     `json:"issue_date"`
	DueDate         time.Time     `json:"due_date"`
	Status          InvoiceStatus `json:"status"`
	TotalCents      int64         `json:"total_cents"`
	PaidCents       int64         `json:"paid_cents"`
	BalanceCents    int64         `json:"balance_cents"`
	Description     string        `json:"description"`
	LineItems       []LineItem    `json:"line_items"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ResolveInvoiceStatus applies the invoice status transition table given the
// current status and the recomputed payment totals. First matching rule wins:
//
//  1. fully paid (paid >= total, balance 0)        -> paid
//  2. any completed payment against a draft        -> sent
//  3. paid invoice whose balance reopened          -> overdue if past due, else sent
//  4. otherwise                                    -> unchanged
//
// Cancelled is terminal: recomputation updates the stored totals but never
// moves a cancelled invoice to another status.
func ResolveInvoiceStatus(current InvoiceStatus, totalCents, paidCents int64, dueDate, today time.Time) InvoiceStatus {
	if current == InvoiceCancelled {
		return current
	}

	balance := totalCents - paidCents
	if balance < 0 {
		balance = 0
	}

	switch {
	case paidCents >= totalCents && balance == 0:
		return InvoicePaid
	case paidCents > 0 && current == InvoiceDraft:
		return InvoiceSent
	case current == InvoicePaid && balance > 0:
		if dueDate.Before(today) {
			return InvoiceOverdue
		}
		return InvoiceSent
	default:
		return current
	}
}

// InvoiceRepository provides access to the invoice collection.
type InvoiceRepository interface {
	// Create persists a new invoice. Returns a conflict error if an invoice
	// with the same invoice number already exists.
	Create(ctx context.Context, inv *Invoice) error

	// GetByID retrieves an invoice by its internal id.
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// GetByNumber retrieves an invoice by its human-readable number.
	GetByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// List returns invoices ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int32) ([]Invoice, error)

	// Update persists changes to an existing invoice.
	Update(ctx context.Context, inv *Invoice) error

	// Delete removes an invoice.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListDue returns sent invoices whose due date is before asOf.
	// Used by the overdue sweep.
	ListDue(ctx context.Context, asOf time.Time) ([]Invoice, error)
}

// InvoiceService manages invoice records and their lifecycle.
type InvoiceService interface {
	// CreateInvoice creates a new draft invoice. An invoice number is
	// generated when the params don't supply one.
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)

	// GetInvoice retrieves an invoice by ID.
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)

	// GetInvoiceByNumber retrieves an invoice by invoice number.
	GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// ListInvoices lists invoices with pagination.
	ListInvoices(ctx context.Context, limit, offset int32) ([]Invoice, error)

	// UpdateInvoice applies updates to an existing invoice.
	UpdateInvoice(ctx context.Context, invoiceID string, params UpdateInvoiceParams) (*Invoice, error)

	// DeleteInvoice removes an invoice. Payments referencing it are kept;
	// their recomputations tolerate the missing invoice.
	DeleteInvoice(ctx context.Context, invoiceID string) error

	// SendInvoice marks a draft invoice as sent.
	SendInvoice(ctx context.Context, invoiceID string) (*Invoice, error)

	// MarkInvoicesOverdue updates status for sent invoices past their due
	// date. Called by a nightly background job. Returns the number updated.
	MarkInvoicesOverdue(ctx context.Context) (int, error)
}

// CreateInvoiceParams contains parameters for creating an invoice.
type CreateInvoiceParams struct {
	InvoiceNumber   string // Optional - generated if empty
	ClientName      string
	PropertyAddress string
	IssueDate       time.Time
	DueDate         time.Time
	Description     string
	LineItems       []LineItem
}

// UpdateInvoiceParams contains optional updates to an invoice.
// Nil fields are left unchanged.
type UpdateInvoiceParams struct {
	ClientName      *string
	PropertyAddress *string
	IssueDate       *time.Time
	DueDate         *time.Time
	Status          *InvoiceStatus
	Description     *string
	LineItems       []LineItem
}
