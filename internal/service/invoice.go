package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rcallaway/fieldpay/internal/domain"
)

// InvoiceService is re-exported from domain.
type InvoiceService = domain.InvoiceService

type invoiceService struct {
	store domain.Store
	now   func() time.Time
}

// NewInvoiceService creates a new InvoiceService instance.
func NewInvoiceService(store domain.Store) InvoiceService {
	return &invoiceService{
		store: store,
		now:   time.Now,
	}
}

// CreateInvoice creates a new draft invoice.
func (s *invoiceService) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	if params.ClientName == "" {
		return nil, domain.Invalid("invoice.create", "Client name is required")
	}
	if len(params.LineItems) == 0 {
		return nil, ErrNoLineItems
	}

	items := make([]domain.LineItem, len(params.LineItems))
	var totalCents int64
	for i, item := range params.LineItems {
		if item.Quantity <= 0 || item.UnitPriceCents < 0 {
			return nil, ErrInvalidLineItem
		}
		// Line totals are stored as written; fill them in only when absent.
		if item.TotalCents == 0 {
			item.TotalCents = int64(item.Quantity) * item.UnitPriceCents
		}
		items[i] = item
		totalCents += item.TotalCents
	}

	now := s.now()
	number := params.InvoiceNumber
	if number == "" {
		number = generateInvoiceNumber(now)
	}

	// Invoice numbers are the join key payments reference by value, so
	// uniqueness is enforced up front.
	if _, err := s.store.Invoices().GetByNumber(ctx, number); err == nil {
		return nil, ErrDuplicateInvoiceNumber
	} else if !domain.IsCode(err, domain.ENOTFOUND) {
		return nil, fmt.Errorf("failed to check invoice number: %w", err)
	}

	issueDate := params.IssueDate
	if issueDate.IsZero() {
		issueDate = now
	}
	dueDate := params.DueDate
	if dueDate.IsZero() {
		dueDate = issueDate.AddDate(0, 0, 30)
	}

	inv := &domain.Invoice{
		ID:              uuid.New(),
		InvoiceNumber:   number,
		ClientName:      params.ClientName,
		PropertyAddress: params.PropertyAddress,
		IssueDate:       issueDate,
		DueDate:         dueDate,
		Status:          domain.InvoiceDraft,
		TotalCents:      totalCents,
		PaidCents:       0,
		BalanceCents:    totalCents,
		Description:     params.Description,
		LineItems:       items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Invoices().Create(ctx, inv); err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			return nil, ErrDuplicateInvoiceNumber
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	return inv, nil
}

// GetInvoice retrieves an invoice by ID.
func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	id, err := uuid.Parse(invoiceID)
	if err != nil {
		return nil, domain.Invalid("invoice.get", "Invalid invoice ID")
	}

	inv, err := s.store.Invoices().GetByID(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// GetInvoiceByNumber retrieves an invoice by invoice number.
func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*domain.Invoice, error) {
	inv, err := s.store.Invoices().GetByNumber(ctx, invoiceNumber)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices lists invoices with pagination.
func (s *invoiceService) ListInvoices(ctx context.Context, limit, offset int32) ([]domain.Invoice, error) {
	invoices, err := s.store.Invoices().List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// UpdateInvoice applies updates to an existing invoice.
func (s *invoiceService) UpdateInvoice(ctx context.Context, invoiceID string, params domain.UpdateInvoiceParams) (*domain.Invoice, error) {
	id, err := uuid.Parse(invoiceID)
	if err != nil {
		return nil, domain.Invalid("invoice.update", "Invalid invoice ID")
	}

	inv, err := s.store.Invoices().GetByID(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	if params.ClientName != nil {
		inv.ClientName = *params.ClientName
	}
	if params.PropertyAddress != nil {
		inv.PropertyAddress = *params.PropertyAddress
	}
	if params.IssueDate != nil {
		inv.IssueDate = *params.IssueDate
	}
	if params.DueDate != nil {
		inv.DueDate = *params.DueDate
	}
	if params.Description != nil {
		inv.Description = *params.Description
	}
	if params.Status != nil {
		if !params.Status.Valid() {
			return nil, ErrInvalidInvoiceStatus
		}
		inv.Status = *params.Status
	}
	if params.LineItems != nil {
		var totalCents int64
		items := make([]domain.LineItem, len(params.LineItems))
		for i, item := range params.LineItems {
			if item.Quantity <= 0 || item.UnitPriceCents < 0 {
				return nil, ErrInvalidLineItem
			}
			if item.TotalCents == 0 {
				item.TotalCents = int64(item.Quantity) * item.UnitPriceCents
			}
			items[i] = item
			totalCents += item.TotalCents
		}
		inv.LineItems = items
		inv.TotalCents = totalCents
		balance := totalCents - inv.PaidCents
		if balance < 0 {
			balance = 0
		}
		inv.BalanceCents = balance
	}
	inv.UpdatedAt = s.now()

	if err := s.store.Invoices().Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}
	return inv, nil
}

// DeleteInvoice removes an invoice. Payments referencing its number are
// kept; subsequent recomputations tolerate the missing invoice.
func (s *invoiceService) DeleteInvoice(ctx context.Context, invoiceID string) error {
	id, err := uuid.Parse(invoiceID)
	if err != nil {
		return domain.Invalid("invoice.delete", "Invalid invoice ID")
	}

	if err := s.store.Invoices().Delete(ctx, id); err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return ErrInvoiceNotFound
		}
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return nil
}

// SendInvoice marks a draft invoice as sent.
func (s *invoiceService) SendInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	id, err := uuid.Parse(invoiceID)
	if err != nil {
		return nil, domain.Invalid("invoice.send", "Invalid invoice ID")
	}

	inv, err := s.store.Invoices().GetByID(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	if inv.Status != domain.InvoiceDraft {
		return nil, ErrInvoiceNotDraft
	}

	inv.Status = domain.InvoiceSent
	inv.UpdatedAt = s.now()
	if err := s.store.Invoices().Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}
	return inv, nil
}

// MarkInvoicesOverdue updates status for sent invoices past their due date.
// Called by a nightly background job.
func (s *invoiceService) MarkInvoicesOverdue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.Invoices().ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due invoices: %w", err)
	}

	count := 0
	for _, inv := range due {
		if inv.Status != domain.InvoiceSent {
			continue
		}
		inv.Status = domain.InvoiceOverdue
		inv.UpdatedAt = now
		if err := s.store.Invoices().Update(ctx, &inv); err == nil {
			count++
		}
	}
	return count, nil
}

// generateInvoiceNumber produces a human-readable invoice number,
// e.g. INV-2025-1718465632000.
func generateInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%d-%d", now.Year(), now.UnixMilli())
}
