package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rcallaway/fieldpay/internal/billing"
	"github.com/rcallaway/fieldpay/internal/domain"
	"github.com/rcallaway/fieldpay/internal/events"
)

// PaymentService is re-exported from domain.
type PaymentService = domain.PaymentService

type paymentService struct {
	store     domain.Store
	validator *PaymentValidator
	billing   billing.Provider
	publisher events.Publisher
	now       func() time.Time
}

// NewPaymentService creates a new PaymentService instance. billingProvider
// may be nil when no card processor is configured; refunds of card and
// online payments then skip the processor call.
func NewPaymentService(store domain.Store, validator *PaymentValidator, billingProvider billing.Provider, publisher events.Publisher) PaymentService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &paymentService{
		store:     store,
		validator: validator,
		billing:   billingProvider,
		publisher: publisher,
		now:       time.Now,
	}
}

// ProcessPayment validates and persists a new payment, then recomputes the
// target invoice inside the same transaction.
func (s *paymentService) ProcessPayment(ctx context.Context, candidate domain.PaymentInput) (*domain.PaymentResult, error) {
	// A candidate without an explicit status is recorded as completed.
	if candidate.Status == "" {
		candidate.Status = domain.PaymentCompleted
	}

	validation, err := s.validator.ValidatePayment(ctx, candidate, uuid.Nil)
	if err != nil {
		return nil, domain.Internal(err, "payment.process", "Failed to process payment")
	}
	if !validation.Valid() {
		return &domain.PaymentResult{
			Success:  false,
			Errors:   validation.Errors,
			Warnings: validation.Warnings,
		}, nil
	}

	now := s.now()
	payment := &domain.Payment{
		ID:            uuid.New(),
		PaymentNumber: candidate.PaymentNumber,
		InvoiceNumber: candidate.InvoiceNumber,
		ClientName:    candidate.ClientName,
		AmountCents:   candidate.AmountCents,
		PaymentDate:   candidate.PaymentDate,
		Method:        candidate.Method,
		Status:        candidate.Status,
		Reference:     candidate.Reference,
		Notes:         candidate.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if payment.PaymentNumber == "" {
		payment.PaymentNumber = generatePaymentNumber(now)
	}
	if payment.Reference == "" {
		payment.Reference = generateReference(payment.Method, now)
	}

	var updatedInvoice *domain.Invoice
	err = s.store.InTx(ctx, func(tx domain.Store) error {
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}
		if payment.Status == domain.PaymentCompleted {
			inv, err := recomputeInvoice(ctx, tx, payment.InvoiceNumber, now)
			if err != nil {
				return err
			}
			updatedInvoice = inv
		}
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, "payment.process", "Failed to process payment")
	}

	s.publishPayment(ctx, events.SubjectPaymentRecorded, payment)
	s.publishInvoicePaid(ctx, updatedInvoice)

	return &domain.PaymentResult{
		Success:        true,
		Payment:        payment,
		UpdatedInvoice: updatedInvoice,
		Warnings:       validation.Warnings,
	}, nil
}

// UpdatePayment merges updates onto an existing payment and re-validates the
// merged record with the payment itself excluded from self-comparison.
func (s *paymentService) UpdatePayment(ctx context.Context, paymentID string, updates domain.PaymentInput) (*domain.PaymentResult, error) {
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, domain.Invalid("payment.update", "Invalid payment ID")
	}

	existing, err := s.store.Payments().GetByID(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrPaymentNotFound
		}
		return nil, domain.Internal(err, "payment.update", "Failed to update payment")
	}

	merged := mergePayment(*existing, updates)

	validation, err := s.validator.ValidatePayment(ctx, paymentToInput(merged), existing.ID)
	if err != nil {
		return nil, domain.Internal(err, "payment.update", "Failed to update payment")
	}
	if !validation.Valid() {
		return &domain.PaymentResult{
			Success:  false,
			Errors:   validation.Errors,
			Warnings: validation.Warnings,
		}, nil
	}

	now := s.now()
	merged.UpdatedAt = now

	var updatedInvoice *domain.Invoice
	err = s.store.InTx(ctx, func(tx domain.Store) error {
		if err := tx.Payments().Update(ctx, &merged); err != nil {
			return err
		}

		// When the payment moved to a different invoice, the old invoice's
		// balance must be recomputed as well.
		if existing.InvoiceNumber != merged.InvoiceNumber {
			if _, err := recomputeInvoice(ctx, tx, existing.InvoiceNumber, now); err != nil {
				return err
			}
		}

		inv, err := recomputeInvoice(ctx, tx, merged.InvoiceNumber, now)
		if err != nil {
			return err
		}
		updatedInvoice = inv
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, "payment.update", "Failed to update payment")
	}

	s.publishPayment(ctx, events.SubjectPaymentUpdated, &merged)
	s.publishInvoicePaid(ctx, updatedInvoice)

	return &domain.PaymentResult{
		Success:        true,
		Payment:        &merged,
		UpdatedInvoice: updatedInvoice,
		Warnings:       validation.Warnings,
	}, nil
}

// DeletePayment removes a payment and recomputes the invoice it referenced,
// as if the payment never existed. A missing invoice is tolerated.
func (s *paymentService) DeletePayment(ctx context.Context, paymentID string) (*domain.Invoice, error) {
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, domain.Invalid("payment.delete", "Invalid payment ID")
	}

	payment, err := s.store.Payments().GetByID(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrPaymentNotFound
		}
		return nil, domain.Internal(err, "payment.delete", "Failed to delete payment")
	}

	now := s.now()
	var updatedInvoice *domain.Invoice
	err = s.store.InTx(ctx, func(tx domain.Store) error {
		if err := tx.Payments().Delete(ctx, id); err != nil {
			return err
		}
		if payment.InvoiceNumber != "" {
			inv, err := recomputeInvoice(ctx, tx, payment.InvoiceNumber, now)
			if err != nil {
				return err
			}
			updatedInvoice = inv
		}
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, "payment.delete", "Failed to delete payment")
	}

	s.publishPayment(ctx, events.SubjectPaymentDeleted, payment)

	return updatedInvoice, nil
}

// GetPayment retrieves a payment by ID.
func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, domain.Invalid("payment.get", "Invalid payment ID")
	}

	payment, err := s.store.Payments().GetByID(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// ListPayments lists payments with pagination.
func (s *paymentService) ListPayments(ctx context.Context, limit, offset int32) ([]domain.Payment, error) {
	payments, err := s.store.Payments().List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// RefundPayment marks a completed payment refunded. Card and online payments
// are refunded through the billing provider before the local record changes;
// a provider failure leaves the payment untouched.
func (s *paymentService) RefundPayment(ctx context.Context, paymentID string) (*domain.PaymentResult, error) {
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, domain.Invalid("payment.refund", "Invalid payment ID")
	}

	payment, err := s.store.Payments().GetByID(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrPaymentNotFound
		}
		return nil, domain.Internal(err, "payment.refund", "Failed to refund payment")
	}

	if payment.Status != domain.PaymentCompleted {
		return nil, ErrPaymentNotCompleted
	}

	if s.billing != nil && processorBacked(payment.Method) {
		_, err := s.billing.RefundPayment(ctx, billing.RefundParams{
			PaymentReference: payment.Reference,
			AmountCents:      payment.AmountCents,
			Reason:           "requested_by_customer",
		})
		if err != nil {
			return nil, domain.WrapError(err, domain.EPAYMENT, "payment.refund", "Billing provider refund failed")
		}
	}

	now := s.now()
	refunded := *payment
	refunded.Status = domain.PaymentRefunded
	refunded.UpdatedAt = now

	var updatedInvoice *domain.Invoice
	err = s.store.InTx(ctx, func(tx domain.Store) error {
		if err := tx.Payments().Update(ctx, &refunded); err != nil {
			return err
		}
		inv, err := recomputeInvoice(ctx, tx, refunded.InvoiceNumber, now)
		if err != nil {
			return err
		}
		updatedInvoice = inv
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, "payment.refund", "Failed to refund payment")
	}

	s.publishPayment(ctx, events.SubjectPaymentRefunded, &refunded)

	return &domain.PaymentResult{
		Success:        true,
		Payment:        &refunded,
		UpdatedInvoice: updatedInvoice,
	}, nil
}

// GetInvoicePaymentSummary aggregates completed payments for an invoice.
func (s *paymentService) GetInvoicePaymentSummary(ctx context.Context, invoiceNumber string) (*domain.PaymentSummary, error) {
	inv, err := s.store.Invoices().GetByNumber(ctx, invoiceNumber)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	payments, err := s.store.Payments().ListByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	summary := &domain.PaymentSummary{InvoiceNumber: invoiceNumber}
	for _, p := range payments {
		if p.Status != domain.PaymentCompleted {
			continue
		}
		summary.TotalPaidCents += p.AmountCents
		summary.PaymentCount++
		if summary.LastPaymentDate == nil || p.PaymentDate.After(*summary.LastPaymentDate) {
			d := p.PaymentDate
			summary.LastPaymentDate = &d
		}
	}

	remaining := inv.TotalCents - summary.TotalPaidCents
	if remaining < 0 {
		remaining = 0
	}
	summary.RemainingBalanceCents = remaining

	return summary, nil
}

// recomputeInvoice re-derives an invoice's paid amount, balance, and status
// from the completed payments referencing it, and persists the result.
//
// A missing invoice is a no-op: payments may reference since-deleted
// invoices. The recomputation is idempotent for a fixed payment set.
func recomputeInvoice(ctx context.Context, tx domain.Store, invoiceNumber string, now time.Time) (*domain.Invoice, error) {
	inv, err := tx.Invoices().GetByNumber(ctx, invoiceNumber)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, nil
		}
		return nil, err
	}

	payments, err := tx.Payments().ListByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}

	var totalPaid int64
	for _, p := range payments {
		if p.Status == domain.PaymentCompleted {
			totalPaid += p.AmountCents
		}
	}

	balance := inv.TotalCents - totalPaid
	if balance < 0 {
		balance = 0
	}

	inv.PaidCents = totalPaid
	inv.BalanceCents = balance
	inv.Status = domain.ResolveInvoiceStatus(inv.Status, inv.TotalCents, totalPaid, inv.DueDate, now)
	inv.UpdatedAt = now

	if err := tx.Invoices().Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// mergePayment overlays supplied update fields onto an existing payment.
// Zero-valued fields leave the existing value unchanged.
func mergePayment(existing domain.Payment, updates domain.PaymentInput) domain.Payment {
	if updates.PaymentNumber != "" {
		existing.PaymentNumber = updates.PaymentNumber
	}
	if updates.InvoiceNumber != "" {
		existing.InvoiceNumber = updates.InvoiceNumber
	}
	if updates.ClientName != "" {
		existing.ClientName = updates.ClientName
	}
	if updates.AmountCents > 0 {
		existing.AmountCents = updates.AmountCents
	}
	if !updates.PaymentDate.IsZero() {
		existing.PaymentDate = updates.PaymentDate
	}
	if updates.Method != "" {
		existing.Method = updates.Method
	}
	if updates.Status != "" {
		existing.Status = updates.Status
	}
	if updates.Reference != "" {
		existing.Reference = updates.Reference
	}
	if updates.Notes != "" {
		existing.Notes = updates.Notes
	}
	return existing
}

func paymentToInput(p domain.Payment) domain.PaymentInput {
	return domain.PaymentInput{
		PaymentNumber: p.PaymentNumber,
		InvoiceNumber: p.InvoiceNumber,
		ClientName:    p.ClientName,
		AmountCents:   p.AmountCents,
		PaymentDate:   p.PaymentDate,
		Method:        p.Method,
		Status:        p.Status,
		Reference:     p.Reference,
		Notes:         p.Notes,
	}
}

func processorBacked(method domain.PaymentMethod) bool {
	return method == domain.MethodCreditCard || method == domain.MethodOnline
}

// publishPayment emits a payment event. Delivery is best-effort.
func (s *paymentService) publishPayment(ctx context.Context, subject string, p *domain.Payment) {
	_ = s.publisher.Publish(ctx, subject, events.PaymentEvent{
		PaymentID:     p.ID.String(),
		PaymentNumber: p.PaymentNumber,
		InvoiceNumber: p.InvoiceNumber,
		AmountCents:   p.AmountCents,
		Method:        string(p.Method),
		Status:        string(p.Status),
		OccurredAt:    s.now(),
	})
}

// publishInvoicePaid emits an invoice.paid event when a recomputation
// settled the invoice in full.
func (s *paymentService) publishInvoicePaid(ctx context.Context, inv *domain.Invoice) {
	if inv == nil || inv.Status != domain.InvoicePaid {
		return
	}
	_ = s.publisher.Publish(ctx, events.SubjectInvoicePaid, events.InvoiceEvent{
		InvoiceID:     inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		Status:        string(inv.Status),
		BalanceCents:  inv.BalanceCents,
		OccurredAt:    s.now(),
	})
}

// generatePaymentNumber produces a human-readable payment number,
// e.g. PAY-2025-1718465632000.
func generatePaymentNumber(now time.Time) string {
	return fmt.Sprintf("PAY-%d-%d", now.Year(), now.UnixMilli())
}

// generateReference produces a method-specific reference code for payments
// recorded without one.
func generateReference(method domain.PaymentMethod, now time.Time) string {
	ms := now.UnixMilli()
	switch method {
	case domain.MethodCreditCard:
		return fmt.Sprintf("CC-%d-%04d", ms, rand.IntN(10000))
	case domain.MethodBankTransfer:
		return fmt.Sprintf("BT-%d-%04d", ms, rand.IntN(10000))
	case domain.MethodOnline:
		return fmt.Sprintf("ONL-%d-%04d", ms, rand.IntN(10000))
	case domain.MethodCash:
		return fmt.Sprintf("CASH-%d", ms)
	case domain.MethodCheck:
		return fmt.Sprintf("CHK-%d", ms)
	default:
		return fmt.Sprintf("REF-%d", ms)
	}
}
