package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rcallaway/fieldpay/internal/domain"
)

// Rules configures the payment validation policy.
type Rules struct {
	// MaxPaymentCents is the ceiling for a single payment amount.
	MaxPaymentCents int64

	// AllowOverpayment downgrades the overpayment check from error to warning.
	AllowOverpayment bool

	// AllowPartialPayments permits payments below the remaining balance.
	// When false, partial payments are rejected instead of flagged.
	AllowPartialPayments bool

	// RequireInvoiceMatch rejects payments whose invoice number matches no
	// known invoice. When false, unmatched payments pass with no invoice
	// checks at all.
	RequireInvoiceMatch bool
}

// DefaultRules returns the standard validation policy.
func DefaultRules() Rules {
	return Rules{
		MaxPaymentCents:      5_000_000, // $50,000
		AllowOverpayment:     false,
		AllowPartialPayments: true,
		RequireInvoiceMatch:  true,
	}
}

// stalePaymentAge is how far in the past a payment date may be before it is
// flagged as suspicious.
const stalePaymentAge = 2 * 365 * 24 * time.Hour

// PaymentValidator checks candidate payments against the validation policy
// and the state of the target invoice. It only reads from the store; all
// checks run and accumulate, validity is the absence of errors.
type PaymentValidator struct {
	store domain.Store
	rules Rules
	now   func() time.Time
}

// NewPaymentValidator creates a validator with the given policy. A zero
// MaxPaymentCents falls back to the default ceiling.
func NewPaymentValidator(store domain.Store, rules Rules) *PaymentValidator {
	if rules.MaxPaymentCents <= 0 {
		rules.MaxPaymentCents = DefaultRules().MaxPaymentCents
	}
	return &PaymentValidator{
		store: store,
		rules: rules,
		now:   time.Now,
	}
}

// ValidatePayment validates a candidate payment. excludeID identifies a
// payment being edited so it is left out of duplicate and overpayment
// calculations; pass uuid.Nil when creating.
//
// The returned error is reserved for storage failures; validation problems
// are reported through the result.
func (v *PaymentValidator) ValidatePayment(ctx context.Context, candidate domain.PaymentInput, excludeID uuid.UUID) (domain.ValidationResult, error) {
	var result domain.ValidationResult

	// Required fields
	if candidate.AmountCents <= 0 {
		result.Errors = append(result.Errors, "Payment amount must be greater than zero")
	}
	if candidate.InvoiceNumber == "" {
		result.Errors = append(result.Errors, "Invoice number is required")
	}
	if candidate.ClientName == "" {
		result.Errors = append(result.Errors, "Client name is required")
	}
	if candidate.PaymentDate.IsZero() {
		result.Errors = append(result.Errors, "Payment date is required")
	}
	if candidate.Method == "" {
		result.Errors = append(result.Errors, "Payment method is required")
	} else if !candidate.Method.Valid() {
		result.Errors = append(result.Errors, fmt.Sprintf("Unknown payment method %q", candidate.Method))
	}
	if candidate.Status == "" {
		result.Errors = append(result.Errors, "Payment status is required")
	} else if !candidate.Status.Valid() {
		result.Errors = append(result.Errors, fmt.Sprintf("Unknown payment status %q", candidate.Status))
	}

	// Amount ceiling
	if candidate.AmountCents > v.rules.MaxPaymentCents {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Payment amount %s exceeds the maximum allowed %s",
				formatCents(candidate.AmountCents), formatCents(v.rules.MaxPaymentCents)))
	}

	// Invoice checks
	if candidate.InvoiceNumber != "" {
		inv, err := v.store.Invoices().GetByNumber(ctx, candidate.InvoiceNumber)
		switch {
		case domain.IsCode(err, domain.ENOTFOUND):
			if v.rules.RequireInvoiceMatch {
				result.Errors = append(result.Errors,
					fmt.Sprintf("Invoice %s not found", candidate.InvoiceNumber))
			}
		case err != nil:
			return result, fmt.Errorf("failed to look up invoice: %w", err)
		default:
			if err := v.checkInvoice(ctx, inv, candidate, excludeID, &result); err != nil {
				return result, err
			}
		}
	}

	// Date sanity
	if !candidate.PaymentDate.IsZero() {
		now := v.now()
		if candidate.PaymentDate.After(now) {
			result.Warnings = append(result.Warnings, "Payment date is in the future")
		}
		if now.Sub(candidate.PaymentDate) > stalePaymentAge {
			result.Warnings = append(result.Warnings, "Payment date is more than 2 years old")
		}
	}

	// Duplicate heuristic
	if candidate.InvoiceNumber != "" {
		if err := v.checkDuplicate(ctx, candidate, excludeID, &result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// checkInvoice runs the invoice-state checks against a matched invoice.
func (v *PaymentValidator) checkInvoice(ctx context.Context, inv *domain.Invoice, candidate domain.PaymentInput, excludeID uuid.UUID, result *domain.ValidationResult) error {
	if inv.Status == domain.InvoiceCancelled {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Cannot record a payment against cancelled invoice %s", inv.InvoiceNumber))
	}
	if inv.Status == domain.InvoiceDraft {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Invoice %s is still a draft; consider sending it before recording payment", inv.InvoiceNumber))
	}

	totalPaid, err := v.completedTotal(ctx, inv.InvoiceNumber, excludeID)
	if err != nil {
		return err
	}
	remaining := inv.TotalCents - totalPaid

	if candidate.AmountCents > remaining {
		if v.rules.AllowOverpayment {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Payment exceeds remaining balance by %s", formatCents(candidate.AmountCents-remaining)))
		} else {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Payment amount %s exceeds remaining balance %s",
					formatCents(candidate.AmountCents), formatCents(remaining)))
		}
	} else if candidate.AmountCents < remaining && candidate.AmountCents < inv.TotalCents {
		if v.rules.AllowPartialPayments {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Partial payment: %s will remain outstanding", formatCents(remaining-candidate.AmountCents)))
		} else {
			result.Errors = append(result.Errors, "Partial payments are not allowed")
		}
	}

	if candidate.ClientName != "" && candidate.ClientName != inv.ClientName {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Client name does not match invoice (invoice has %q)", inv.ClientName))
	}

	return nil
}

// completedTotal sums completed payments against an invoice, excluding the
// payment being edited.
func (v *PaymentValidator) completedTotal(ctx context.Context, invoiceNumber string, excludeID uuid.UUID) (int64, error) {
	payments, err := v.store.Payments().ListByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to list payments: %w", err)
	}

	var total int64
	for _, p := range payments {
		if p.ID == excludeID {
			continue
		}
		if p.Status == domain.PaymentCompleted {
			total += p.AmountCents
		}
	}
	return total, nil
}

// checkDuplicate flags payments identical in invoice number, amount, date,
// and method. A heuristic: it warns, never blocks.
func (v *PaymentValidator) checkDuplicate(ctx context.Context, candidate domain.PaymentInput, excludeID uuid.UUID, result *domain.ValidationResult) error {
	payments, err := v.store.Payments().ListByInvoiceNumber(ctx, candidate.InvoiceNumber)
	if err != nil {
		return fmt.Errorf("failed to list payments: %w", err)
	}

	for _, p := range payments {
		if p.ID == excludeID {
			continue
		}
		if p.AmountCents == candidate.AmountCents &&
			p.Method == candidate.Method &&
			sameDay(p.PaymentDate, candidate.PaymentDate) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Similar payment already exists: %s", p.PaymentNumber))
			break
		}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// formatCents renders an integer cent amount as a decimal string, e.g.
// 150000 -> "1500.00".
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
