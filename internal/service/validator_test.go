package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcallaway/fieldpay/internal/domain"
	"github.com/rcallaway/fieldpay/internal/memory"
)

var testClock = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T, store domain.Store, rules Rules) *PaymentValidator {
	t.Helper()
	v := NewPaymentValidator(store, rules)
	v.now = func() time.Time { return testClock }
	return v
}

func seedInvoice(t *testing.T, store domain.Store, number string, status domain.InvoiceStatus, totalCents int64) *domain.Invoice {
	t.Helper()
	inv := &domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: number,
		ClientName:    "Hilltop Landscaping",
		IssueDate:     testClock.AddDate(0, 0, -10),
		DueDate:       testClock.AddDate(0, 0, 20),
		Status:        status,
		TotalCents:    totalCents,
		BalanceCents:  totalCents,
		LineItems: []domain.LineItem{
			{Description: "Service call", Quantity: 1, UnitPriceCents: totalCents, TotalCents: totalCents},
		},
		CreatedAt: testClock,
		UpdatedAt: testClock,
	}
	require.NoError(t, store.Invoices().Create(context.Background(), inv))
	return inv
}

func seedPayment(t *testing.T, store domain.Store, invoiceNumber string, amountCents int64, status domain.PaymentStatus) *domain.Payment {
	t.Helper()
	p := &domain.Payment{
		ID:            uuid.New(),
		PaymentNumber: "PAY-2025-" + uuid.NewString()[:8],
		InvoiceNumber: invoiceNumber,
		ClientName:    "Hilltop Landscaping",
		AmountCents:   amountCents,
		PaymentDate:   testClock,
		Method:        domain.MethodCheck,
		Status:        status,
		CreatedAt:     testClock,
		UpdatedAt:     testClock,
	}
	require.NoError(t, store.Payments().Create(context.Background(), p))
	return p
}

func validInput(invoiceNumber string, amountCents int64) domain.PaymentInput {
	return domain.PaymentInput{
		InvoiceNumber: invoiceNumber,
		ClientName:    "Hilltop Landscaping",
		AmountCents:   amountCents,
		PaymentDate:   testClock,
		Method:        domain.MethodCheck,
		Status:        domain.PaymentCompleted,
	}
}

func Test_PaymentValidator_RequiredFields(t *testing.T) {
	store := memory.NewStore()
	v := newTestValidator(t, store, DefaultRules())

	result, err := v.ValidatePayment(context.Background(), domain.PaymentInput{}, uuid.Nil)
	require.NoError(t, err)

	assert.False(t, result.Valid())
	assert.Contains(t, result.Errors, "Payment amount must be greater than zero")
	assert.Contains(t, result.Errors, "Invoice number is required")
	assert.Contains(t, result.Errors, "Client name is required")
	assert.Contains(t, result.Errors, "Payment date is required")
	assert.Contains(t, result.Errors, "Payment method is required")
	assert.Contains(t, result.Errors, "Payment status is required")
}

func Test_PaymentValidator_UnknownEnums(t *testing.T) {
	store := memory.NewStore()
	seedInvoice(t, store, "INV-2025-100", domain.InvoiceSent, 50000)
	v := newTestValidator(t, store, DefaultRules())

	input := validInput("INV-2025-100", 50000)
	input.Method = "wire"
	input.Status = "done"

	result, err := v.ValidatePayment(context.Background(), input, uuid.Nil)
	require.NoError(t, err)

	assert.Contains(t, result.Errors, `Unknown payment method "wire"`)
	assert.Contains(t, result.Errors, `Unknown payment status "done"`)
}

func Test_PaymentValidator_AmountCeiling(t *testing.T) {
	store := memory.NewStore()
	seedInvoice(t, store, "INV-2025-101", domain.InvoiceSent, 10_000_000)
	v := newTestValidator(t, store, Rules{
		MaxPaymentCents:      100000,
		AllowPartialPayments: true,
		RequireInvoiceMatch:  true,
	})

	result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-101", 100001), uuid.Nil)
	require.NoError(t, err)

	assert.False(t, result.Valid())
	assert.Contains(t, result.Errors, "Payment amount 1000.01 exceeds the maximum allowed 1000.00")
}

func Test_PaymentValidator_InvoiceMatch(t *testing.T) {
	store := memory.NewStore()

	t.Run("unmatched invoice rejected when matching is required", func(t *testing.T) {
		v := newTestValidator(t, store, DefaultRules())
		result, err := v.ValidatePayment(context.Background(), validInput("INV-MISSING", 5000), uuid.Nil)
		require.NoError(t, err)
		assert.Contains(t, result.Errors, "Invoice INV-MISSING not found")
	})

	t.Run("unmatched invoice tolerated when matching is optional", func(t *testing.T) {
		rules := DefaultRules()
		rules.RequireInvoiceMatch = false
		v := newTestValidator(t, store, rules)
		result, err := v.ValidatePayment(context.Background(), validInput("INV-MISSING", 5000), uuid.Nil)
		require.NoError(t, err)
		assert.True(t, result.Valid(), "errors: %v", result.Errors)
	})
}

func Test_PaymentValidator_Overpayment(t *testing.T) {
	store := memory.NewStore()
	seedInvoice(t, store, "INV-2025-102", domain.InvoiceSent, 150000)
	seedPayment(t, store, "INV-2025-102", 100000, domain.PaymentCompleted)

	t.Run("rejected by default", func(t *testing.T) {
		v := newTestValidator(t, store, DefaultRules())
		result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-102", 100000), uuid.Nil)
		require.NoError(t, err)
		assert.False(t, result.Valid())
		assert.Contains(t, result.Errors, "Payment amount 1000.00 exceeds remaining balance 500.00")
	})

	t.Run("downgraded to warning when overpayment is allowed", func(t *testing.T) {
		rules := DefaultRules()
		rules.AllowOverpayment = true
		v := newTestValidator(t, store, rules)
		result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-102", 100000), uuid.Nil)
		require.NoError(t, err)
		assert.True(t, result.Valid(), "errors: %v", result.Errors)
		assert.Contains(t, result.Warnings, "Payment exceeds remaining balance by 500.00")
	})

	t.Run("pending payments do not count toward the paid total", func(t *testing.T) {
		seedPayment(t, store, "INV-2025-102", 50000, domain.PaymentPending)
		v := newTestValidator(t, store, DefaultRules())
		result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-102", 50000), uuid.Nil)
		require.NoError(t, err)
		assert.True(t, result.Valid(), "errors: %v", result.Errors)
	})
}

func Test_PaymentValidator_PartialPayments(t *testing.T) {
	store := memory.NewStore()
	seedInvoice(t, store, "INV-2025-103", domain.InvoiceSent, 100000)

	t.Run("flagged as warning by default", func(t *testing.T) {
		v := newTestValidator(t, store, DefaultRules())
		result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-103", 30000), uuid.Nil)
		require.NoError(t, err)
		assert.True(t, result.Valid(), "errors: %v", result.Errors)
		assert.Contains(t, result.Warnings, "Partial payment: 700.00 will remain outstanding")
	})

	t.Run("rejected when partial payments are disabled", func(t *testing.T) {
		rules := DefaultRules()
		rules.AllowPartialPayments = false
		v := newTestValidator(t, store, rules)
		result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-103", 30000), uuid.Nil)
		require.NoError(t, err)
		assert.Contains(t, result.Errors, "Partial payments are not allowed")
	})
}

func Test_PaymentValidator_InvoiceState(t *testing.T) {
	store := memory.NewStore()
	seedInvoice(t, store, "INV-2025-104", domain.InvoiceCancelled, 50000)
	seedInvoice(t, store, "INV-2025-105", domain.InvoiceDraft, 50000)
	v := newTestValidator(t, store, DefaultRules())

	t.Run("cancelled invoice blocks the payment", func(t *testing.T) {
		result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-104", 50000), uuid.Nil)
		require.NoError(t, err)
		assert.Contains(t, result.Errors, "Cannot record a payment against cancelled invoice INV-2025-104")
	})

	t.Run("draft invoice only warns", func(t *testing.T) {
		result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-105", 50000), uuid.Nil)
		require.NoError(t, err)
		assert.True(t, result.Valid(), "errors: %v", result.Errors)
		assert.Contains(t, result.Warnings, "Invoice INV-2025-105 is still a draft; consider sending it before recording payment")
	})
}

func Test_PaymentValidator_ClientNameMismatch(t *testing.T) {
	store := memory.NewStore()
	seedInvoice(t, store, "INV-2025-106", domain.InvoiceSent, 50000)
	v := newTestValidator(t, store, DefaultRules())

	input := validInput("INV-2025-106", 50000)
	input.ClientName = "Valley View HOA"

	result, err := v.ValidatePayment(context.Background(), input, uuid.Nil)
	require.NoError(t, err)

	assert.True(t, result.Valid(), "errors: %v", result.Errors)
	assert.Contains(t, result.Warnings, `Client name does not match invoice (invoice has "Hilltop Landscaping")`)
}

func Test_PaymentValidator_DateSanity(t *testing.T) {
	store := memory.NewStore()
	seedInvoice(t, store, "INV-2025-107", domain.InvoiceSent, 50000)
	v := newTestValidator(t, store, DefaultRules())

	tests := []struct {
		name    string
		date    time.Time
		warning string
	}{
		{"future date", testClock.AddDate(0, 0, 2), "Payment date is in the future"},
		{"stale date", testClock.AddDate(-3, 0, 0), "Payment date is more than 2 years old"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput("INV-2025-107", 50000)
			input.PaymentDate = tt.date
			result, err := v.ValidatePayment(context.Background(), input, uuid.Nil)
			require.NoError(t, err)
			assert.True(t, result.Valid(), "errors: %v", result.Errors)
			assert.Contains(t, result.Warnings, tt.warning)
		})
	}
}

func Test_PaymentValidator_DuplicateHeuristic(t *testing.T) {
	store := memory.NewStore()
	seedInvoice(t, store, "INV-2025-108", domain.InvoiceSent, 100000)
	existing := seedPayment(t, store, "INV-2025-108", 30000, domain.PaymentCompleted)
	v := newTestValidator(t, store, DefaultRules())

	t.Run("same amount, date, and method warns without blocking", func(t *testing.T) {
		result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-108", 30000), uuid.Nil)
		require.NoError(t, err)
		assert.True(t, result.Valid(), "errors: %v", result.Errors)
		assert.Contains(t, result.Warnings, "Similar payment already exists: "+existing.PaymentNumber)
	})

	t.Run("different day is not flagged", func(t *testing.T) {
		input := validInput("INV-2025-108", 30000)
		input.PaymentDate = testClock.AddDate(0, 0, -1)
		result, err := v.ValidatePayment(context.Background(), input, uuid.Nil)
		require.NoError(t, err)
		for _, w := range result.Warnings {
			assert.NotContains(t, w, "Similar payment already exists")
		}
	})

	t.Run("the payment being edited is excluded", func(t *testing.T) {
		result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-108", 30000), existing.ID)
		require.NoError(t, err)
		for _, w := range result.Warnings {
			assert.NotContains(t, w, "Similar payment already exists")
		}
	})
}

func Test_PaymentValidator_ExcludesSelfFromBalance(t *testing.T) {
	store := memory.NewStore()
	seedInvoice(t, store, "INV-2025-109", domain.InvoiceSent, 100000)
	existing := seedPayment(t, store, "INV-2025-109", 100000, domain.PaymentCompleted)
	v := newTestValidator(t, store, DefaultRules())

	// Re-validating the full payment during an edit must not read its own
	// amount as an overpayment.
	result, err := v.ValidatePayment(context.Background(), validInput("INV-2025-109", 100000), existing.ID)
	require.NoError(t, err)

	assert.True(t, result.Valid(), "errors: %v", result.Errors)
}
