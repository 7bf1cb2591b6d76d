package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcallaway/fieldpay/internal/domain"
)

func testInvoice(number string) *domain.Invoice {
	return &domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: number,
		ClientName:    "Hilltop Landscaping",
		IssueDate:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Status:        domain.InvoiceSent,
		TotalCents:    50000,
		BalanceCents:  50000,
	}
}

func testPayment(invoiceNumber string) *domain.Payment {
	return &domain.Payment{
		ID:            uuid.New(),
		PaymentNumber: "PAY-2025-0001",
		InvoiceNumber: invoiceNumber,
		ClientName:    "Hilltop Landscaping",
		AmountCents:   50000,
		PaymentDate:   time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Method:        domain.MethodCheck,
		Status:        domain.PaymentCompleted,
	}
}

func Test_InTx_RollsBackAllWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	inv := testInvoice("INV-2025-0001")
	require.NoError(t, store.Invoices().Create(ctx, inv))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx domain.Store) error {
		if err := tx.Payments().Create(ctx, testPayment(inv.InvoiceNumber)); err != nil {
			return err
		}
		updated := *inv
		updated.PaidCents = 50000
		updated.BalanceCents = 0
		updated.Status = domain.InvoicePaid
		if err := tx.Invoices().Update(ctx, &updated); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	payments, err := store.Payments().ListByInvoiceNumber(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.Empty(t, payments, "payment write should have been rolled back")

	got, err := store.Invoices().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceSent, got.Status)
	assert.Equal(t, int64(50000), got.BalanceCents)
}

func Test_InTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	inv := testInvoice("INV-2025-0002")
	require.NoError(t, store.Invoices().Create(ctx, inv))

	err := store.InTx(ctx, func(tx domain.Store) error {
		return tx.Payments().Create(ctx, testPayment(inv.InvoiceNumber))
	})
	require.NoError(t, err)

	payments, err := store.Payments().ListByInvoiceNumber(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func Test_InTx_NestedJoinsEnclosingTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	inv := testInvoice("INV-2025-0003")
	require.NoError(t, store.Invoices().Create(ctx, inv))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx domain.Store) error {
		if err := tx.InTx(ctx, func(inner domain.Store) error {
			return inner.Payments().Create(ctx, testPayment(inv.InvoiceNumber))
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	payments, err := store.Payments().ListByInvoiceNumber(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.Empty(t, payments, "nested write should roll back with the outer transaction")
}

func Test_Create_DuplicateInvoiceNumberConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Invoices().Create(ctx, testInvoice("INV-2025-0004")))

	err := store.Invoices().Create(ctx, testInvoice("INV-2025-0004"))
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func Test_List_NewestFirstWithPagination(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for _, n := range []string{"INV-2025-0005", "INV-2025-0006", "INV-2025-0007"} {
		require.NoError(t, store.Invoices().Create(ctx, testInvoice(n)))
	}

	page, err := store.Invoices().List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "INV-2025-0007", page[0].InvoiceNumber)
	assert.Equal(t, "INV-2025-0006", page[1].InvoiceNumber)

	page, err = store.Invoices().List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "INV-2025-0005", page[0].InvoiceNumber)
}
