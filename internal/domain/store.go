package domain

import "context"

// Store aggregates the repositories over one storage backend.
//
// InTx runs fn against a store view whose writes commit together. The
// payment services use it to keep a payment write and the following invoice
// recomputation atomic: if either fails, neither is visible.
type Store interface {
	Invoices() InvoiceRepository
	Payments() PaymentRepository

	// InTx executes fn inside a single transaction. The Store passed to fn
	// must be used for all reads and writes within the transaction.
	InTx(ctx context.Context, fn func(Store) error) error
}
