// Package memory provides an in-memory Store implementation. It backs the
// service tests and the server's dev mode, where no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rcallaway/fieldpay/internal/domain"
)

// Store is an in-memory domain.Store. A single mutex serializes all access;
// InTx snapshots the data set and restores it when the callback fails, so a
// payment write and its invoice recomputation commit together.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// dataset holds both collections plus insertion counters for stable list
// ordering.
type dataset struct {
	invoices map[uuid.UUID]domain.Invoice
	payments map[uuid.UUID]domain.Payment
	seq      int64
	invSeq   map[uuid.UUID]int64
	paySeq   map[uuid.UUID]int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data: &dataset{
			invoices: make(map[uuid.UUID]domain.Invoice),
			payments: make(map[uuid.UUID]domain.Payment),
			invSeq:   make(map[uuid.UUID]int64),
			paySeq:   make(map[uuid.UUID]int64),
		},
	}
}

// Invoices returns the invoice repository.
func (s *Store) Invoices() domain.InvoiceRepository {
	return &invoiceRepo{store: s}
}

// Payments returns the payment repository.
func (s *Store) Payments() domain.PaymentRepository {
	return &paymentRepo{store: s}
}

// InTx runs fn with the store locked. If fn returns an error, every write it
// made is rolled back.
func (s *Store) InTx(ctx context.Context, fn func(domain.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.data.clone()
	tx := &txStore{data: s.data}
	if err := fn(tx); err != nil {
		s.data = backup
		return err
	}
	return nil
}

// lockedData returns the dataset with the store mutex held; the returned
// release func must be called when done.
func (s *Store) lockedData() (*dataset, func()) {
	s.mu.Lock()
	return s.data, s.mu.Unlock
}

// txStore is the view handed to InTx callbacks. The mutex is already held,
// so its repositories operate on the dataset directly. Nested InTx joins the
// enclosing transaction.
type txStore struct {
	data *dataset
}

func (t *txStore) Invoices() domain.InvoiceRepository { return &invoiceRepo{tx: t} }
func (t *txStore) Payments() domain.PaymentRepository { return &paymentRepo{tx: t} }

func (t *txStore) InTx(ctx context.Context, fn func(domain.Store) error) error {
	return fn(t)
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		invoices: make(map[uuid.UUID]domain.Invoice, len(d.invoices)),
		payments: make(map[uuid.UUID]domain.Payment, len(d.payments)),
		seq:      d.seq,
		invSeq:   make(map[uuid.UUID]int64, len(d.invSeq)),
		paySeq:   make(map[uuid.UUID]int64, len(d.paySeq)),
	}
	for id, inv := range d.invoices {
		c.invoices[id] = copyInvoice(inv)
	}
	for id, p := range d.payments {
		c.payments[id] = p
	}
	for id, n := range d.invSeq {
		c.invSeq[id] = n
	}
	for id, n := range d.paySeq {
		c.paySeq[id] = n
	}
	return c
}

func copyInvoice(inv domain.Invoice) domain.Invoice {
	items := make([]domain.LineItem, len(inv.LineItems))
	copy(items, inv.LineItems)
	inv.LineItems = items
	return inv
}

// =============================================================================
// Invoice repository
// =============================================================================

type invoiceRepo struct {
	store *Store   // locking access, nil inside a transaction
	tx    *txStore // direct access with the lock already held
}

func (r *invoiceRepo) with(fn func(*dataset) error) error {
	if r.tx != nil {
		return fn(r.tx.data)
	}
	data, release := r.store.lockedData()
	defer release()
	return fn(data)
}

func (r *invoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	return r.with(func(d *dataset) error {
		for _, existing := range d.invoices {
			if existing.InvoiceNumber == inv.InvoiceNumber {
				return domain.Conflict("invoice.create", "invoice number already exists")
			}
		}
		d.seq++
		d.invSeq[inv.ID] = d.seq
		d.invoices[inv.ID] = copyInvoice(*inv)
		return nil
	})
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := r.with(func(d *dataset) error {
		inv, ok := d.invoices[id]
		if !ok {
			return domain.NotFound("invoice.get", "invoice", id.String())
		}
		inv = copyInvoice(inv)
		out = &inv
		return nil
	})
	return out, err
}

func (r *invoiceRepo) GetByNumber(ctx context.Context, invoiceNumber string) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := r.with(func(d *dataset) error {
		for _, inv := range d.invoices {
			if inv.InvoiceNumber == invoiceNumber {
				inv = copyInvoice(inv)
				out = &inv
				return nil
			}
		}
		return domain.NotFound("invoice.get", "invoice", invoiceNumber)
	})
	return out, err
}

func (r *invoiceRepo) List(ctx context.Context, limit, offset int32) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := r.with(func(d *dataset) error {
		all := make([]domain.Invoice, 0, len(d.invoices))
		for _, inv := range d.invoices {
			all = append(all, copyInvoice(inv))
		}
		sort.Slice(all, func(i, j int) bool {
			return d.invSeq[all[i].ID] > d.invSeq[all[j].ID]
		})
		out = paginate(all, limit, offset)
		return nil
	})
	return out, err
}

func (r *invoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	return r.with(func(d *dataset) error {
		if _, ok := d.invoices[inv.ID]; !ok {
			return domain.NotFound("invoice.update", "invoice", inv.ID.String())
		}
		d.invoices[inv.ID] = copyInvoice(*inv)
		return nil
	})
}

func (r *invoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.with(func(d *dataset) error {
		if _, ok := d.invoices[id]; !ok {
			return domain.NotFound("invoice.delete", "invoice", id.String())
		}
		delete(d.invoices, id)
		delete(d.invSeq, id)
		return nil
	})
}

func (r *invoiceRepo) ListDue(ctx context.Context, asOf time.Time) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := r.with(func(d *dataset) error {
		for _, inv := range d.invoices {
			if inv.Status == domain.InvoiceSent && inv.DueDate.Before(asOf) {
				out = append(out, copyInvoice(inv))
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return d.invSeq[out[i].ID] < d.invSeq[out[j].ID]
		})
		return nil
	})
	return out, err
}

// =============================================================================
// Payment repository
// =============================================================================

type paymentRepo struct {
	store *Store
	tx    *txStore
}

func (r *paymentRepo) with(fn func(*dataset) error) error {
	if r.tx != nil {
		return fn(r.tx.data)
	}
	data, release := r.store.lockedData()
	defer release()
	return fn(data)
}

func (r *paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	return r.with(func(d *dataset) error {
		d.seq++
		d.paySeq[p.ID] = d.seq
		d.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.with(func(d *dataset) error {
		p, ok := d.payments[id]
		if !ok {
			return domain.NotFound("payment.get", "payment", id.String())
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *paymentRepo) List(ctx context.Context, limit, offset int32) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.with(func(d *dataset) error {
		all := make([]domain.Payment, 0, len(d.payments))
		for _, p := range d.payments {
			all = append(all, p)
		}
		sort.Slice(all, func(i, j int) bool {
			return d.paySeq[all[i].ID] > d.paySeq[all[j].ID]
		})
		out = paginate(all, limit, offset)
		return nil
	})
	return out, err
}

func (r *paymentRepo) ListByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.with(func(d *dataset) error {
		for _, p := range d.payments {
			if p.InvoiceNumber == invoiceNumber {
				out = append(out, p)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return d.paySeq[out[i].ID] < d.paySeq[out[j].ID]
		})
		return nil
	})
	return out, err
}

func (r *paymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	return r.with(func(d *dataset) error {
		if _, ok := d.payments[p.ID]; !ok {
			return domain.NotFound("payment.update", "payment", p.ID.String())
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.with(func(d *dataset) error {
		if _, ok := d.payments[id]; !ok {
			return domain.NotFound("payment.delete", "payment", id.String())
		}
		delete(d.payments, id)
		delete(d.paySeq, id)
		return nil
	})
}

func paginate[T any](items []T, limit, offset int32) []T {
	if offset > 0 {
		if int(offset) >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}
