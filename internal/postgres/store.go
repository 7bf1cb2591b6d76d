// Package postgres implements the domain Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcallaway/fieldpay/internal/domain"
)

// DBTX is the subset of pgx shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed domain.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time check that Store implements domain.Store.
var _ domain.Store = (*Store)(nil)

// NewStore creates a store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Invoices returns the invoice repository.
func (s *Store) Invoices() domain.InvoiceRepository {
	return &invoiceRepo{db: s.pool}
}

// Payments returns the payment repository.
func (s *Store) Payments() domain.PaymentRepository {
	return &paymentRepo{db: s.pool}
}

// InTx runs fn inside a database transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(domain.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore is the Store view inside a transaction. Nested InTx joins the
// enclosing transaction.
type txStore struct {
	tx pgx.Tx
}

func (t *txStore) Invoices() domain.InvoiceRepository { return &invoiceRepo{db: t.tx} }
func (t *txStore) Payments() domain.PaymentRepository { return &paymentRepo{db: t.tx} }

func (t *txStore) InTx(ctx context.Context, fn func(domain.Store) error) error {
	return fn(t)
}

// uniqueViolation reports whether err is a unique constraint violation.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
