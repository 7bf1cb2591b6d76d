package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rcallaway/fieldpay/internal/domain"
)

type paymentRepo struct {
	db DBTX
}

// Compile-time check that paymentRepo implements domain.PaymentRepository.
var _ domain.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `id, payment_number, invoice_number, client_name, amount_cents,
	payment_date, method, status, reference, notes, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payments (id, payment_number, invoice_number, client_name, amount_cents,
			payment_date, method, status, reference, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.PaymentNumber, p.InvoiceNumber, p.ClientName, p.AmountCents,
		p.PaymentDate, p.Method, p.Status, p.Reference, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return domain.Conflict("payment.create", "payment number already exists")
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("payment.get", "payment", id.String())
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (r *paymentRepo) List(ctx context.Context, limit, offset int32) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (r *paymentRepo) ListByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE invoice_number = $1
		ORDER BY created_at, id`, invoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (r *paymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE payments
		SET payment_number = $2, invoice_number = $3, client_name = $4, amount_cents = $5,
			payment_date = $6, method = $7, status = $8, reference = $9, notes = $10, updated_at = $11
		WHERE id = $1`,
		p.ID, p.PaymentNumber, p.InvoiceNumber, p.ClientName, p.AmountCents,
		p.PaymentDate, p.Method, p.Status, p.Reference, p.Notes, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("payment.update", "payment", p.ID.String())
	}
	return nil
}

func (r *paymentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("payment.delete", "payment", id.String())
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.PaymentNumber, &p.InvoiceNumber, &p.ClientName, &p.AmountCents,
		&p.PaymentDate, &p.Method, &p.Status, &p.Reference, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payments: %w", err)
	}
	return payments, nil
}
