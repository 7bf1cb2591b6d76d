package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rcallaway/fieldpay/internal/domain"
)

type invoiceRepo struct {
	db DBTX
}

// Compile-time check that invoiceRepo implements domain.InvoiceRepository.
var _ domain.InvoiceRepository = (*invoiceRepo)(nil)

const invoiceColumns = `id, invoice_number, client_name, property_address, issue_date, due_date,
	status, total_cents, paid_cents, balance_cents, description, line_items, created_at, updated_at`

func (r *invoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	items, err := json.Marshal(inv.LineItems)
	if err != nil {
		return fmt.Errorf("failed to encode line items: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO invoices (id, invoice_number, client_name, property_address, issue_date, due_date,
			status, total_cents, paid_cents, balance_cents, description, line_items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		inv.ID, inv.InvoiceNumber, inv.ClientName, inv.PropertyAddress, inv.IssueDate, inv.DueDate,
		inv.Status, inv.TotalCents, inv.PaidCents, inv.BalanceCents, inv.Description, items,
		inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return domain.Conflict("invoice.create", "invoice number already exists")
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("invoice.get", "invoice", id.String())
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

func (r *invoiceRepo) GetByNumber(ctx context.Context, invoiceNumber string) (*domain.Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, invoiceNumber)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("invoice.get", "invoice", invoiceNumber)
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

func (r *invoiceRepo) List(ctx context.Context, limit, offset int32) ([]domain.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (r *invoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	items, err := json.Marshal(inv.LineItems)
	if err != nil {
		return fmt.Errorf("failed to encode line items: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE invoices
		SET invoice_number = $2, client_name = $3, property_address = $4, issue_date = $5,
			due_date = $6, status = $7, total_cents = $8, paid_cents = $9, balance_cents = $10,
			description = $11, line_items = $12, updated_at = $13
		WHERE id = $1`,
		inv.ID, inv.InvoiceNumber, inv.ClientName, inv.PropertyAddress, inv.IssueDate,
		inv.DueDate, inv.Status, inv.TotalCents, inv.PaidCents, inv.BalanceCents,
		inv.Description, items, inv.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return domain.Conflict("invoice.update", "invoice number already exists")
		}
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("invoice.update", "invoice", inv.ID.String())
	}
	return nil
}

func (r *invoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("invoice.delete", "invoice", id.String())
	}
	return nil
}

func (r *invoiceRepo) ListDue(ctx context.Context, asOf time.Time) ([]domain.Invoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status = $1 AND due_date < $2
		ORDER BY due_date`, domain.InvoiceSent, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list due invoices: %w", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	var items []byte
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.ClientName, &inv.PropertyAddress,
		&inv.IssueDate, &inv.DueDate, &inv.Status, &inv.TotalCents, &inv.PaidCents,
		&inv.BalanceCents, &inv.Description, &items, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &inv.LineItems); err != nil {
			return nil, fmt.Errorf("failed to decode line items: %w", err)
		}
	}
	return &inv, nil
}

func collectInvoices(rows pgx.Rows) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read invoices: %w", err)
	}
	return invoices, nil
}
