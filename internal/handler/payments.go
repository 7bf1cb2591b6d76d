package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rcallaway/fieldpay/internal/domain"
	"github.com/rcallaway/fieldpay/internal/telemetry"
)

// PaymentHandler serves the payment endpoints.
type PaymentHandler struct {
	payments domain.PaymentService
	logger   *slog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(payments domain.PaymentService, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// recordPaymentRequest is the request body for recording or updating a payment.
// Dates accept RFC 3339 timestamps or plain YYYY-MM-DD dates.
type recordPaymentRequest struct {
	PaymentNumber string `json:"payment_number"`
	InvoiceNumber string `json:"invoice_number"`
	ClientName    string `json:"client_name"`
	AmountCents   int64  `json:"amount_cents"`
	PaymentDate   string `json:"payment_date"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	Notes         string `json:"notes"`
}

func (req recordPaymentRequest) toInput() (domain.PaymentInput, error) {
	input := domain.PaymentInput{
		PaymentNumber: req.PaymentNumber,
		InvoiceNumber: req.InvoiceNumber,
		ClientName:    req.ClientName,
		AmountCents:   req.AmountCents,
		Method:        domain.PaymentMethod(req.Method),
		Status:        domain.PaymentStatus(req.Status),
		Reference:     req.Reference,
		Notes:         req.Notes,
	}
	if req.PaymentDate != "" {
		date, err := parseDate(req.PaymentDate)
		if err != nil {
			return input, domain.Invalid("payment.parse", "Invalid payment date; use RFC 3339 or YYYY-MM-DD")
		}
		input.PaymentDate = date
	}
	return input, nil
}

// Record handles POST /api/payments.
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("payment.record", "Invalid request body"))
		return
	}

	input, err := req.toInput()
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	result, err := h.payments.ProcessPayment(r.Context(), input)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if !result.Success {
		if telemetry.Business != nil {
			telemetry.Business.PaymentsRejected.WithLabelValues(req.Method).Inc()
		}
		JSONResponse(w, http.StatusBadRequest, result)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentsRecorded.WithLabelValues(string(result.Payment.Method), string(result.Payment.Status)).Inc()
		telemetry.Business.PaymentAmount.WithLabelValues(string(result.Payment.Method)).Observe(float64(result.Payment.AmountCents))
		for _, warning := range result.Warnings {
			telemetry.Business.ValidationWarnings.WithLabelValues(warningKind(warning)).Inc()
		}
		if result.UpdatedInvoice != nil && result.UpdatedInvoice.Status == domain.InvoicePaid {
			telemetry.Business.InvoicesPaid.Inc()
		}
	}

	h.logger.Info("payment recorded",
		"payment_number", result.Payment.PaymentNumber,
		"invoice_number", result.Payment.InvoiceNumber,
		"amount_cents", result.Payment.AmountCents,
		"warnings", len(result.Warnings),
	)
	JSONResponse(w, http.StatusCreated, result)
}

// Get handles GET /api/payments/{id}.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	payment, err := h.payments.GetPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, payment)
}

// List handles GET /api/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	payments, err := h.payments.ListPayments(r.Context(), limit, offset)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]any{
		"payments": payments,
		"count":    len(payments),
	})
}

// Update handles PATCH /api/payments/{id}.
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("payment.update", "Invalid request body"))
		return
	}

	input, err := req.toInput()
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	result, err := h.payments.UpdatePayment(r.Context(), r.PathValue("id"), input)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if !result.Success {
		JSONResponse(w, http.StatusBadRequest, result)
		return
	}
	JSONResponse(w, http.StatusOK, result)
}

// Delete handles DELETE /api/payments/{id}.
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	updatedInvoice, err := h.payments.DeletePayment(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]any{
		"deleted":         true,
		"updated_invoice": updatedInvoice,
	})
}

// Refund handles POST /api/payments/{id}/refund.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	result, err := h.payments.RefundPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentsRefunded.WithLabelValues(string(result.Payment.Method)).Inc()
		telemetry.Business.RefundAmount.Add(float64(result.Payment.AmountCents))
	}

	h.logger.Info("payment refunded",
		"payment_number", result.Payment.PaymentNumber,
		"invoice_number", result.Payment.InvoiceNumber,
		"amount_cents", result.Payment.AmountCents,
	)
	JSONResponse(w, http.StatusOK, result)
}

// Summary handles GET /api/invoices/{number}/payment-summary.
func (h *PaymentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.payments.GetInvoicePaymentSummary(r.Context(), r.PathValue("number"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, summary)
}

// warningKind buckets validation warnings into stable metric labels.
func warningKind(warning string) string {
	switch {
	case strings.Contains(warning, "Partial payment"):
		return "partial"
	case strings.Contains(warning, "Similar payment"):
		return "duplicate"
	default:
		return "other"
	}
}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// paginationParams reads limit/offset query parameters with defaults.
func paginationParams(r *http.Request) (int32, int32) {
	limit := int32(50)
	offset := int32(0)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 && n <= 500 {
			limit = int32(n)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}
