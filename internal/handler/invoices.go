package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rcallaway/fieldpay/internal/domain"
	"github.com/rcallaway/fieldpay/internal/telemetry"
)

// InvoiceHandler serves the invoice endpoints.
type InvoiceHandler struct {
	invoices domain.InvoiceService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(invoices domain.InvoiceService, logger *slog.Logger) *InvoiceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceHandler{
		invoices: invoices,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

type lineItemRequest struct {
	Description    string `json:"description" validate:"required"`
	Quantity       int32  `json:"quantity" validate:"required,gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
	TotalCents     int64  `json:"total_cents" validate:"gte=0"`
}

type createInvoiceRequest struct {
	InvoiceNumber   string            `json:"invoice_number"`
	ClientName      string            `json:"client_name" validate:"required"`
	PropertyAddress string            `json:"property_address"`
	IssueDate       string            `json:"issue_date"`
	DueDate         string            `json:"due_date"`
	Description     string            `json:"description"`
	LineItems       []lineItemRequest `json:"line_items" validate:"required,min=1,dive"`
}

type updateInvoiceRequest struct {
	ClientName      *string           `json:"client_name" validate:"omitempty,min=1"`
	PropertyAddress *string           `json:"property_address"`
	IssueDate       *string           `json:"issue_date"`
	DueDate         *string           `json:"due_date"`
	Description     *string           `json:"description"`
	Status          *string           `json:"status" validate:"omitempty,oneof=draft sent paid overdue cancelled"`
	LineItems       []lineItemRequest `json:"line_items" validate:"omitempty,min=1,dive"`
}

// Create handles POST /api/invoices.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("invoice.create", "Invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		validationErrorResponse(w, r, err)
		return
	}

	params := domain.CreateInvoiceParams{
		InvoiceNumber:   req.InvoiceNumber,
		ClientName:      req.ClientName,
		PropertyAddress: req.PropertyAddress,
		Description:     req.Description,
		LineItems:       toLineItems(req.LineItems),
	}
	if req.IssueDate != "" {
		date, err := parseDate(req.IssueDate)
		if err != nil {
			ErrorResponse(w, r, domain.Invalid("invoice.create", "Invalid issue date; use RFC 3339 or YYYY-MM-DD"))
			return
		}
		params.IssueDate = date
	}
	if req.DueDate != "" {
		date, err := parseDate(req.DueDate)
		if err != nil {
			ErrorResponse(w, r, domain.Invalid("invoice.create", "Invalid due date; use RFC 3339 or YYYY-MM-DD"))
			return
		}
		params.DueDate = date
	}

	inv, err := h.invoices.CreateInvoice(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.InvoicesCreated.WithLabelValues(string(inv.Status)).Inc()
	}

	h.logger.Info("invoice created",
		"invoice_number", inv.InvoiceNumber,
		"client_name", inv.ClientName,
		"total_cents", inv.TotalCents,
	)
	JSONResponse(w, http.StatusCreated, inv)
}

// Get handles GET /api/invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, inv)
}

// List handles GET /api/invoices.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	invoices, err := h.invoices.ListInvoices(r.Context(), limit, offset)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]any{
		"invoices": invoices,
		"count":    len(invoices),
	})
}

// Update handles PATCH /api/invoices/{id}.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("invoice.update", "Invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		validationErrorResponse(w, r, err)
		return
	}

	params := domain.UpdateInvoiceParams{
		ClientName:      req.ClientName,
		PropertyAddress: req.PropertyAddress,
		Description:     req.Description,
	}
	if req.Status != nil {
		status := domain.InvoiceStatus(*req.Status)
		params.Status = &status
	}
	if req.IssueDate != nil {
		date, err := parseDate(*req.IssueDate)
		if err != nil {
			ErrorResponse(w, r, domain.Invalid("invoice.update", "Invalid issue date; use RFC 3339 or YYYY-MM-DD"))
			return
		}
		params.IssueDate = &date
	}
	if req.DueDate != nil {
		date, err := parseDate(*req.DueDate)
		if err != nil {
			ErrorResponse(w, r, domain.Invalid("invoice.update", "Invalid due date; use RFC 3339 or YYYY-MM-DD"))
			return
		}
		params.DueDate = &date
	}
	if req.LineItems != nil {
		params.LineItems = toLineItems(req.LineItems)
	}

	inv, err := h.invoices.UpdateInvoice(r.Context(), r.PathValue("id"), params)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, inv)
}

// Delete handles DELETE /api/invoices/{id}.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.invoices.DeleteInvoice(r.Context(), r.PathValue("id")); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]any{"deleted": true})
}

// Send handles POST /api/invoices/{id}/send.
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.SendInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, inv)
}

// GetByNumber handles GET /api/invoices/by-number/{number}.
func (h *InvoiceHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.GetInvoiceByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, inv)
}

func toLineItems(items []lineItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, item := range items {
		out[i] = domain.LineItem{
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		}
	}
	return out
}

// validationErrorResponse renders struct validation failures as a field map.
func validationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ErrorResponse(w, r, domain.Invalid("request.validate", "Invalid request"))
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = "failed on the '" + fe.Tag() + "' rule"
	}

	JSONResponse(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":    domain.EINVALID,
			"message": "Request validation failed",
			"fields":  fields,
		},
	})
}
