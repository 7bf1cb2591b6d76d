package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcallaway/fieldpay/internal/billing"
	"github.com/rcallaway/fieldpay/internal/domain"
	"github.com/rcallaway/fieldpay/internal/events"
	"github.com/rcallaway/fieldpay/internal/handler"
	"github.com/rcallaway/fieldpay/internal/memory"
	"github.com/rcallaway/fieldpay/internal/router"
	"github.com/rcallaway/fieldpay/internal/routes"
	"github.com/rcallaway/fieldpay/internal/service"
)

// testAPI assembles the full API surface on an in-memory store so tests can
// drive it the way a client would.
type testAPI struct {
	router *router.Router
	mock   *billing.MockProvider
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := memory.NewStore()
	mock := billing.NewMockProvider()
	logger := slog.New(slog.DiscardHandler)

	validator := service.NewPaymentValidator(store, service.Rules{
		MaxPaymentCents:      5_000_000,
		AllowOverpayment:     false,
		AllowPartialPayments: true,
		RequireInvoiceMatch:  true,
	})
	paymentService := service.NewPaymentService(store, validator, mock, events.NoopPublisher{})
	invoiceService := service.NewInvoiceService(store)

	r := router.New()
	routes.RegisterAPIRoutes(r, routes.APIDeps{
		PaymentHandler: handler.NewPaymentHandler(paymentService, logger),
		InvoiceHandler: handler.NewInvoiceHandler(invoiceService, logger),
		WebhookHandler: handler.NewWebhookHandler(mock, "whsec_test", logger),
	})

	return &testAPI{router: r, mock: mock}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// createSentInvoice drives the invoice endpoints to produce a sent invoice
// with the given total, returning it for payment tests.
func (a *testAPI) createSentInvoice(t *testing.T, totalCents int64) domain.Invoice {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/invoices", map[string]any{
		"client_name":      "Hilltop Landscaping",
		"property_address": "12 Ridge Rd",
		"line_items": []map[string]any{
			{"description": "Mowing and edging", "quantity": 1, "unit_price_cents": totalCents, "total_cents": totalCents},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	inv := decodeJSON[domain.Invoice](t, rec)

	rec = a.do(t, http.MethodPost, "/api/invoices/"+inv.ID.String()+"/send", nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	return decodeJSON[domain.Invoice](t, rec)
}

func paymentBody(invoiceNumber string, amountCents int64) map[string]any {
	return map[string]any{
		"invoice_number": invoiceNumber,
		"client_name":    "Hilltop Landscaping",
		"amount_cents":   amountCents,
		"payment_date":   time.Now().UTC().Format("2006-01-02"),
		"method":         "check",
		"reference":      "CHK-1042",
	}
}

func Test_API_RecordPaymentMarksInvoicePaid(t *testing.T) {
	api := newTestAPI(t)
	inv := api.createSentInvoice(t, 50000)

	rec := api.do(t, http.MethodPost, "/api/payments", paymentBody(inv.InvoiceNumber, 50000))
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	result := decodeJSON[domain.PaymentResult](t, rec)
	assert.True(t, result.Success)
	require.NotNil(t, result.Payment)
	assert.Equal(t, domain.PaymentCompleted, result.Payment.Status)
	assert.Equal(t, inv.InvoiceNumber, result.Payment.InvoiceNumber)
	require.NotNil(t, result.UpdatedInvoice)
	assert.Equal(t, domain.InvoicePaid, result.UpdatedInvoice.Status)
	assert.Equal(t, int64(0), result.UpdatedInvoice.BalanceCents)
}

func Test_API_RecordPayment_OverpaymentRejected(t *testing.T) {
	api := newTestAPI(t)
	inv := api.createSentInvoice(t, 30000)

	rec := api.do(t, http.MethodPost, "/api/payments", paymentBody(inv.InvoiceNumber, 40000))
	require.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())

	result := decodeJSON[domain.PaymentResult](t, rec)
	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "exceeds remaining balance")
}

func Test_API_RecordPayment_InvalidBody(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.EINVALID)
}

func Test_API_CreateInvoice_ValidationFields(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/invoices", map[string]any{
		"property_address": "12 Ridge Rd",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.EINVALID, body.Error.Code)
	assert.Contains(t, body.Error.Fields, "ClientName")
	assert.Contains(t, body.Error.Fields, "LineItems")
}

func Test_API_GetPayment_NotFound(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/payments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ENOTFOUND)
}

func Test_API_RefundPayment(t *testing.T) {
	api := newTestAPI(t)
	inv := api.createSentInvoice(t, 20000)

	body := paymentBody(inv.InvoiceNumber, 20000)
	body["method"] = "credit_card"
	body["reference"] = "ch_3abc"
	rec := api.do(t, http.MethodPost, "/api/payments", body)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	recorded := decodeJSON[domain.PaymentResult](t, rec)

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/payments/%s/refund", recorded.Payment.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	result := decodeJSON[domain.PaymentResult](t, rec)
	assert.True(t, result.Success)
	assert.Equal(t, domain.PaymentRefunded, result.Payment.Status)
	require.NotNil(t, result.UpdatedInvoice)
	assert.NotEqual(t, domain.InvoicePaid, result.UpdatedInvoice.Status)
	assert.Equal(t, int64(20000), result.UpdatedInvoice.BalanceCents)

	require.Len(t, api.mock.Refunds, 1)
	assert.Equal(t, int64(20000), api.mock.Refunds[0].AmountCents)
}

func Test_API_PaymentSummary(t *testing.T) {
	api := newTestAPI(t)
	inv := api.createSentInvoice(t, 100000)

	rec := api.do(t, http.MethodPost, "/api/payments", paymentBody(inv.InvoiceNumber, 40000))
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/invoices/"+inv.InvoiceNumber+"/payment-summary", nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	summary := decodeJSON[domain.PaymentSummary](t, rec)
	assert.Equal(t, inv.InvoiceNumber, summary.InvoiceNumber)
	assert.Equal(t, int64(40000), summary.TotalPaidCents)
	assert.Equal(t, int64(60000), summary.RemainingBalanceCents)
	assert.Equal(t, 1, summary.PaymentCount)
	assert.NotNil(t, summary.LastPaymentDate)
}

func Test_API_StripeWebhook(t *testing.T) {
	t.Run("valid signature", func(t *testing.T) {
		api := newTestAPI(t)

		event := map[string]any{"id": "evt_123", "type": "charge.refunded"}
		rec := api.do(t, http.MethodPost, "/api/webhooks/stripe", event)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received": true}`, rec.Body.String())
		assert.Contains(t, api.mock.CallLog, "VerifyWebhookSignature")
	})

	t.Run("invalid signature", func(t *testing.T) {
		api := newTestAPI(t)
		api.mock.VerifyWebhookSignatureFunc = func(payload []byte, signature, secret string) error {
			return errors.New("signature mismatch")
		}

		rec := api.do(t, http.MethodPost, "/api/webhooks/stripe", map[string]any{"id": "evt_456", "type": "charge.refunded"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), domain.EUNAUTHORIZED)
	})
}
