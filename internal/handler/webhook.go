package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/rcallaway/fieldpay/internal/billing"
	"github.com/rcallaway/fieldpay/internal/domain"
)

// stripeWebhookMaxBody bounds webhook payloads; Stripe events are small.
const stripeWebhookMaxBody = 64 * 1024

// WebhookHandler receives billing provider webhooks. Processor-side refunds
// and disputes land here so the books stay in sync with the card network.
type WebhookHandler struct {
	billing billing.Provider
	secret  string
	logger  *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(provider billing.Provider, webhookSecret string, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		billing: provider,
		secret:  webhookSecret,
		logger:  logger,
	}
}

// HandleStripe handles POST /api/webhooks/stripe.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, stripeWebhookMaxBody))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Failed to read request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.billing.VerifyWebhookSignature(payload, signature, h.secret); err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.stripe", "Invalid webhook signature"))
		return
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Invalid event payload"))
		return
	}

	switch event.Type {
	case "charge.refunded", "charge.dispute.created", "payment_intent.payment_failed":
		// Reconciliation-relevant events are logged for the office staff to
		// review; the local refund flow is driven through the API.
		h.logger.Info("billing event received", "event_id", event.ID, "event_type", event.Type)
	default:
		h.logger.Debug("billing event ignored", "event_id", event.ID, "event_type", event.Type)
	}

	JSONResponse(w, http.StatusOK, map[string]any{"received": true})
}
