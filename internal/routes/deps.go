// Package routes wires handlers onto the router.
package routes

import (
	"github.com/rcallaway/fieldpay/internal/handler"
)

// APIDeps contains dependencies for the JSON API routes.
type APIDeps struct {
	PaymentHandler *handler.PaymentHandler
	InvoiceHandler *handler.InvoiceHandler

	// WebhookHandler is optional; webhook routes are skipped when nil.
	WebhookHandler *handler.WebhookHandler
}
