package routes

import (
	"github.com/rcallaway/fieldpay/internal/router"
)

// RegisterAPIRoutes registers the payment and invoice JSON API.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Payments
	r.Post("/api/payments", deps.PaymentHandler.Record)
	r.Get("/api/payments", deps.PaymentHandler.List)
	r.Get("/api/payments/{id}", deps.PaymentHandler.Get)
	r.Patch("/api/payments/{id}", deps.PaymentHandler.Update)
	r.Delete("/api/payments/{id}", deps.PaymentHandler.Delete)
	r.Post("/api/payments/{id}/refund", deps.PaymentHandler.Refund)

	// Invoices
	r.Post("/api/invoices", deps.InvoiceHandler.Create)
	r.Get("/api/invoices", deps.InvoiceHandler.List)
	r.Get("/api/invoices/{id}", deps.InvoiceHandler.Get)
	r.Patch("/api/invoices/{id}", deps.InvoiceHandler.Update)
	r.Delete("/api/invoices/{id}", deps.InvoiceHandler.Delete)
	r.Post("/api/invoices/{id}/send", deps.InvoiceHandler.Send)
	r.Get("/api/invoices/by-number/{number}", deps.InvoiceHandler.GetByNumber)
	r.Get("/api/invoices/{number}/payment-summary", deps.PaymentHandler.Summary)

	// Billing provider webhooks
	if deps.WebhookHandler != nil {
		r.Post("/api/webhooks/stripe", deps.WebhookHandler.HandleStripe)
	}
}
