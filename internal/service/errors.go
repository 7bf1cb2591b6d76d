package service

import (
	"github.com/rcallaway/fieldpay/internal/domain"
)

// Invoice errors
var (
	ErrInvoiceNotFound        = domain.Errorf(domain.ENOTFOUND, "", "Invoice not found")
	ErrDuplicateInvoiceNumber = domain.Errorf(domain.ECONFLICT, "", "Invoice number already exists")
	ErrInvoiceNotDraft        = domain.Errorf(domain.EINVALID, "", "Invoice must be in draft status")
	ErrInvalidInvoiceStatus   = domain.Errorf(domain.EINVALID, "", "Invalid invoice status")
	ErrNoLineItems            = domain.Errorf(domain.EINVALID, "", "Invoice requires at least one line item")
	ErrInvalidLineItem        = domain.Errorf(domain.EINVALID, "", "Line item quantity must be positive and unit price non-negative")
)

// Payment errors
var (
	ErrPaymentNotFound      = domain.Errorf(domain.ENOTFOUND, "", "Payment not found")
	ErrPaymentNotCompleted  = domain.Errorf(domain.EINVALID, "", "Only completed payments can be refunded")
	ErrRefundProviderFailed = domain.Errorf(domain.EPAYMENT, "", "Billing provider refund failed")
)
