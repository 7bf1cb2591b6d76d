package billing

import (
	"context"
)

// Provider defines the interface to the card/online payment processor.
// Implementations can use Stripe, Square, etc.
type Provider interface {
	// RefundPayment refunds a processed payment. The reference is the
	// processor-side identifier stored on the payment record.
	RefundPayment(ctx context.Context, params RefundParams) (*Refund, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// RefundParams contains parameters for creating a refund.
type RefundParams struct {
	// PaymentReference is the processor payment identifier.
	PaymentReference string

	// AmountCents is the amount to refund. Zero refunds the full amount.
	AmountCents int64

	// Reason is an optional processor-visible reason code.
	Reason string
}

// Refund is the processor's record of a completed refund.
type Refund struct {
	ID          string
	AmountCents int64
	Status      string
}
