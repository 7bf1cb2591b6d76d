package billing

import (
	"context"
)

// MockProvider is a test double for Provider. Behavior is customized by
// setting the corresponding Func fields; calls are recorded in CallLog.
type MockProvider struct {
	// RefundPaymentFunc allows customizing refund behavior
	RefundPaymentFunc func(ctx context.Context, params RefundParams) (*Refund, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	// CallLog records the order of calls for assertions
	CallLog []string

	// Refunds records every refund requested
	Refunds []RefundParams
}

// NewMockProvider creates a mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// RefundPayment refunds a mock payment.
func (m *MockProvider) RefundPayment(ctx context.Context, params RefundParams) (*Refund, error) {
	m.CallLog = append(m.CallLog, "RefundPayment")
	m.Refunds = append(m.Refunds, params)

	if m.RefundPaymentFunc != nil {
		return m.RefundPaymentFunc(ctx, params)
	}
	return &Refund{ID: "re_mock", AmountCents: params.AmountCents, Status: "succeeded"}, nil
}

// VerifyWebhookSignature verifies a mock webhook signature.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}
	return nil
}
