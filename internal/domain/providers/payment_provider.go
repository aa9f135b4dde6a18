package providers

import (
	"context"
)

// RefundResult reports the outcome of a refund call. AlreadyRefunded means
// the gateway had processed this refund before; callers treat it as success.
type RefundResult struct {
	AlreadyRefunded bool
	Reference       string
}

// PaymentProvider is the external payment collaborator. The payment id acts
// as the idempotency key on the gateway side, so repeated refund calls for
// the same payment never double-refund.
type PaymentProvider interface {
	Refund(ctx context.Context, paymentID string, amountCents int64) (*RefundResult, error)
}
