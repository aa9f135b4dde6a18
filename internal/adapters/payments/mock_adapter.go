package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/attenda/scheduling/internal/domain/providers"
)

// MockAdapter provides an in-memory payment gateway for local development.
// It mimics the real gateway's idempotency: a second refund of the same
// payment id reports already_refunded.
type MockAdapter struct {
	mu       sync.Mutex
	refunded map[string]string
}

// NewMockAdapter creates a mock payment provider
func NewMockAdapter() providers.PaymentProvider {
	return &MockAdapter{
		refunded: make(map[string]string),
	}
}

// Refund records the refund and returns a mock reference
func (m *MockAdapter) Refund(ctx context.Context, paymentID string, amountCents int64) (*providers.RefundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ref, ok := m.refunded[paymentID]; ok {
		return &providers.RefundResult{AlreadyRefunded: true, Reference: ref}, nil
	}

	ref := fmt.Sprintf("mock-refund-%d", time.Now().UnixNano())
	m.refunded[paymentID] = ref
	return &providers.RefundResult{Reference: ref}, nil
}
