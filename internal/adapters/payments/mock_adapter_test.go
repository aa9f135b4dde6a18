package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAdapter_RefundIsIdempotent(t *testing.T) {
	ctx := context.Background()
	adapter := NewMockAdapter()

	first, err := adapter.Refund(ctx, "pay-1", 15000)
	require.NoError(t, err)
	assert.False(t, first.AlreadyRefunded)
	assert.NotEmpty(t, first.Reference)

	second, err := adapter.Refund(ctx, "pay-1", 15000)
	require.NoError(t, err)
	assert.True(t, second.AlreadyRefunded)
	assert.Equal(t, first.Reference, second.Reference)

	other, err := adapter.Refund(ctx, "pay-2", 5000)
	require.NoError(t, err)
	assert.False(t, other.AlreadyRefunded)
}
