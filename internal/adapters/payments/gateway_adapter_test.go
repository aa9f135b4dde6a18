package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/attenda/scheduling/pkg/errors"
)

func TestGatewayAdapter_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a refund", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/payments/pay-1/refunds", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var body map[string]int64
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, int64(15000), body["amount_cents"])

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{
				"status":    "refunded",
				"reference": "ref-123",
			})
		}))
		defer server.Close()

		adapter := NewGatewayAdapter(server.URL, "test-key")
		result, err := adapter.Refund(ctx, "pay-1", 15000)

		require.NoError(t, err)
		assert.False(t, result.AlreadyRefunded)
		assert.Equal(t, "ref-123", result.Reference)
	})

	t.Run("treats already_refunded status as success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"status":    "already_refunded",
				"reference": "ref-123",
			})
		}))
		defer server.Close()

		adapter := NewGatewayAdapter(server.URL, "test-key")
		result, err := adapter.Refund(ctx, "pay-1", 15000)

		require.NoError(t, err)
		assert.True(t, result.AlreadyRefunded)
	})

	t.Run("treats a conflict as already refunded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer server.Close()

		adapter := NewGatewayAdapter(server.URL, "test-key")
		result, err := adapter.Refund(ctx, "pay-1", 15000)

		require.NoError(t, err)
		assert.True(t, result.AlreadyRefunded)
	})

	t.Run("maps a missing payment to not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		adapter := NewGatewayAdapter(server.URL, "test-key")
		_, err := adapter.Refund(ctx, "pay-404", 15000)

		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	})

	t.Run("maps a gateway failure to an external error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		adapter := NewGatewayAdapter(server.URL, "test-key")
		_, err := adapter.Refund(ctx, "pay-1", 15000)

		require.Error(t, err)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrorTypeExternal, appErr.Type)
	})
}
