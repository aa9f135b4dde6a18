package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/attenda/scheduling/internal/domain/providers"
	apperrors "github.com/attenda/scheduling/pkg/errors"
)

// GatewayAdapter implements PaymentProvider against the payment gateway's
// HTTP API. The gateway deduplicates refunds by payment id, so a retried
// call comes back flagged already_refunded instead of refunding twice.
type GatewayAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGatewayAdapter creates a new payment gateway adapter
func NewGatewayAdapter(baseURL, apiKey string) providers.PaymentProvider {
	return &GatewayAdapter{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type refundRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type refundResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

// Refund asks the gateway to refund a payment
func (a *GatewayAdapter) Refund(ctx context.Context, paymentID string, amountCents int64) (*providers.RefundResult, error) {
	body, err := json.Marshal(refundRequest{AmountCents: amountCents})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode refund request", err)
	}

	url := fmt.Sprintf("%s/v1/payments/%s/refunds", a.baseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build refund request", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var result refundResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, apperrors.NewExternalError("failed to decode refund response", err)
		}
		return &providers.RefundResult{
			AlreadyRefunded: result.Status == "already_refunded",
			Reference:       result.Reference,
		}, nil
	case http.StatusConflict:
		// The gateway saw this refund before; its idempotency is our success.
		return &providers.RefundResult{AlreadyRefunded: true}, nil
	case http.StatusNotFound:
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("payment %s not found at gateway", paymentID))
	default:
		return nil, apperrors.NewExternalError(fmt.Sprintf("payment gateway error: status %d", resp.StatusCode), nil)
	}
}
