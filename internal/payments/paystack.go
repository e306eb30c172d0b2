package payments

import (
	"context"
	"strings"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/paystack"
)

// PaystackGateway adapts the Paystack client to the Gateway interface.
type PaystackGateway struct {
	client *paystack.Client
}

// NewPaystackGateway wraps the provided client.
func NewPaystackGateway(client *paystack.Client) *PaystackGateway {
	return &PaystackGateway{client: client}
}

// Name identifies the gateway.
func (g *PaystackGateway) Name() enums.PaymentGateway {
	return enums.PaymentGatewayPaystack
}

// VerifyTransaction re-verifies the reference against Paystack's API.
func (g *PaystackGateway) VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error) {
	tx, err := g.client.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &VerifiedTransaction{
		Gateway:       enums.PaymentGatewayPaystack,
		Reference:     tx.Reference,
		Status:        normalizePaystackStatus(tx.Status),
		AmountKobo:    tx.AmountKobo,
		Currency:      tx.Currency,
		Channel:       tx.Channel,
		CustomerEmail: tx.Customer.Email,
		PaidAt:        tx.PaidAt,
	}, nil
}

func normalizePaystackStatus(status string) enums.GatewayTxStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return enums.GatewayTxStatusSuccess
	case "pending", "ongoing", "processing", "queued":
		return enums.GatewayTxStatusPending
	case "abandoned":
		return enums.GatewayTxStatusAbandoned
	case "reversed":
		return enums.GatewayTxStatusReversed
	case "cancelled":
		return enums.GatewayTxStatusCancelled
	default:
		return enums.GatewayTxStatusFailed
	}
}
