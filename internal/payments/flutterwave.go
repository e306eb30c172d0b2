package payments

import (
	"context"
	"strings"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/flutterwave"
)

// FlutterwaveGateway adapts the Flutterwave client to the Gateway interface.
type FlutterwaveGateway struct {
	client *flutterwave.Client
}

// NewFlutterwaveGateway wraps the provided client.
func NewFlutterwaveGateway(client *flutterwave.Client) *FlutterwaveGateway {
	return &FlutterwaveGateway{client: client}
}

// Name identifies the gateway.
func (g *FlutterwaveGateway) Name() enums.PaymentGateway {
	return enums.PaymentGatewayFlutterwave
}

// VerifyTransaction re-verifies the tx_ref against Flutterwave's API.
func (g *FlutterwaveGateway) VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error) {
	tx, err := g.client.VerifyTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &VerifiedTransaction{
		Gateway:       enums.PaymentGatewayFlutterwave,
		Reference:     tx.TxRef,
		Status:        normalizeFlutterwaveStatus(tx.Status),
		AmountKobo:    tx.AmountKobo(),
		Currency:      tx.Currency,
		Channel:       tx.Channel,
		CustomerEmail: tx.Customer.Email,
	}, nil
}

func normalizeFlutterwaveStatus(status string) enums.GatewayTxStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "successful", "success":
		return enums.GatewayTxStatusSuccess
	case "pending":
		return enums.GatewayTxStatusPending
	case "cancelled":
		return enums.GatewayTxStatusCancelled
	case "voided", "reversed":
		return enums.GatewayTxStatusReversed
	default:
		return enums.GatewayTxStatusFailed
	}
}
