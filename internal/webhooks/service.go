package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/internal/checkout"
	"github.com/tobiafolabi/nairamart-backend/internal/payments"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/flutterwave"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/paystack"
)

// Deliveries older than this can replay freely; the idempotency key on the
// orders table still blocks duplicate materialization.
const defaultReplayTTL = 72 * time.Hour

type gatewayResolver interface {
	Resolve(name enums.PaymentGateway) (payments.Gateway, error)
}

type orderMaterializer interface {
	Materialize(ctx context.Context, verified *payments.VerifiedTransaction) (*checkout.MaterializeResult, error)
	RecordPaymentFailure(ctx context.Context, verified *payments.VerifiedTransaction, reason string) error
}

type replayGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookEventKey(scope, id string) string
}

// Service turns validated gateway webhook events into settlement actions.
// Signature validation happens at the transport layer before events reach
// here; this layer dedupes deliveries and re-verifies every reference against
// the gateway API, because webhook bodies are not trusted for money fields.
type Service struct {
	gateways  gatewayResolver
	orders    orderMaterializer
	guard     replayGuard
	logger    *logger.Logger
	replayTTL time.Duration
}

// NewService validates dependencies and builds the webhook processor.
func NewService(gateways gatewayResolver, orders orderMaterializer, guard replayGuard, logg *logger.Logger) (*Service, error) {
	if gateways == nil {
		return nil, fmt.Errorf("gateway resolver required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order materializer required")
	}
	if guard == nil {
		return nil, fmt.Errorf("replay guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		gateways:  gateways,
		orders:    orders,
		guard:     guard,
		logger:    logg,
		replayTTL: defaultReplayTTL,
	}, nil
}

// ProcessPaystackEvent handles a signature-validated Paystack webhook event.
func (s *Service) ProcessPaystackEvent(ctx context.Context, event *paystack.WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event required")
	}
	if !strings.HasPrefix(event.Event, "charge.") {
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"gateway": enums.PaymentGatewayPaystack.String(),
			"event":   event.Event,
		}), "ignoring webhook event type")
		return nil
	}

	var data struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode paystack event data")
	}
	if strings.TrimSpace(data.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "paystack event carries no reference")
	}

	return s.settle(ctx, enums.PaymentGatewayPaystack, event.Event, data.Reference)
}

// ProcessFlutterwaveEvent handles a signature-validated Flutterwave webhook event.
func (s *Service) ProcessFlutterwaveEvent(ctx context.Context, event *flutterwave.WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event required")
	}
	if !strings.HasPrefix(event.Event, "charge.") {
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"gateway": enums.PaymentGatewayFlutterwave.String(),
			"event":   event.Event,
		}), "ignoring webhook event type")
		return nil
	}

	var data struct {
		TxRef string `json:"tx_ref"`
	}
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode flutterwave event data")
	}
	if strings.TrimSpace(data.TxRef) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "flutterwave event carries no tx_ref")
	}

	return s.settle(ctx, enums.PaymentGatewayFlutterwave, event.Event, data.TxRef)
}

// VerificationResult is the poll-path outcome surfaced to buyers.
type VerificationResult struct {
	Status  enums.GatewayTxStatus `json:"status"`
	Settled bool                  `json:"settled"`
	OrderID *uuid.UUID            `json:"order_id,omitempty"`
}

// VerifyAndSettle is the polling path behind GET /payments/verify. It runs the
// same verify-then-dispatch pipeline as a webhook delivery, so a client poll
// racing a webhook can never produce a second order.
func (s *Service) VerifyAndSettle(ctx context.Context, gateway enums.PaymentGateway, reference string) (*VerificationResult, error) {
	verified, err := s.verify(ctx, gateway, reference)
	if err != nil {
		return nil, err
	}
	switch {
	case verified.Status == enums.GatewayTxStatusSuccess:
		result, err := s.orders.Materialize(ctx, verified)
		if err != nil {
			return nil, err
		}
		orderID := result.Order.ID
		return &VerificationResult{Status: verified.Status, Settled: true, OrderID: &orderID}, nil
	case verified.Status.IsTerminalFailure():
		if err := s.orders.RecordPaymentFailure(ctx, verified, "gateway reported "+verified.Status.String()); err != nil {
			return nil, err
		}
		return &VerificationResult{Status: verified.Status}, nil
	default:
		return &VerificationResult{Status: verified.Status}, nil
	}
}

func (s *Service) settle(ctx context.Context, gateway enums.PaymentGateway, eventType, reference string) error {
	dedupeID := eventType + ":" + reference
	key := s.guard.WebhookEventKey(gateway.String(), dedupeID)
	fresh, err := s.guard.SetNX(ctx, key, "1", s.replayTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook replay guard")
	}
	if !fresh {
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"gateway":   gateway.String(),
			"event":     eventType,
			"reference": reference,
		}), "webhook delivery replayed, already handled")
		return nil
	}

	err = s.dispatch(ctx, gateway, reference)
	if err != nil {
		// release the guard so the gateway's retry can try again
		if delErr := s.guard.Del(ctx, key); delErr != nil {
			s.logger.Error(ctx, "release webhook replay guard", delErr)
		}
		return err
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, gateway enums.PaymentGateway, reference string) error {
	verified, err := s.verify(ctx, gateway, reference)
	if err != nil {
		return err
	}

	switch {
	case verified.Status == enums.GatewayTxStatusSuccess:
		result, err := s.orders.Materialize(ctx, verified)
		if err != nil {
			return err
		}
		if !result.Created {
			s.logger.Info(s.logger.WithFields(ctx, map[string]any{
				"gateway":   gateway.String(),
				"reference": reference,
				"order_id":  result.Order.ID.String(),
			}), "webhook resolved to existing order")
		}
		return nil
	case verified.Status.IsTerminalFailure():
		return s.orders.RecordPaymentFailure(ctx, verified, "gateway reported "+verified.Status.String())
	default:
		// pending charges settle via a later delivery or a verify poll
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"gateway":   gateway.String(),
			"reference": reference,
			"status":    verified.Status.String(),
		}), "webhook transaction not settled yet")
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction still pending at the gateway")
	}
}

func (s *Service) verify(ctx context.Context, gateway enums.PaymentGateway, reference string) (*payments.VerifiedTransaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	gw, err := s.gateways.Resolve(gateway)
	if err != nil {
		return nil, err
	}
	verified, err := gw.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	return verified, nil
}
